package pfimages

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// Color représente une couleur RGB
type Color struct {
	R, G, B int
}

// Fonction pour redimensionner l'image
func Resize(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Si l'image est déjà plus petite, la retourner telle quelle
	if width <= maxWidth {
		return img
	}

	ratio := float64(maxWidth) / float64(width)
	newWidth := maxWidth
	newHeight := int(float64(height) * ratio)

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return dst
}

// LoadPhoto lit la photo de profil (jpeg ou png) et la réencode en jpeg à la largeur voulue
func LoadPhoto(path string, maxWidth int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ouverture photo %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("décodage photo %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Resize(img, maxWidth), &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToHex convertit une couleur en hexadécimal
func (c Color) ToHex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Darken assombrit une couleur par un pourcentage
func (c Color) Darken(percent float64) Color {
	factor := 1.0 - percent/100.0
	return Color{
		R: int(float64(c.R) * factor),
		G: int(float64(c.G) * factor),
		B: int(float64(c.B) * factor),
	}
}

// Lighten éclaircit une couleur par un pourcentage
func (c Color) Lighten(percent float64) Color {
	factor := percent / 100.0
	return Color{
		R: c.R + int(float64(255-c.R)*factor),
		G: c.G + int(float64(255-c.G)*factor),
		B: c.B + int(float64(255-c.B)*factor),
	}
}

// HexToColor convertit un hex en Color
func HexToColor(hex string) Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return Color{0, 0, 0}
	}

	r, _ := strconv.ParseInt(hex[0:2], 16, 64)
	g, _ := strconv.ParseInt(hex[2:4], 16, 64)
	b, _ := strconv.ParseInt(hex[4:6], 16, 64)

	return Color{int(r), int(g), int(b)}
}

// ThemeCSS génère les variables CSS du thème sombre à partir de la couleur d'accent
func ThemeCSS(accent string) string {
	if !strings.HasPrefix(accent, "#") {
		accent = "#4f8bf9"
	}
	base := HexToColor(accent)
	hover := base.Darken(10)

	return fmt.Sprintf(`:root {
 --accent-color: %s;
 --accent-hover: %s;
 --accent-soft: rgba(%d,%d,%d,0.15);
 --background: #0e1117;
 --surface: #1c1e23;
 --text-color: #ffffff;
 --muted-color: #cccccc;
 --border-radius: 8px;
 --transition: all 0.3s ease;
}`,
		base.ToHex(),
		hover.ToHex(),
		base.R, base.G, base.B,
	)
}
