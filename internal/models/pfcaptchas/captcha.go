package pfcaptchas

import (
	"errors"
	"net/http"
	"portfolio/internal/pfredis"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissing   = errors.New("CAPTCHA manquant")
	ErrIncorrect = errors.New("CAPTCHA incorrect")
)

type Captchas struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// New utilise redis pour stocker les réponses si rc est fourni, sinon la mémoire
func New(rc *redis.Client) *Captchas {
	var store base64Captcha.Store
	if rc != nil {
		store = pfredis.NewCaptchaStore(rc)
	} else {
		store = base64Captcha.DefaultMemStore
	}

	driver := base64Captcha.NewDriverMath(
		80,  // hauteur
		240, // largeur
		6,   // nombre d'opérations à afficher
		base64Captcha.OptionShowHollowLine,
		nil, // couleur de fond
		nil, // police
		nil, // couleurs
	)

	return &Captchas{
		store:  store,
		driver: driver,
	}
}

func (cap *Captchas) GenerateCaptcha(production bool) (gin.H, error) {
	captcha := base64Captcha.NewCaptcha(cap.driver, cap.store)

	id, b64s, answer, err := captcha.Generate()
	if err != nil {
		return nil, errors.New("erreur lors de la génération du CAPTCHA")
	}

	data := gin.H{
		"captcha_id": id,
		"image":      b64s,
		"answer":     "",
	}

	if !production {
		log.Debug().Str("id", id).Str("answer", answer).Msg("CAPTCHA généré")
		data["answer"] = answer
	}

	return data, nil
}

func (cap *Captchas) VerifyCaptcha(captchaID string, captchaAnswer string) error {
	captchaID = strings.TrimSpace(captchaID)
	captchaAnswer = strings.TrimSpace(captchaAnswer)

	if captchaID == "" || captchaAnswer == "" {
		return ErrMissing
	}

	if !cap.store.Verify(captchaID, captchaAnswer, true) {
		return ErrIncorrect
	}
	return nil
}

func (cap *Captchas) CaptchaHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := cap.GenerateCaptcha(production)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, data)
	}
}
