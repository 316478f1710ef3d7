package main

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"portfolio/internal/gormzerologger"
	handlers_portfolio "portfolio/internal/handlers/portfolio"
	handlers_visits "portfolio/internal/handlers/visits"
	"portfolio/internal/models/pfcaptchas"
	"portfolio/internal/models/pfconfig"
	"portfolio/internal/models/pfcontact"
	"portfolio/internal/models/pflog"
	"portfolio/internal/models/pfmarkdown"
	"portfolio/internal/models/pfmetrics"
	"portfolio/internal/models/pfresolver"
	"portfolio/internal/models/pftracker"
	"portfolio/internal/models/pfvisitors"
	"portfolio/internal/pfmiddleware"
	"portfolio/internal/pfredis"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	htmlmin "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

const VERSION string = "1.0.0"

var BuildID string

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed ressources/js
//go:embed ressources/css
var staticFS embed.FS

// services regroupe les clients partagés, créés une seule fois
type services struct {
	redis    *redis.Client
	ledger   pfvisitors.Ledger
	tracker  *pftracker.Tracker
	captchas *pfcaptchas.Captchas
	relay    *pfcontact.Relay
}

func initServices(ctx context.Context, config *pfconfig.Config) (*services, error) {
	svc := &services{
		relay: pfcontact.NewRelay(nil, config.Contact.Endpoint),
	}

	if config.Redis.Addr != "" {
		rc, err := pfredis.NewClient(ctx, config.Redis.Addr, config.Redis.Db)
		if err != nil {
			log.Warn().Err(err).Msg("redis indisponible, cache et compteurs en mémoire")
		} else {
			svc.redis = rc
		}
	}

	if config.Contact.Captcha {
		svc.captchas = pfcaptchas.New(svc.redis)
	}

	if !config.Analytics.Enabled {
		return svc, nil
	}

	resolver, err := pfresolver.FromConfig(config.Analytics, svc.redis)
	if err != nil {
		return nil, err
	}

	// une base injoignable ne doit pas empêcher d'afficher la page
	ledger, err := pfvisitors.Open(ctx, config.Analytics, gormzerologger.LevelFor(config.Logger.Level, config.Production))
	if err != nil {
		log.Error().Err(err).Msg("registre des visiteurs indisponible, suivi désactivé")
		return svc, nil
	}
	svc.ledger = ledger
	svc.tracker = pftracker.New(resolver, ledger, config.Analytics.Cooldown)
	return svc, nil
}

func (svc *services) Close() {
	if svc.ledger != nil {
		if err := svc.ledger.Close(); err != nil {
			log.Warn().Err(err).Msg("fermeture du registre")
		}
	}
	if svc.redis != nil {
		svc.redis.Close()
	}
}

func ServeMinifiedStatic(m *minify.M) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Request.URL.Path, "/files/")
		content, err := fs.ReadFile(staticFS, "ressources/"+path)
		if err != nil {
			c.String(http.StatusNotFound, "Fichier non trouvé")
			return
		}

		var contentType string
		switch filepath.Ext(path) {
		case ".css":
			contentType = "text/css"
		case ".js":
			contentType = "application/javascript"
		default:
			c.Data(http.StatusOK, "application/octet-stream", content)
			return
		}

		minified, err := m.Bytes(contentType, content)
		if err != nil {
			minified = content
		}

		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Header("ETag", generateETag(minified))
		c.Data(http.StatusOK, contentType, minified)
	}
}

// Fonction helper pour générer un ETag
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf(`"%x"`, hash[:16])
}

func getTemplates(production bool) *template.Template {
	m := minify.New()

	if production {
		m.AddFunc("text/html", htmlmin.Minify)
	}

	tmpl := template.New("").Funcs(template.FuncMap{
		"version": func() string { return BuildID },
	})

	fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".html" {
			return err
		}

		content, _ := fs.ReadFile(templatesFS, path)
		minified, err := m.Bytes("text/html", content)
		if err != nil {
			minified = content
		}

		template.Must(tmpl.New(filepath.Base(path)).Parse(string(minified)))
		return nil
	})

	return tmpl
}

func newServer(config *pfconfig.Config) *gin.Engine {
	if config.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	if err := pfmiddleware.SetTrust(r, config.TrustedProxies, config.TrustedPlatform); err != nil {
		log.Fatal().Err(err).Msg("configuration des proxys")
	}

	r.SetHTMLTemplate(getTemplates(config.Production))

	return r
}

func setRoutes(r *gin.Engine, config *pfconfig.Config, svc *services) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)

	// nil explicite : un *Tracker nil dans l'interface ne serait pas nil
	var tracker handlers_portfolio.Tracker
	beaconURL := ""
	if svc.tracker != nil {
		tracker = svc.tracker
		if config.Analytics.IPSource == "beacon" {
			beaconURL = config.Analytics.IPURL
		}
	}
	portfolio := handlers_portfolio.NewPortfolioHandler(config.Profile, tracker, beaconURL, svc.relay, svc.captchas)

	r.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "404.html", gin.H{"page": gin.H{"Title": config.Profile.Title}})
	})

	r.GET("/files/css/*filepath", ServeMinifiedStatic(m))
	r.GET("/files/js/*filepath", ServeMinifiedStatic(m))

	r.GET("/", portfolio.Index)
	r.GET("/resume", portfolio.Resume)
	r.GET("/profile.jpg", portfolio.Photo)
	r.POST("/contact", pfmiddleware.NewLimiter(svc.redis, "contact", 5, time.Minute), portfolio.Contact)
	if svc.captchas != nil {
		r.GET("/files/captcha", svc.captchas.CaptchaHandler(config.Production))
	}

	if svc.tracker != nil {
		visits := handlers_visits.NewVisitsHandler(svc.tracker)
		r.POST("/api/visits", pfmiddleware.NewLimiter(svc.redis, "visits", 30, time.Minute), visits.Beacon)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"version":   BuildID,
			"analytics": svc.tracker != nil,
		})
	})
}

func startServer(ctx context.Context, r *gin.Engine, config *pfconfig.Config) error {
	if config.Listen.Metrics != "" {
		log.Info().Msgf("Metrics disponible sur http://%s/metrics", config.Listen.Metrics)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", pfmetrics.Handler())
			if err := http.ListenAndServe(config.Listen.Metrics, mux); err != nil {
				log.Error().Err(err).Msg("serveur metrics")
			}
		}()
	}

	server := &http.Server{
		Addr:              config.Listen.Website,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Msgf("Website démarré sur http://%s", config.Listen.Website)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("arrêt du serveur")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func parseCommandLineArgs() (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	var config = flag.String("config", "", "Fichier de configuration YAML")
	var example = flag.Bool("example", false, "Créer un fichier de configuration exemple")
	var version = flag.Bool("version", false, "version du produit")
	flag.Parse()

	if *version {
		return "", false, true, nil
	}

	if *example {
		return "", true, false, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("fichier de configuration requis")
	}

	return *config, false, false, nil
}

func initConfiguration() *pfconfig.Config {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs()
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  portfolio -config portfolio.yaml")
		fmt.Println("  portfolio -example  (pour créer un fichier exemple)")
		fmt.Println("  portfolio -version  (affiche la version)")
		os.Exit(1)
	}

	if versionDisplay {
		println(VERSION)
		os.Exit(0)
	}

	pfconfig.CreateExample(shouldCreateExample, configFile)

	config, err := pfconfig.LoadConfig(configFile)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	// .env à côté du fichier de configuration, puis dans le répertoire courant
	envFiles := []string{filepath.Join(filepath.Dir(configFile), ".env"), ".env"}
	if err := pfconfig.LoadSecrets(config, envFiles...); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	if err := pfconfig.Validate(config); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	return config
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	config := initConfiguration()
	pflog.InitLogger(config.Logger, config.Production, BuildID)
	pfconfig.DisplayConfiguration(config, BuildID)
	pfmarkdown.InitMarkdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initServices(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("initialisation")
	}
	defer svc.Close()

	r := newServer(config)
	pfmiddleware.InitMiddleware(r, config.Production)
	setRoutes(r, config, svc)

	if err := startServer(ctx, r, config); err != nil {
		log.Error().Err(err).Msg("serveur")
	}
}
