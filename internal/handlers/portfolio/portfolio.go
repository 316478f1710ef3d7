package handlers_portfolio

import (
	"context"
	"errors"
	"net/http"
	"os"
	"portfolio/internal/models/pfcaptchas"
	"portfolio/internal/models/pfconfig"
	"portfolio/internal/models/pfcontact"
	"portfolio/internal/models/pfimages"
	"portfolio/internal/models/pfresolver"
	"portfolio/internal/models/pftracker"
	"portfolio/internal/pfmiddleware"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	photoWidth   = 150
	trackTimeout = 10 * time.Second
)

// Tracker enregistre une visite ; implémenté par pftracker.Tracker
type Tracker interface {
	Track(ctx context.Context, caller pfresolver.Caller) pftracker.Result
}

// Sender relaie un message de contact ; implémenté par pfcontact.Relay
type Sender interface {
	Send(ctx context.Context, msg pfcontact.Message) error
}

type PortfolioHandler struct {
	page      Page
	profile   pfconfig.ProfileConfig
	tracker   Tracker
	beaconURL string
	sender    Sender
	captchas  *pfcaptchas.Captchas

	photoOnce sync.Once
	photo     []byte
	photoErr  error
}

// NewPortfolioHandler : tracker et captchas peuvent être nil (analytics ou captcha désactivés).
// beaconURL est le service IP interrogé par le navigateur ; vide, la page n'envoie pas de beacon.
func NewPortfolioHandler(profile pfconfig.ProfileConfig, tracker Tracker, beaconURL string, sender Sender, captchas *pfcaptchas.Captchas) *PortfolioHandler {
	if tracker == nil {
		beaconURL = ""
	}
	return &PortfolioHandler{
		page:      NewPage(profile),
		profile:   profile,
		tracker:   tracker,
		beaconURL: beaconURL,
		sender:    sender,
		captchas:  captchas,
	}
}

// Index affiche la page et enregistre la visite en arrière-plan
func (h *PortfolioHandler) Index(c *gin.Context) {
	if h.tracker != nil {
		caller := pfresolver.Caller{RemoteIP: c.ClientIP()}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
			defer cancel()
			h.tracker.Track(ctx, caller)
		}()
	}

	session := sessions.Default(c)
	flashes := session.Flashes()
	if len(flashes) > 0 {
		session.Save()
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"page":       h.page,
		"beaconURL":  h.beaconURL,
		"captcha":    h.captchas != nil,
		"flashes":    flashes,
		"renderTime": pfmiddleware.GetRenderTime(c),
	})
}

// Resume télécharge le CV
func (h *PortfolioHandler) Resume(c *gin.Context) {
	if _, err := os.Stat(h.profile.Resume); h.profile.Resume == "" || err != nil {
		c.String(http.StatusNotFound, "CV non disponible")
		return
	}
	c.FileAttachment(h.profile.Resume, h.profile.ResumeName)
}

// Photo sert la photo de profil redimensionnée, calculée une seule fois
func (h *PortfolioHandler) Photo(c *gin.Context) {
	h.photoOnce.Do(func() {
		if h.profile.Photo == "" {
			h.photoErr = os.ErrNotExist
			return
		}
		h.photo, h.photoErr = pfimages.LoadPhoto(h.profile.Photo, photoWidth)
		if h.photoErr != nil {
			log.Error().Err(h.photoErr).Msg("photo de profil")
		}
	})

	if h.photoErr != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/jpeg", h.photo)
}

type contactForm struct {
	pfcontact.Message
	CaptchaID     string `form:"captcha_id"`
	CaptchaAnswer string `form:"captcha_answer"`
}

// Contact relaie le formulaire. Répond en JSON pour les appels fetch, sinon redirige
// vers la page avec un message flash.
func (h *PortfolioHandler) Contact(c *gin.Context) {
	var form contactForm
	if err := c.ShouldBind(&form); err != nil {
		h.contactReply(c, http.StatusBadRequest, false, "Formulaire invalide")
		return
	}

	if h.captchas != nil {
		if err := h.captchas.VerifyCaptcha(form.CaptchaID, form.CaptchaAnswer); err != nil {
			h.contactReply(c, http.StatusBadRequest, false, err.Error())
			return
		}
	}

	msg := form.Message
	if err := msg.Normalize(); err != nil {
		h.contactReply(c, http.StatusBadRequest, false, strings.TrimPrefix(err.Error(), pfcontact.ErrInvalid.Error()+": "))
		return
	}

	if err := h.sender.Send(c.Request.Context(), msg); err != nil {
		log.Error().Err(err).Msg("relai du formulaire de contact")
		status := http.StatusInternalServerError
		if errors.Is(err, pfcontact.ErrRelay) {
			status = http.StatusBadGateway
		}
		h.contactReply(c, status, false, "Le message n'a pas pu être envoyé, réessayez plus tard")
		return
	}

	log.Info().Str("email", msg.Email).Msg("message de contact relayé")
	h.contactReply(c, http.StatusOK, true, "Merci, votre message a bien été envoyé")
}

func (h *PortfolioHandler) contactReply(c *gin.Context, status int, ok bool, message string) {
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.JSON(status, gin.H{"ok": ok, "message": message})
		return
	}

	session := sessions.Default(c)
	session.AddFlash(message)
	session.Save()
	c.Redirect(http.StatusSeeOther, "/#contact")
}
