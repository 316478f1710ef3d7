// Package pfcontact relaie le formulaire de contact vers un service de formulaires
// (formspree ou équivalent) qui se charge de l'envoi du mail.
package pfcontact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"portfolio/internal/models/pfmetrics"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	maxName    = 100
	maxEmail   = 254
	maxMessage = 5000
)

var (
	ErrInvalid = errors.New("formulaire invalide")
	ErrRelay   = errors.New("envoi du message impossible")
)

type Message struct {
	Name    string `form:"name"`
	Email   string `form:"email"`
	Message string `form:"message"`
}

// Normalize nettoie les champs puis vérifie qu'ils sont exploitables
func (m *Message) Normalize() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Message = strings.TrimSpace(m.Message)

	switch {
	case m.Name == "" || m.Email == "" || m.Message == "":
		return fmt.Errorf("%w: tous les champs sont requis", ErrInvalid)
	case utf8.RuneCountInString(m.Name) > maxName:
		return fmt.Errorf("%w: nom trop long", ErrInvalid)
	case utf8.RuneCountInString(m.Message) > maxMessage:
		return fmt.Errorf("%w: message trop long", ErrInvalid)
	case len(m.Email) > maxEmail:
		return fmt.Errorf("%w: email trop long", ErrInvalid)
	}

	addr, err := mail.ParseAddress(m.Email)
	if err != nil || addr.Address != m.Email {
		return fmt.Errorf("%w: email invalide", ErrInvalid)
	}
	return nil
}

type Relay struct {
	client   *http.Client
	endpoint string
}

func NewRelay(client *http.Client, endpoint string) *Relay {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Relay{client: client, endpoint: endpoint}
}

// Send poste le message en x-www-form-urlencoded, comme le ferait le formulaire HTML
func (r *Relay) Send(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("name", msg.Name)
	form.Set("email", msg.Email)
	form.Set("message", msg.Message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelay, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		pfmetrics.ContactTotal.WithLabelValues("fail").Inc()
		return fmt.Errorf("%w: %v", ErrRelay, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pfmetrics.ContactTotal.WithLabelValues("fail").Inc()
		log.Warn().Int("status", resp.StatusCode).Msg("le service de formulaire a refusé le message")
		return fmt.Errorf("%w: statut %d", ErrRelay, resp.StatusCode)
	}

	pfmetrics.ContactTotal.WithLabelValues("sent").Inc()
	return nil
}
