// Package pfresolver trouve l'IP publique d'un visiteur et, pour les nouveaux
// visiteurs seulement, sa géolocalisation approximative.
package pfresolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"portfolio/internal/models/pfconfig"
	"portfolio/internal/models/pfvisitors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrPending signale que l'IP n'est pas encore disponible ; il faut réessayer au prochain appel
	ErrPending = errors.New("ip not yet available")
	// ErrResolution enveloppe toute erreur des services IP ou geo
	ErrResolution = errors.New("resolution failed")
)

const defaultTimeout = 5 * time.Second

// Caller porte le contexte réseau de la requête qui déclenche la résolution
type Caller struct {
	// ReportedIP est l'IP envoyée par le navigateur (beacon)
	ReportedIP string
	// RemoteIP est l'IP vue par le serveur (en-têtes proxy ou adresse distante)
	RemoteIP string
}

// IPSource obtient l'IP publique de l'appelant
type IPSource interface {
	IP(ctx context.Context, caller Caller) (string, error)
}

// Locator retourne la géolocalisation filtrée d'une IP
type Locator interface {
	Locate(ctx context.Context, ip string) (pfvisitors.Geo, error)
}

// Resolver assemble une source d'IP et un fournisseur de géolocalisation
type Resolver struct {
	source  IPSource
	locator Locator
}

func New(source IPSource, locator Locator) *Resolver {
	return &Resolver{source: source, locator: locator}
}

// IP effectue au plus un appel sortant
func (r *Resolver) IP(ctx context.Context, caller Caller) (string, error) {
	return r.source.IP(ctx, caller)
}

// Locate n'est appelé que lorsque le registre ne connait pas encore l'IP
func (r *Resolver) Locate(ctx context.Context, ip string) (pfvisitors.Geo, error) {
	return r.locator.Locate(ctx, ip)
}

// FromConfig construit le resolver décrit par la configuration analytics
func FromConfig(cfg pfconfig.AnalyticsConfig, rc *redis.Client) (*Resolver, error) {
	client := &http.Client{Timeout: defaultTimeout}

	var source IPSource
	switch cfg.IPSource {
	case "lookup":
		source = NewLookupSource(client, cfg.IPURL)
	case "beacon":
		source = BeaconSource{}
	case "header":
		source = HeaderSource{}
	default:
		return nil, fmt.Errorf("source ip inconnue: %s", cfg.IPSource)
	}

	var locator Locator
	switch cfg.Geo.Provider {
	case "http":
		locator = NewHTTPLocator(client, cfg.Geo.URL)
	case "maxmind":
		mm, err := OpenMaxMind(cfg.Geo.MaxMind)
		if err != nil {
			return nil, err
		}
		locator = mm
	default:
		return nil, fmt.Errorf("fournisseur geo inconnu: %s", cfg.Geo.Provider)
	}

	if rc != nil {
		locator = NewCachedLocator(locator, rc, cfg.Geo.CacheTTL)
	}

	return New(source, locator), nil
}

func resolutionError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrResolution, fmt.Sprintf(format, a...))
}
