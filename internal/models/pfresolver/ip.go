package pfresolver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"portfolio/internal/models/pfmetrics"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LookupSource interroge un service "what is my IP" qui répond {"ip": "..."}.
// Le service voit l'adresse de sortie du processus : à réserver aux déploiements
// ou le serveur partage le réseau du visiteur.
type LookupSource struct {
	client *http.Client
	url    string
}

func NewLookupSource(client *http.Client, url string) *LookupSource {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &LookupSource{client: client, url: url}
}

type ipResponse struct {
	IP string `json:"ip"`
}

func (s *LookupSource) IP(ctx context.Context, _ Caller) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", resolutionError("ip request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	t0 := time.Now()
	resp, err := s.client.Do(req)
	pfmetrics.ObserveLookup("ip", t0, err == nil && resp.StatusCode < 300)
	if err != nil {
		log.Debug().Err(err).Str("url", s.url).Msg("ip lookup failed")
		return "", resolutionError("ip service: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resolutionError("ip service returned status %d", resp.StatusCode)
	}

	var r ipResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", resolutionError("ip service decode: %v", err)
	}

	ip := strings.TrimSpace(r.IP)
	if ip == "" {
		return "", ErrPending
	}
	if net.ParseIP(ip) == nil {
		return "", resolutionError("ip service returned an invalid address %q", ip)
	}
	return ip, nil
}

// BeaconSource utilise l'IP envoyée par le navigateur. Le rendu de la page
// n'en porte pas encore : c'est l'appel beacon qui fait office de nouvel essai.
type BeaconSource struct{}

func (BeaconSource) IP(_ context.Context, caller Caller) (string, error) {
	return checkIP(caller.ReportedIP)
}

// HeaderSource utilise l'IP vue par le serveur
type HeaderSource struct{}

func (HeaderSource) IP(_ context.Context, caller Caller) (string, error) {
	return checkIP(caller.RemoteIP)
}

func checkIP(ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", ErrPending
	}
	if net.ParseIP(ip) == nil {
		return "", resolutionError("invalid address %q", ip)
	}
	return ip, nil
}
