package pfresolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"portfolio/internal/models/pfmetrics"
	"portfolio/internal/models/pfvisitors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Champs conservés ; tout autre champ du fournisseur est ignoré
var AllowedGeoFields = []string{"city", "region", "country", "latitude", "longitude"}

// HTTPLocator interroge un service geo-IP JSON. L'URL contient %s à la place de l'IP.
type HTTPLocator struct {
	client      *http.Client
	urlTemplate string
}

func NewHTTPLocator(client *http.Client, urlTemplate string) *HTTPLocator {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPLocator{client: client, urlTemplate: urlTemplate}
}

func (l *HTTPLocator) url(ip string) string {
	if strings.Contains(l.urlTemplate, "%s") {
		return fmt.Sprintf(l.urlTemplate, url.PathEscape(ip))
	}
	return strings.TrimRight(l.urlTemplate, "/") + "/" + url.PathEscape(ip)
}

func (l *HTTPLocator) Locate(ctx context.Context, ip string) (pfvisitors.Geo, error) {
	u := l.url(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return pfvisitors.Geo{}, resolutionError("geo request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	t0 := time.Now()
	resp, err := l.client.Do(req)
	pfmetrics.ObserveLookup("geo", t0, err == nil && resp.StatusCode < 300)
	if err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("geo lookup failed")
		return pfvisitors.Geo{}, resolutionError("geo service: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pfvisitors.Geo{}, resolutionError("geo service returned status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return pfvisitors.Geo{}, resolutionError("geo service decode: %v", err)
	}

	// ipapi.co répond 200 avec {"error": true, "reason": "..."}
	if failed, _ := payload["error"].(bool); failed {
		reason, _ := payload["reason"].(string)
		return pfvisitors.Geo{}, resolutionError("geo service error: %s", reason)
	}

	geo := FilterGeo(payload)
	log.Debug().Str("ip", ip).Interface("geo", geo.Fields()).Msg("geo lookup")
	return geo, nil
}

// FilterGeo ne garde que les champs autorisés. Un champ absent ou d'un type
// inattendu est simplement omis.
func FilterGeo(payload map[string]any) pfvisitors.Geo {
	var geo pfvisitors.Geo
	geo.City = stringField(payload, "city")
	geo.Region = stringField(payload, "region")
	geo.Country = stringField(payload, "country")
	geo.Latitude = floatField(payload, "latitude")
	geo.Longitude = floatField(payload, "longitude")
	return geo
}

func stringField(payload map[string]any, key string) *string {
	s, ok := payload[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func floatField(payload map[string]any, key string) *float64 {
	switch v := payload[key].(type) {
	case float64:
		return &v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
