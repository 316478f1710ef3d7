package pfresolver

import (
	"context"
	"fmt"
	"net/netip"
	"portfolio/internal/models/pfmetrics"
	"portfolio/internal/models/pfvisitors"
	"time"

	"github.com/oschwald/geoip2-golang/v2"
)

// MaxMindLocator lit une base GeoLite2-City locale, sans appel réseau
type MaxMindLocator struct {
	reader *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMindLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ouverture base maxmind %s: %w", path, err)
	}
	return &MaxMindLocator{reader: reader}, nil
}

func (l *MaxMindLocator) Locate(_ context.Context, ip string) (pfvisitors.Geo, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return pfvisitors.Geo{}, resolutionError("invalid address %q", ip)
	}

	t0 := time.Now()
	record, err := l.reader.City(addr)
	pfmetrics.ObserveLookup("geo", t0, err == nil)
	if err != nil {
		return pfvisitors.Geo{}, resolutionError("maxmind: %v", err)
	}
	if !record.HasData() {
		return pfvisitors.Geo{}, nil
	}

	var geo pfvisitors.Geo
	geo.City = nonEmpty(record.City.Names.English)
	if len(record.Subdivisions) > 0 {
		geo.Region = nonEmpty(record.Subdivisions[0].Names.English)
	}
	// même convention que ipapi.co : code ISO du pays
	geo.Country = nonEmpty(record.Country.ISOCode)
	geo.Latitude = record.Location.Latitude
	geo.Longitude = record.Location.Longitude
	return geo, nil
}

func (l *MaxMindLocator) Close() error {
	return l.reader.Close()
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
