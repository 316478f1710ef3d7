package pfresolver

import (
	"context"
	"portfolio/internal/models/pfmetrics"
	"portfolio/internal/models/pfvisitors"
	"portfolio/internal/pfredis"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type geoCache interface {
	get(ctx context.Context, ip string) (pfvisitors.Geo, bool)
	set(ctx context.Context, ip string, geo pfvisitors.Geo)
}

type redisGeoCache struct {
	client *redis.Client
	ttl    time.Duration
}

func geoKey(ip string) string { return "geo:" + ip }

func (c *redisGeoCache) get(ctx context.Context, ip string) (pfvisitors.Geo, bool) {
	var geo pfvisitors.Geo
	found, err := pfredis.GetJSON(ctx, c.client, geoKey(ip), &geo)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("lecture cache geo")
		return pfvisitors.Geo{}, false
	}
	return geo, found
}

func (c *redisGeoCache) set(ctx context.Context, ip string, geo pfvisitors.Geo) {
	if err := pfredis.SetJSON(ctx, c.client, geoKey(ip), geo, c.ttl); err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("écriture cache geo")
	}
}

// CachedLocator garde les géolocalisations réussies dans redis (clé geo:<ip>).
// Une panne du cache n'empêche pas la résolution.
type CachedLocator struct {
	next  Locator
	cache geoCache
}

func NewCachedLocator(next Locator, client *redis.Client, ttl time.Duration) *CachedLocator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedLocator{next: next, cache: &redisGeoCache{client: client, ttl: ttl}}
}

func (l *CachedLocator) Locate(ctx context.Context, ip string) (pfvisitors.Geo, error) {
	if geo, ok := l.cache.get(ctx, ip); ok {
		pfmetrics.GeoCacheTotal.WithLabelValues("hit").Inc()
		return geo, nil
	}
	pfmetrics.GeoCacheTotal.WithLabelValues("miss").Inc()

	geo, err := l.next.Locate(ctx, ip)
	if err != nil {
		return pfvisitors.Geo{}, err
	}
	l.cache.set(ctx, ip, geo)
	return geo, nil
}
