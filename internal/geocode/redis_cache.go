package geocode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"techdispatch/internal/metrics"
	"techdispatch/internal/model"
	"techdispatch/internal/obs"
)

const missMarker = "-"

// RedisCache memoizes another Geocoder in Redis. Unknown addresses are cached
// for MissTTL so repeated evaluations do not hammer the upstream.
// Redis failures degrade to calling Next directly.
type RedisCache struct {
	Next    Geocoder
	Client  *redis.Client
	TTL     time.Duration
	MissTTL time.Duration
	Prefix  string
}

func NewRedisCache(next Geocoder, client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisCache{Next: next, Client: client, TTL: ttl, MissTTL: time.Hour, Prefix: "geocode:"}
}

func (c *RedisCache) key(address string) string {
	return c.Prefix + strings.ToLower(Normalize(address))
}

func (c *RedisCache) Geocode(ctx context.Context, address string) (model.GeoPoint, bool, error) {
	key := c.key(address)
	val, err := c.Client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if p, ok, perr := decodePoint(val); perr == nil {
			metrics.GeocodeRequests.WithLabelValues("cache_hit").Inc()
			return p, ok, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Printf("req_id=%s op=geocode.cache.get key=%s err=%v", obs.RequestID(ctx), key, err)
	}
	metrics.GeocodeRequests.WithLabelValues("cache_miss").Inc()

	p, ok, err := c.Next.Geocode(ctx, address)
	if err != nil {
		return model.GeoPoint{}, false, err
	}
	val, ttl := missMarker, c.MissTTL
	if ok {
		val, ttl = encodePoint(p), c.TTL
	}
	if serr := c.Client.Set(ctx, key, val, ttl).Err(); serr != nil {
		log.Printf("req_id=%s op=geocode.cache.set key=%s err=%v", obs.RequestID(ctx), key, serr)
	}
	return p, ok, nil
}

func encodePoint(p model.GeoPoint) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

func decodePoint(s string) (model.GeoPoint, bool, error) {
	if s == missMarker {
		return model.GeoPoint{}, false, nil
	}
	lat, lng, found := strings.Cut(s, ",")
	if !found {
		return model.GeoPoint{}, false, fmt.Errorf("bad cached point %q", s)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return model.GeoPoint{}, false, err
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return model.GeoPoint{}, false, err
	}
	return model.GeoPoint{Lat: la, Lng: ln}, true, nil
}
