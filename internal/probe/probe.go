// Package probe checks whether a candidate credential is accepted by the data
// plane. A probe answers yes or no; authentication failures are a negative
// answer, never an error.
package probe

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/systmms/cacherotate/internal/record"
)

const dialTimeout = 5 * time.Second

// Prober reports whether the cluster described by the record accepts the
// record's password.
type Prober interface {
	Ping(ctx context.Context, rec *record.Record) bool
}

// RedisProber probes every endpoint in the record with a PING. All endpoints
// must answer for the probe to succeed.
type RedisProber struct {
	logger zerolog.Logger
}

// NewRedisProber builds a RedisProber.
func NewRedisProber(logger zerolog.Logger) *RedisProber {
	return &RedisProber{logger: logger}
}

// Ping implements Prober. Each connection is opened, checked, and closed on
// every path.
func (p *RedisProber) Ping(ctx context.Context, rec *record.Record) bool {
	for _, endpoint := range rec.Endpoints {
		if !p.pingEndpoint(ctx, endpoint, rec) {
			return false
		}
	}
	return len(rec.Endpoints) > 0
}

func (p *RedisProber) pingEndpoint(ctx context.Context, endpoint string, rec *record.Record) bool {
	opts := &redis.Options{
		Addr:        endpoint,
		Password:    rec.Password,
		DialTimeout: dialTimeout,
		ReadTimeout: dialTimeout,
		MaxRetries:  -1,
	}
	if rec.SSL {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		p.logger.Debug().Str("endpoint", endpoint).Err(err).Msg("ping failed")
		return false
	}
	return true
}
