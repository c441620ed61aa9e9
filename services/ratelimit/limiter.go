// Package limitsvc throttles login attempts per client.
package limitsvc

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/trezcool/escuela/core"
)

type Limiter struct {
	lim      *limiter.Limiter
	disabled bool
}

// New stores the counters in redis when RateLimit.RedisURL is set, in memory otherwise.
func New(conf *core.Config) (*Limiter, error) {
	if conf.RateLimit.Disabled {
		return &Limiter{disabled: true}, nil
	}
	rate, err := limiter.NewRateFromFormatted(conf.RateLimit.Login)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing login rate %q", conf.RateLimit.Login)
	}

	var store limiter.Store
	if conf.RateLimit.RedisURL != "" {
		opts, err := redis.ParseURL(conf.RateLimit.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parsing redis URL")
		}
		store, err = sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
			Prefix:   "escuela_login",
			MaxRetry: 3,
		})
		if err != nil {
			return nil, errors.Wrap(err, "creating redis store")
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          "escuela_login",
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}
	return &Limiter{lim: limiter.New(store, rate)}, nil
}

// Allow consumes one attempt for key and reports whether it is still within the rate.
func (l *Limiter) Allow(ctx context.Context, key string) (limiter.Context, bool, error) {
	if l.disabled {
		return limiter.Context{}, true, nil
	}
	lctx, err := l.lim.Get(ctx, key)
	if err != nil {
		return limiter.Context{}, false, errors.Wrap(err, "checking rate limit")
	}
	return lctx, !lctx.Reached, nil
}
