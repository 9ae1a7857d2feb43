package metrics

import (
	"context"
	"time"

	"github.com/go-authgate/grantd/internal/core"
)

type refreshTokenCounter interface {
	CountActiveRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// GaugeUpdater refreshes gauges that need a database count. The count goes
// through a cache so replicas sharing Redis query the database once per ttl.
type GaugeUpdater struct {
	store    refreshTokenCounter
	cache    core.Cache[int64]
	recorder Recorder
	ttl      time.Duration
}

func NewGaugeUpdater(
	store refreshTokenCounter,
	cache core.Cache[int64],
	recorder Recorder,
	ttl time.Duration,
) *GaugeUpdater {
	return &GaugeUpdater{store: store, cache: cache, recorder: recorder, ttl: ttl}
}

// Update reads the active refresh token count and publishes it.
func (g *GaugeUpdater) Update(ctx context.Context) error {
	count, err := g.cache.GetWithFetch(ctx, "refresh_tokens:active", g.ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return g.store.CountActiveRefreshTokens(ctx, time.Now())
		},
	)
	if err != nil {
		return err
	}
	g.recorder.SetActiveRefreshTokensCount(count)
	return nil
}
