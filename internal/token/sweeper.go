package token

import (
	"context"
	"time"

	"qrattend/internal/clock"
	"qrattend/internal/logger"
	"qrattend/internal/metrics"
)

// Staler flips time-expired active tokens to expired.
type Staler interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// Sweep runs ExpireStale every interval until ctx is done. Status sweeping only
// tidies the table; submissions always compare expires_at against the clock.
func Sweep(ctx context.Context, tokens Staler, clk clock.Clock, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.ExpireStale(ctx, clk.Now())
			if err != nil {
				if ctx.Err() == nil {
					logger.Log.WithError(err).Error("token sweep failed")
				}
				continue
			}
			if n > 0 {
				metrics.TokensExpired.WithLabelValues(metrics.TriggerSweep).Add(float64(n))
				logger.WithField("count", n).Info("expired stale tokens")
			}
		}
	}
}
