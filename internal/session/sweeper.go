package session

import (
	"context"
	"log"
	"time"

	"tenantauth/backend/internal/session/repository"
)

// Sweeper periodically bulk-deletes expired sessions, bounding staleness even
// without read traffic. It races harmlessly with lazy deletion on Get.
type Sweeper struct {
	repo     repository.Repository
	interval time.Duration
	nowF     func() time.Time
}

// NewSweeper returns a Sweeper over repo. interval defaults to 15 minutes
// when non-positive.
func NewSweeper(repo repository.Repository, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{repo: repo, interval: interval, nowF: func() time.Time { return time.Now().UTC() }}
}

// SweepOnce deletes all currently expired sessions and returns the count.
func (w *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	return w.repo.DeleteExpired(ctx, w.nowF())
}

// Run sweeps on the configured interval until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.SweepOnce(ctx)
			if err != nil {
				log.Printf("session sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("session sweep: removed %d expired sessions", n)
			}
		}
	}
}
