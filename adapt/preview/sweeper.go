/*
sweeper.go - Expired preview cleanup

PURPOSE:
  Previews carry a bounded TTL and are simply ignored once expired; the
  sweeper reclaims the rows on an interval so the table does not grow
  without bound. Purely hygienic - correctness never depends on it.

USAGE:
  sweeper := preview.NewSweeper(store)
  go sweeper.Run(ctx)

SEE ALSO:
  - adapt/store.go: DeleteExpired contract
*/
package preview

import (
	"context"
	"log"
	"time"

	"github.com/hristiyan90/momentom/adapt"
)

// DefaultSweepInterval balances table hygiene against store churn.
const DefaultSweepInterval = 1 * time.Hour

// Sweeper periodically removes expired previews.
type Sweeper struct {
	Previews adapt.PreviewStore
	Interval time.Duration    // zero => DefaultSweepInterval
	Now      func() time.Time // nil => time.Now
}

func NewSweeper(previews adapt.PreviewStore) *Sweeper {
	return &Sweeper{Previews: previews, Interval: DefaultSweepInterval, Now: time.Now}
}

// Run sweeps until ctx is canceled. Failures are logged and the next
// tick retries; a failed sweep never affects request handling.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	n, err := s.Previews.DeleteExpired(ctx, now)
	if err != nil {
		log.Printf("preview sweeper: delete expired failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("preview sweeper: removed %d expired previews", n)
	}
}
