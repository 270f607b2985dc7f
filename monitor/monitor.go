// Package monitor contains the ingestion pipeline: per-provider poll
// loops with retained state and backoff, supervised under a shared fetch
// concurrency budget.
package monitor

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"vigil/config"
	"vigil/events"
)

// startStagger spaces out poll loop launches so startup itself does not
// burst requests at every provider at once.
const startStagger = 300 * time.Millisecond

// Monitor supervises one poll loop per configured provider. All loops
// share a single permit pool bounding the number of in-flight fetches.
type Monitor struct {
	pollers []*Poller
	permits *semaphore.Weighted
}

func New(cfg *config.Config, bus *events.Bus, fetch Fetcher, extract Extractor) *Monitor {
	permits := semaphore.NewWeighted(int64(cfg.Fetch.MaxConcurrent))

	pollers := make([]*Poller, 0, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		pollers = append(pollers, NewPoller(provider, fetch, extract, bus, permits))
	}

	return &Monitor{
		pollers: pollers,
		permits: permits,
	}
}

// Pollers returns the supervised pollers, in registry order.
func (m *Monitor) Pollers() []*Poller {
	return m.pollers
}

// Run launches every poll loop with a staggered delay and blocks until
// ctx is cancelled and all loops have returned. A loop that panics is
// logged as fatal for that provider only and is not restarted; the
// remaining providers keep polling.
func (m *Monitor) Run(ctx context.Context) {
	log.WithFields(log.Fields{
		"providers": len(m.pollers),
	}).Info("Starting monitor")

	var wg sync.WaitGroup

launch:
	for i, poller := range m.pollers {
		if i > 0 {
			select {
			case <-ctx.Done():
				break launch
			case <-time.After(startStagger):
			}
		}

		wg.Add(1)
		go func(p *Poller) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"provider": p.Provider().Name,
						"panic":    r,
					}).Error("Poll loop crashed, provider is no longer monitored")
				}
			}()
			p.Run(ctx)
		}(poller)
	}

	wg.Wait()
	log.Info("All poll loops stopped")
}
