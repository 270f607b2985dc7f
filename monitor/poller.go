package monitor

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"vigil/config"
	"vigil/events"
	"vigil/feed"
	"vigil/fetcher"
	"vigil/models"
)

var (
	pollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_poll_cycles_total",
		Help: "The total number of poll cycles by provider and result",
	}, []string{"provider", "result"})

	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_events_emitted_total",
		Help: "The total number of change events emitted by provider and type",
	}, []string{"provider", "type"})
)

// maxJitter is added uniformly at random to every sleep so providers
// that share an interval drift apart instead of re-aligning over long
// runs.
const maxJitter = 5 * time.Second

// Fetcher is the conditional HTTP fetch contract the poll loop depends
// on. fetcher.Fetcher satisfies it; tests substitute stubs.
type Fetcher interface {
	Fetch(ctx context.Context, url string, prev fetcher.Validators) fetcher.Result
}

// Extractor turns a fetched body into ordered feed entries.
type Extractor func(body []byte) ([]models.Entry, error)

// Poller runs the fetch → extract → classify → publish cycle for a
// single provider. All mutable state (validators, seen entries, backoff)
// is owned by the poller and touched only from its own goroutine.
type Poller struct {
	provider config.Provider
	fetch    Fetcher
	extract  Extractor
	bus      *events.Bus
	permits  *semaphore.Weighted
	state    *State
	backoff  *Backoff
}

func NewPoller(provider config.Provider, fetch Fetcher, extract Extractor, bus *events.Bus, permits *semaphore.Weighted) *Poller {
	return &Poller{
		provider: provider,
		fetch:    fetch,
		extract:  extract,
		bus:      bus,
		permits:  permits,
		state:    NewState(),
		backoff:  NewBackoff(provider.Interval()),
	}
}

// Provider returns the registry entry this poller watches.
func (p *Poller) Provider() config.Provider {
	return p.provider
}

// Run polls the provider until ctx is cancelled. Every per-cycle error
// is contained here: it is logged, folded into the backoff interval, and
// never terminates the loop.
func (p *Poller) Run(ctx context.Context) {
	log.WithFields(log.Fields{
		"provider": p.provider.Name,
		"interval": p.provider.Interval(),
	}).Info("Starting poll loop")

	for {
		err := p.PollOnce(ctx)
		if ctx.Err() != nil {
			log.WithFields(log.Fields{
				"provider": p.provider.Name,
			}).Info("Poll loop stopped")
			return
		}

		if err != nil {
			p.backoff.Failure()
			p.logFailure(err)
			pollCycles.WithLabelValues(p.provider.Name, "failure").Inc()
		} else {
			p.backoff.Success()
			pollCycles.WithLabelValues(p.provider.Name, "success").Inc()
		}

		wait := p.backoff.Interval() + time.Duration(rand.Int63n(int64(maxJitter)))
		select {
		case <-ctx.Done():
			log.WithFields(log.Fields{
				"provider": p.provider.Name,
			}).Info("Poll loop stopped")
			return
		case <-time.After(wait):
		}
	}
}

// PollOnce executes a single poll cycle: acquire a fetch permit, fetch
// with the retained validators, extract, classify and publish change
// events. Also used directly by the check command for one-shot polls.
func (p *Poller) PollOnce(ctx context.Context) error {
	if err := p.permits.Acquire(ctx, 1); err != nil {
		return err
	}
	result := p.fetch.Fetch(ctx, p.provider.FeedURL, p.state.Validators())
	p.permits.Release(1)

	switch result.Outcome {
	case fetcher.Unchanged:
		log.WithFields(log.Fields{
			"provider": p.provider.Name,
		}).Debug("Feed not modified")
		return nil
	case fetcher.Failed:
		return result.Err
	}

	entries, err := p.extract(result.Body)
	if err != nil {
		return err
	}

	// Validators are stored only once the changed body proved usable, so
	// a parse failure retries with the previous tokens instead of getting
	// 304s for a body we never processed.
	p.state.SetValidators(result.Validators)

	for _, entry := range entries {
		kind := p.state.Classify(entry)
		if kind == KindUnchanged {
			continue
		}
		if err := p.bus.Publish(ctx, p.buildEvent(entry, kind)); err != nil {
			return err
		}
		eventsEmitted.WithLabelValues(p.provider.Name, kind.String()).Inc()
		log.WithFields(log.Fields{
			"provider": p.provider.Name,
			"incident": entry.ID,
			"kind":     kind.String(),
			"title":    entry.Title,
		}).Info("Status change detected")
	}

	return nil
}

func (p *Poller) buildEvent(entry models.Entry, kind EventKind) models.StatusEvent {
	timestamp := entry.UpdatedAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	eventType := models.EventTypeNew
	if kind == KindUpdated {
		eventType = models.EventTypeUpdated
	}

	return models.StatusEvent{
		Provider:   p.provider.Name,
		Product:    p.provider.Product + " - " + entry.Title,
		Status:     entry.Title,
		Message:    entry.Summary,
		Timestamp:  timestamp,
		IncidentID: entry.ID,
		EventType:  eventType,
	}
}

func (p *Poller) logFailure(err error) {
	fields := log.Fields{
		"provider": p.provider.Name,
		"failures": p.backoff.Failures(),
		"backoff":  p.backoff.Interval(),
	}

	var parseErr *feed.ParseError
	if errors.As(err, &parseErr) {
		log.WithFields(fields).WithError(err).Warn("Feed could not be parsed, provider may have changed format")
		return
	}
	log.WithFields(fields).WithError(err).Error("Poll cycle failed")
}
