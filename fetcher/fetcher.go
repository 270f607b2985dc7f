package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Add Prometheus metrics
var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_fetch_attempts_total",
		Help: "The total number of feed fetch attempts",
	})

	fetchNotModified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_fetch_not_modified_total",
		Help: "The total number of 304 Not Modified responses",
	})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_fetch_failures_total",
		Help: "The total number of failed feed fetches by class",
	}, []string{"class"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vigil_fetch_duration_seconds",
		Help:    "Duration of feed fetch requests",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // Start at 10ms, double each bucket, 10 buckets
	})
)

// DefaultTimeout bounds a single fetch including body read.
const DefaultTimeout = 10 * time.Second

// Validators are the cache tokens retained between polls of one feed.
// They are carried as conditional headers so the server can answer
// 304 Not Modified instead of resending an unchanged feed.
type Validators struct {
	ETag         string
	LastModified string
}

// Outcome classifies a single fetch.
type Outcome int

const (
	// Unchanged means the server confirmed the feed did not change.
	Unchanged Outcome = iota
	// Changed means the server returned a fresh body.
	Changed
	// Failed means transport error, timeout or an unexpected status.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result of one fetch. Body and Validators are only meaningful when
// Outcome is Changed; Err is only set when Outcome is Failed.
type Result struct {
	Outcome    Outcome
	Body       []byte
	Validators Validators
	Err        error
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Fetcher performs conditional HTTP GETs against status feeds. It keeps
// no per-feed state and is safe to use from many goroutines; the caller
// is responsible for bounding concurrency.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

func New(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch gets url, sending the previous validators as If-None-Match and
// If-Modified-Since when present. A Changed result carries new validators
// from the response, falling back to the previous value for any header
// the server omitted so the next conditional request stays as strong as
// possible.
func (f *Fetcher) Fetch(ctx context.Context, url string, prev Validators) Result {
	fetchAttempts.Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fetchFailures.WithLabelValues("request").Inc()
		return Result{Outcome: Failed, Err: fmt.Errorf("building request: %w", err)}
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if prev.ETag != "" {
		req.Header.Set("If-None-Match", prev.ETag)
	}
	if prev.LastModified != "" {
		req.Header.Set("If-Modified-Since", prev.LastModified)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		fetchFailures.WithLabelValues("transport").Inc()
		return Result{Outcome: Failed, Err: fmt.Errorf("fetching %s: %w", url, err)}
	}
	defer resp.Body.Close()
	defer fetchDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNotModified {
		fetchNotModified.Inc()
		return Result{Outcome: Unchanged, Validators: prev}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fetchFailures.WithLabelValues("status").Inc()
		return Result{Outcome: Failed, Err: &StatusError{Code: resp.StatusCode}}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fetchFailures.WithLabelValues("body").Inc()
		return Result{Outcome: Failed, Err: fmt.Errorf("reading body from %s: %w", url, err)}
	}

	next := Validators{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if next.ETag == "" {
		next.ETag = prev.ETag
	}
	if next.LastModified == "" {
		next.LastModified = prev.LastModified
	}

	log.WithFields(log.Fields{
		"url":    url,
		"status": resp.StatusCode,
		"size":   bytes.Format(int64(len(body))),
	}).Debug("Fetched feed")

	return Result{Outcome: Changed, Body: body, Validators: next}
}
