package monitor

import (
	"time"

	"vigil/fetcher"
	"vigil/models"
)

// EventKind classifies one extracted entry against retained state.
type EventKind int

const (
	KindUnchanged EventKind = iota
	KindNew
	KindUpdated
)

func (k EventKind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// State is the per-provider memory between polls: the HTTP cache
// validators and the last seen updated-timestamp per entry id. It is
// owned by exactly one poll loop and never shared, so it needs no
// locking.
//
// The seen map is never evicted. It is bounded by the size of the
// provider's feed in practice; unbounded growth is an accepted
// limitation.
type State struct {
	validators fetcher.Validators
	seen       map[string]time.Time
}

func NewState() *State {
	return &State{
		seen: make(map[string]time.Time),
	}
}

// Validators returns the retained cache tokens for the next fetch.
func (s *State) Validators() fetcher.Validators {
	return s.validators
}

// SetValidators stores tokens from a confirmed Changed fetch. A Failed
// fetch must not call this, so the next attempt retries with the same
// validators.
func (s *State) SetValidators(v fetcher.Validators) {
	s.validators = v
}

// Classify decides whether entry is new, updated or already seen, and
// records it. Timestamps only move forward: an entry is Updated only when
// its timestamp is strictly greater than the stored one, so re-polling
// identical content is idempotent and each (id, timestamp) pair yields at
// most one event. State is mutated per entry as classified, not deferred
// to end of batch.
func (s *State) Classify(entry models.Entry) EventKind {
	last, ok := s.seen[entry.ID]
	if !ok {
		s.seen[entry.ID] = entry.UpdatedAt
		return KindNew
	}
	if entry.UpdatedAt.After(last) {
		s.seen[entry.ID] = entry.UpdatedAt
		return KindUpdated
	}
	return KindUnchanged
}

// SeenCount returns the number of tracked entries.
func (s *State) SeenCount() int {
	return len(s.seen)
}
