package consumers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"vigil/db"
	"vigil/events"
)

// Archive records every status event in the SQLite event log that backs
// the dashboard's history endpoints. A write failure is logged and the
// event dropped from the archive only; live consumers are unaffected.
type Archive struct {
	bus    *events.Bus
	writer *db.Writer
}

func NewArchive(bus *events.Bus, writer *db.Writer) *Archive {
	return &Archive{bus: bus, writer: writer}
}

// Run consumes events until ctx is cancelled.
func (a *Archive) Run(ctx context.Context) {
	sub := a.bus.Subscribe()
	defer sub.Unsubscribe()

	log.Info("Archive consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Archive consumer stopped")
			return
		case event := <-sub.C:
			if err := a.writer.RecordEvent(event); err != nil {
				log.WithFields(log.Fields{
					"provider": event.Provider,
					"incident": event.IncidentID,
				}).WithError(err).Error("Failed to archive event")
			}
		}
	}
}
