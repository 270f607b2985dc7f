package db

import (
	"time"

	"database/sql"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"

	"vigil/models"
)

// Writer appends status events to the archive. A single writer instance
// is shared by the archive consumer; SQLite allows one writer at a time.
type Writer struct {
	db *sql.DB
}

func NewWriter(database string) (*Writer, error) {
	db, err := connection(database)
	if err != nil {
		return nil, err
	}
	return &Writer{db: db}, nil
}

// RecordEvent inserts one status event into the archive.
func (writer *Writer) RecordEvent(event models.StatusEvent) error {
	insert := sqlbuilder.NewInsertBuilder()
	sql, args := insert.
		InsertInto("events").
		Cols("provider", "product", "status", "message", "incident_id", "event_type", "timestamp", "received_at").
		Values(
			event.Provider,
			event.Product,
			event.Status,
			event.Message,
			event.IncidentID,
			string(event.EventType),
			event.Timestamp.Unix(),
			time.Now().Unix(),
		).
		Build()

	if _, err := writer.db.Exec(sql, args...); err != nil {
		log.Error("Error inserting event", err)
		return err
	}

	return nil
}

func (writer *Writer) Close() error {
	return writer.db.Close()
}
