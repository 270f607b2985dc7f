package db

import (
	"time"

	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// retention is how long archived events are kept.
const retention = 90 * 24 * time.Hour

// Tidy removes archived events older than the retention window so the
// archive does not grow without bound.
func Tidy(database string) error {
	db, err := connection(database)
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := time.Now().Add(-retention).Unix()
	deleteEvents := sb.NewDeleteBuilder()
	sql, args := deleteEvents.DeleteFrom("events").Where(deleteEvents.LessEqualThan("received_at", cutoff)).Build()

	result, err := db.Exec(sql, args...)
	if err != nil {
		return err
	}

	removed, _ := result.RowsAffected()
	log.WithFields(log.Fields{
		"removed": removed,
	}).Info("Tidied event archive")

	return nil
}
