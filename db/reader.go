package db

import (
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"

	"vigil/models"
)

// Reader serves archived events to the dashboard endpoints.
type Reader struct {
	db *sql.DB
}

func NewReader(database string) (*Reader, error) {
	// Open in read-only mode with optimized settings
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?mode=ro&_pragma=journal_mode(WAL)", database))
	if err != nil {
		return nil, err
	}

	// Allow multiple concurrent readers
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Hour)

	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA synchronous = NORMAL;
		PRAGMA cache_size = -32000; -- 32MB cache
		PRAGMA temp_store = MEMORY;
	`); err != nil {
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return &Reader{db: db}, nil
}

// RecentEvents returns the latest archived events, newest first,
// optionally filtered by provider.
func (reader *Reader) RecentEvents(provider string, limit int) ([]models.StatusEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("provider", "product", "status", "message", "incident_id", "event_type", "timestamp").From("events")
	if provider != "" {
		sb.Where(sb.Equal("provider", provider))
	}
	sb.OrderBy("id").Desc()
	sb.Limit(limit)

	sql, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	rows, err := reader.db.Query(sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var eventList []models.StatusEvent
	for rows.Next() {
		var event models.StatusEvent
		var eventType string
		var timestamp int64
		if err := rows.Scan(&event.Provider, &event.Product, &event.Status, &event.Message, &event.IncidentID, &eventType, &timestamp); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		event.EventType = models.EventType(eventType)
		event.Timestamp = time.Unix(timestamp, 0).UTC()
		eventList = append(eventList, event)
	}

	return eventList, nil
}

// GetEventCountPerTime returns the number of archived events per hour,
// day or week, optionally filtered by provider.
func (reader *Reader) GetEventCountPerTime(provider string, timeAgg string) ([]models.EventsAggregatedByTime, error) {
	var sqlFormat string
	var timeLayout string

	switch timeAgg {
	case "day":
		sqlFormat = `STRFTIME('%Y-%m-%d', received_at, 'unixepoch')`
		timeLayout = "2006-01-02"
	case "week":
		sqlFormat = `STRFTIME('%Y-%W', received_at, 'unixepoch')`
		timeLayout = ""
	default:
		sqlFormat = `STRFTIME('%Y-%m-%d-%H', received_at, 'unixepoch')`
		timeLayout = "2006-01-02-15"
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(sqlFormat, "count(*) as count").From("events")
	if provider != "" {
		sb.Where(sb.Equal("provider", provider))
	}
	sb.GroupBy(sqlFormat)
	sb.OrderBy("received_at").Asc()

	sql, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	rows, err := reader.db.Query(sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.EventsAggregatedByTime

	for rows.Next() {
		var sqlTime string
		var count models.EventsAggregatedByTime

		if err := rows.Scan(&sqlTime, &count.Count); err != nil {
			continue // Skip this row
		}

		if timeLayout != "" {
			if bucketTime, err := time.Parse(timeLayout, sqlTime); err == nil {
				count.Time = bucketTime
			}
		} else if bucketTime, err := parseYearWeek(sqlTime); err == nil {
			count.Time = bucketTime
		}
		counts = append(counts, count)
	}

	return counts, nil
}

func (reader *Reader) Close() error {
	return reader.db.Close()
}

// parseYearWeek turns STRFTIME's %Y-%W output into the first day of that
// week.
func parseYearWeek(str string) (time.Time, error) {
	if len(str) < 6 {
		return time.Time{}, fmt.Errorf("invalid year-week %q", str)
	}
	year, err := time.Parse("2006", str[:4])
	if err != nil {
		return time.Time{}, err
	}
	var week int
	if _, err := fmt.Sscanf(str[5:], "%d", &week); err != nil {
		return time.Time{}, err
	}
	return year.AddDate(0, 0, week*7), nil
}
