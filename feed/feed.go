// Package feed extracts status entries from raw Atom/RSS bodies.
package feed

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"

	"vigil/models"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// ParseError is returned when a feed body cannot be interpreted. It gets
// its own type so the poll loop can log it with a distinct signature:
// unlike a transport error it usually means the provider changed its feed
// format and an operator should look at it.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parsing feed: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Extract parses body and returns the entries in feed order. Entries
// without a stable id are skipped since they cannot be deduplicated.
func Extract(body []byte) ([]models.Entry, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	entries := make([]models.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.GUID == "" {
			log.WithFields(log.Fields{
				"title": item.Title,
			}).Debug("Skipping feed entry without id")
			continue
		}

		entry := models.Entry{
			ID:      item.GUID,
			Title:   item.Title,
			Summary: stripHTML(pickSummary(item)),
		}
		if item.UpdatedParsed != nil {
			entry.UpdatedAt = *item.UpdatedParsed
		} else if item.PublishedParsed != nil {
			entry.UpdatedAt = *item.PublishedParsed
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Prefer the summary; fall back to the content field.
func pickSummary(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

func stripHTML(raw string) string {
	text := htmlTagPattern.ReplaceAllString(raw, "")
	return strings.TrimSpace(html.UnescapeString(text))
}
