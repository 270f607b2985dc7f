package feed_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/feed"
)

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Acme Status - Incident History</title>
  <updated>2025-11-03T15:00:00Z</updated>
  <entry>
    <id>tag:status.acme.com,2025:incident/2</id>
    <title>Elevated error rates</title>
    <updated>2025-11-03T15:00:00Z</updated>
    <summary type="html">&lt;p&gt;We are &lt;b&gt;investigating&lt;/b&gt; elevated error rates.&lt;/p&gt;</summary>
  </entry>
  <entry>
    <id>tag:status.acme.com,2025:incident/1</id>
    <title>Scheduled maintenance</title>
    <updated>2025-11-02T08:30:00Z</updated>
    <summary>Maintenance window completed.</summary>
  </entry>
</feed>`

func TestExtractAtom(t *testing.T) {
	entries, err := feed.Extract([]byte(atomFixture))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Feed order is preserved, no sorting.
	assert.Equal(t, "tag:status.acme.com,2025:incident/2", entries[0].ID)
	assert.Equal(t, "Elevated error rates", entries[0].Title)
	assert.Equal(t, "We are investigating elevated error rates.", entries[0].Summary)
	assert.Equal(t, time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC), entries[0].UpdatedAt.UTC())

	assert.Equal(t, "tag:status.acme.com,2025:incident/1", entries[1].ID)
	assert.Equal(t, "Maintenance window completed.", entries[1].Summary)
}

func TestExtractSkipsEntriesWithoutID(t *testing.T) {
	fixture := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Acme Status</title>
  <entry>
    <title>No id on this one</title>
    <updated>2025-11-03T15:00:00Z</updated>
  </entry>
  <entry>
    <id>incident-1</id>
    <title>Real incident</title>
    <updated>2025-11-03T15:00:00Z</updated>
  </entry>
</feed>`

	entries, err := feed.Extract([]byte(fixture))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "incident-1", entries[0].ID)
}

func TestExtractRSS(t *testing.T) {
	fixture := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Acme Status</title>
    <item>
      <guid>incident-9</guid>
      <title>Partial outage</title>
      <description>Investigating connectivity issues.</description>
      <pubDate>Mon, 03 Nov 2025 15:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	entries, err := feed.Extract([]byte(fixture))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "incident-9", entries[0].ID)
	assert.Equal(t, "Partial outage", entries[0].Title)
	// pubDate stands in for updated when the feed has no update stamp.
	assert.Equal(t, time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC), entries[0].UpdatedAt.UTC())
}

func TestExtractMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "empty body",
			body: "",
		},
		{
			name: "html error page",
			body: "<html><body><h1>502 Bad Gateway</h1></body></html>",
		},
		{
			name: "truncated xml",
			body: `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><entry>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := feed.Extract([]byte(tt.body))
			require.Error(t, err)

			var parseErr *feed.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}
