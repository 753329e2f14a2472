package builder

import (
	"encoding/xml"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/sighting"
)

// feedDoc is the reader's view of feed.xml, enough to assert on.
type feedDoc struct {
	Channel struct {
		Title         string `xml:"title"`
		Link          string `xml:"link"`
		Description   string `xml:"description"`
		Language      string `xml:"language"`
		LastBuildDate string `xml:"lastBuildDate"`
		Items         []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			GUID        string `xml:"guid"`
			PubDate     string `xml:"pubDate"`
			Description string `xml:"description"`
			Enclosure   struct {
				URL    string `xml:"url,attr"`
				Length int64  `xml:"length,attr"`
				Type   string `xml:"type,attr"`
			} `xml:"enclosure"`
		} `xml:"item"`
	} `xml:"channel"`
}

func readFeed(t *testing.T, j *testJournal) (feedDoc, []byte) {
	t.Helper()
	raw, err := os.ReadFile(j.outputPath("feed.xml"))
	require.NoError(t, err)
	var doc feedDoc
	require.NoError(t, xml.Unmarshal(raw, &doc))
	return doc, raw
}

func TestFeedMergesNewestFirst(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	j.seedSighting(t, "20260810-001", "Garden Spider", "Araneus diadematus", "arachnid",
		time.Date(2026, time.August, 10, 9, 15, 0, 0, time.UTC))
	j.seedSighting(t, "20260815-001", "Seven-Spot Ladybird", "Coccinella septempunctata", "insect",
		time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC))
	j.seedPost(t, "2026-08-16", "A good week", "", "Two finds in the hedge.")

	j.build(t)
	doc, _ := readFeed(t, j)

	require.Len(t, doc.Channel.Items, 3)
	assert.Equal(t, "A good week", doc.Channel.Items[0].Title)
	assert.Equal(t, "Sighting: Seven-Spot Ladybird", doc.Channel.Items[1].Title)
	assert.Equal(t, "Sighting: Garden Spider", doc.Channel.Items[2].Title)

	assert.Equal(t, "Sun, 16 Aug 2026 00:00:00 +0000", doc.Channel.Items[0].PubDate)
	assert.Equal(t, "Sat, 15 Aug 2026 14:30:00 +0000", doc.Channel.Items[1].PubDate)

	// The channel timestamp mirrors the newest item, not the build clock
	assert.Equal(t, doc.Channel.Items[0].PubDate, doc.Channel.LastBuildDate)

	assert.Equal(t, "https://example.org/posts/2026-08-16.html", doc.Channel.Items[0].Link)
	assert.Equal(t, doc.Channel.Items[0].Link, doc.Channel.Items[0].GUID)
	assert.Equal(t, "Garden Field Log", doc.Channel.Title)
	assert.Equal(t, "https://example.org", doc.Channel.Link)
	assert.Equal(t, "en", doc.Channel.Language)
}

func TestFeedRespectsCaps(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Feed.MaxSightings = 2
	settings.Feed.MaxPosts = 1

	j := newTestJournalWith(t, settings)
	for day := 10; day <= 13; day++ {
		id := "202608" + itoa2(day) + "-001"
		j.seedSighting(t, id, "Garden Spider", "Araneus diadematus", "arachnid",
			time.Date(2026, time.August, day, 9, 0, 0, 0, time.UTC))
	}
	j.seedPost(t, "2026-08-14", "Older notes", "", "First post.")
	j.seedPost(t, "2026-08-20", "Newer notes", "", "Second post.")

	j.build(t)
	doc, _ := readFeed(t, j)

	require.Len(t, doc.Channel.Items, 3)
	assert.Equal(t, "Newer notes", doc.Channel.Items[0].Title)
	assert.Contains(t, doc.Channel.Items[1].Link, "20260813-001")
	assert.Contains(t, doc.Channel.Items[2].Link, "20260812-001")
}

// itoa2 renders a two-digit day for sighting ids.
func itoa2(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

func TestFeedSightingDescription(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	j.seedSighting(t, "20260815-001", "Seven-Spot Ladybird", "Coccinella septempunctata", "insect",
		time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC))

	j.build(t)
	doc, raw := readFeed(t, j)

	require.Len(t, doc.Channel.Items, 1)
	item := doc.Channel.Items[0]

	assert.Contains(t, item.Description, `<img src="https://example.org/images/web/20260815-001-a.jpg"`)
	assert.Contains(t, item.Description, "<strong>Seven-Spot Ladybird</strong>")
	assert.Contains(t, item.Description, "<em>(Coccinella septempunctata)</em>")
	assert.Contains(t, item.Description, "Category: Insect | Season: Summer")
	assert.Contains(t, item.Description, "Spotted near the compost bin")

	// Markup survives as CDATA rather than entity soup
	assert.Contains(t, string(raw), "<![CDATA[")

	assert.Equal(t, "https://example.org/images/web/20260815-001-a.jpg", item.Enclosure.URL)
	assert.Equal(t, int64(len("web bytes")), item.Enclosure.Length)
	assert.Equal(t, "image/jpeg", item.Enclosure.Type)
}

func TestFeedSightingWeatherLine(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	j.seedSighting(t, "20260815-001", "Seven-Spot Ladybird", "Coccinella septempunctata", "insect",
		time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC))

	require.NoError(t, j.sightings.SetEnrichment("20260815-001",
		&sighting.Weather{TempMaxC: 21.4, TempMinC: 12.1, Conditions: "Slight rain"}, nil))

	j.build(t)
	doc, _ := readFeed(t, j)

	require.Len(t, doc.Channel.Items, 1)
	assert.Contains(t, doc.Channel.Items[0].Description, "Weather: 21.4°C, Slight rain")
}

func TestFeedPostDescriptionIsPlainText(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	j.seedPost(t, "2026-08-16", "A good week", "", "Two finds in the **hedge**, see [notes](https://example.org).")

	j.build(t)
	doc, _ := readFeed(t, j)

	require.Len(t, doc.Channel.Items, 1)
	description := doc.Channel.Items[0].Description
	assert.Contains(t, description, "hedge")
	assert.NotContains(t, description, "<strong>")
	assert.NotContains(t, description, "**")
}

func TestFeedSelfLinkAndHeader(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	j.build(t)
	_, raw := readFeed(t, j)

	content := string(raw)
	assert.True(t, strings.HasPrefix(content, xml.Header))
	assert.Contains(t, content, `<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	assert.Contains(t, content, `<atom:link href="https://example.org/feed.xml" rel="self" type="application/rss+xml">`)
}

func TestFeedEmptyJournal(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	j.build(t)
	doc, _ := readFeed(t, j)

	assert.Empty(t, doc.Channel.Items)
	assert.Empty(t, doc.Channel.LastBuildDate)
}

func TestFeedEscapesUserText(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	j.seedSighting(t, "20260815-001", "Black & Yellow Longhorn", "Rutpela maculata", "insect",
		time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC))

	j.build(t)
	doc, _ := readFeed(t, j)

	require.Len(t, doc.Channel.Items, 1)
	assert.Equal(t, "Sighting: Black & Yellow Longhorn", doc.Channel.Items[0].Title)
	assert.Contains(t, doc.Channel.Items[0].Description, "<strong>Black &amp; Yellow Longhorn</strong>")
}
