package builder

import (
	"encoding/xml"
	"fmt"
	"html"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/k3a/html2text"

	"github.com/tkivisto/fieldlog/internal/post"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// rssTimeLayout is the RFC 822 shape feed readers expect, pinned to UTC.
const rssTimeLayout = "Mon, 02 Jan 2006 15:04:05 +0000"

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	AtomNS  string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	GUID        string        `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Description cdataText     `xml:"description"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

// cdataText keeps markup in descriptions readable instead of
// entity-escaping every tag.
type cdataText struct {
	Text string `xml:",cdata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// feedEntry pairs a rendered item with its sort position.
type feedEntry struct {
	item rssItem
	at   time.Time
	key  string
}

// writeFeed renders feed.xml from the newest sightings and posts, each
// capped independently by the feed settings. The channel's lastBuildDate
// mirrors the newest item instead of the wall clock, keeping rebuilds of
// an unchanged journal byte-identical.
func (b *Builder) writeFeed(entries []sighting.Sighting, posts []post.Post, bodies map[string]template.HTML) (int, error) {
	base := strings.TrimRight(b.settings.Site.BaseURL, "/")

	var feedEntries []feedEntry
	maxSightings := b.settings.Feed.MaxSightings
	for i := range entries {
		if i >= maxSightings {
			break
		}
		feedEntries = append(feedEntries, b.sightingItem(&entries[i], base))
	}

	maxPosts := b.settings.Feed.MaxPosts
	for i, taken := len(posts)-1, 0; i >= 0 && taken < maxPosts; i, taken = i-1, taken+1 {
		feedEntries = append(feedEntries, b.postItem(&posts[i], bodies, base))
	}

	sort.SliceStable(feedEntries, func(i, j int) bool {
		if !feedEntries[i].at.Equal(feedEntries[j].at) {
			return feedEntries[i].at.After(feedEntries[j].at)
		}
		return feedEntries[i].key > feedEntries[j].key
	})

	items := make([]rssItem, 0, len(feedEntries))
	for _, fe := range feedEntries {
		items = append(items, fe.item)
	}

	feed := rssFeed{
		Version: "2.0",
		AtomNS:  "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:       b.settings.Site.Title,
			Link:        base,
			Description: b.settings.Site.Description,
			Language:    "en",
			AtomLink: atomLink{
				Href: base + "/feed.xml",
				Rel:  "self",
				Type: "application/rss+xml",
			},
			Items: items,
		},
	}
	if len(items) > 0 {
		feed.Channel.LastBuildDate = items[0].PubDate
	}

	body, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return 0, outputError(err, "marshal_feed", "feed.xml")
	}
	payload := append([]byte(xml.Header), body...)
	payload = append(payload, '\n')

	target := filepath.Join(b.settings.Journal.OutputDir, "feed.xml")
	if err := os.WriteFile(target, payload, pageFileMode); err != nil {
		return 0, outputError(err, "write_feed", "feed.xml")
	}
	return len(items), nil
}

func (b *Builder) sightingItem(e *sighting.Sighting, base string) feedEntry {
	link := base + "/sightings/" + e.ID + ".html"
	item := rssItem{
		Title:       "Sighting: " + e.CommonName,
		Link:        link,
		GUID:        link,
		PubDate:     e.CapturedAt.UTC().Format(rssTimeLayout),
		Description: cdataText{Text: sightingDescription(e, base)},
	}

	if lead := e.LeadImage(); lead != "" {
		path := filepath.Join(b.settings.ImageVariantDir("web"), lead)
		if info, err := os.Stat(path); err == nil {
			item.Enclosure = &rssEnclosure{
				URL:    base + "/images/web/" + lead,
				Length: info.Size(),
				Type:   "image/jpeg",
			}
		}
	}
	return feedEntry{item: item, at: e.CapturedAt, key: e.ID}
}

func sightingDescription(e *sighting.Sighting, base string) string {
	var sb strings.Builder
	name := html.EscapeString(e.CommonName)

	if lead := e.LeadImage(); lead != "" {
		fmt.Fprintf(&sb, `<img src="%s/images/web/%s" alt="%s"/>`, base, lead, name)
	}
	sb.WriteString("<p><strong>" + name + "</strong>")
	if e.ScientificName != "" {
		sb.WriteString(" <em>(" + html.EscapeString(e.ScientificName) + ")</em>")
	}
	sb.WriteString("</p>")
	fmt.Fprintf(&sb, "<p>Category: %s | Season: %s</p>",
		html.EscapeString(titleCase(e.Category)),
		html.EscapeString(titleCase(e.Season)))
	if e.Notes != "" {
		sb.WriteString("<p>" + html.EscapeString(e.Notes) + "</p>")
	}
	if w := e.Weather; w != nil {
		fmt.Fprintf(&sb, "<p>Weather: %.1f°C", w.TempMaxC)
		if w.Conditions != "" {
			sb.WriteString(", " + html.EscapeString(w.Conditions))
		}
		sb.WriteString("</p>")
	}
	return sb.String()
}

// postItem lifts the post's calendar date to midnight UTC so the date a
// reader sees matches the filename regardless of their feed client's
// timezone handling.
func (b *Builder) postItem(p *post.Post, bodies map[string]template.HTML, base string) feedEntry {
	year, month, day := p.Date.Date()
	published := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	link := base + "/posts/" + p.Slug + ".html"

	item := rssItem{
		Title:       p.Title,
		Link:        link,
		GUID:        link,
		PubDate:     published.Format(rssTimeLayout),
		Description: cdataText{Text: strings.TrimSpace(html2text.HTML2Text(string(bodies[p.Slug])))},
	}
	return feedEntry{item: item, at: published, key: published.Format(time.DateOnly)}
}
