package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/post"
	"github.com/tkivisto/fieldlog/internal/sighting"
	"github.com/tkivisto/fieldlog/internal/taxonomy"
)

// Page is the chrome every rendered page shares.
type Page struct {
	Site      conf.SiteSettings
	PageTitle string
}

func (b *Builder) page(title string) Page {
	return Page{Site: b.settings.Site, PageTitle: title}
}

// sightingCard is the list-view projection of a sighting, shared by the
// home grid, browse, listings and linked-sighting sections.
type sightingCard struct {
	ID             string
	CommonName     string
	ScientificName string
	Category       string
	Season         string
	Captured       time.Time
	Thumb          string
	URL            string
}

func (b *Builder) card(e *sighting.Sighting) sightingCard {
	card := sightingCard{
		ID:             e.ID,
		CommonName:     e.CommonName,
		ScientificName: e.ScientificName,
		Category:       e.Category,
		Season:         e.Season,
		Captured:       e.CapturedAt.In(b.location),
		URL:            "/sightings/" + e.ID + ".html",
	}
	if lead := e.LeadImage(); lead != "" {
		card.Thumb = "/images/thumb/" + lead
	}
	return card
}

func (b *Builder) cards(entries []sighting.Sighting) []sightingCard {
	cards := make([]sightingCard, 0, len(entries))
	for i := range entries {
		cards = append(cards, b.card(&entries[i]))
	}
	return cards
}

// postCard is the list-view projection of a post.
type postCard struct {
	Title    string
	URL      string
	Date     string
	CoverURL string
}

// postCards projects posts newest first; Load returns them oldest first.
func (b *Builder) postCards(posts []post.Post, covers map[string]string) []postCard {
	cards := make([]postCard, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		p := posts[i]
		cards = append(cards, postCard{
			Title:    p.Title,
			URL:      "/posts/" + p.Slug + ".html",
			Date:     formatDate(p.Date),
			CoverURL: covers[p.Slug],
		})
	}
	return cards
}

const (
	indexLatestCount = 6
	indexRecentPosts = 3
)

type indexData struct {
	Page
	Latest         []sightingCard
	TotalSightings int
	RecentPosts    []postCard
	QuickTotal     int
	QuickSpecies   int
}

func (b *Builder) renderIndex(entries []sighting.Sighting, posts []post.Post, covers map[string]string) error {
	latest := entries
	if len(latest) > indexLatestCount {
		latest = latest[:indexLatestCount]
	}
	recent := b.postCards(posts, covers)
	if len(recent) > indexRecentPosts {
		recent = recent[:indexRecentPosts]
	}
	quickStats := b.quick.Stats()

	data := indexData{
		Page:           b.page("Home"),
		Latest:         b.cards(latest),
		TotalSightings: len(entries),
		RecentPosts:    recent,
		QuickTotal:     quickStats.TotalLogged,
		QuickSpecies:   quickStats.UniqueSpecies,
	}
	return b.writePage("index.html", "index", data)
}

type aboutData struct {
	Page
	Paragraphs []string
}

func (b *Builder) renderAbout() error {
	var paragraphs []string
	for _, block := range strings.Split(b.settings.Site.About, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return b.writePage("about.html", "about", aboutData{Page: b.page("About"), Paragraphs: paragraphs})
}

type browseData struct {
	Page
	Categories []string
	Seasons    []string
	Cards      []sightingCard
}

func (b *Builder) renderBrowse(entries []sighting.Sighting) error {
	data := browseData{
		Page:       b.page("Browse"),
		Categories: b.settings.Categories,
		Seasons:    b.settings.SeasonNames(),
		Cards:      b.cards(entries),
	}
	return b.writePage("browse.html", "browse", data)
}

type sightingsIndexData struct {
	Page
	Cards []sightingCard
}

type imageView struct {
	Web     string
	Full    string
	Caption string
}

type navRef struct {
	URL   string
	Label string
}

type sightingPage struct {
	Page
	Entry        sighting.Sighting
	Images       []imageView
	Date         string
	Time         string
	SizeLabel    string
	Illumination string
	GBIFLink     string
	Prev         *navRef
	Next         *navRef
}

func (b *Builder) renderSightingPages(entries []sighting.Sighting) error {
	index := sightingsIndexData{Page: b.page("All sightings"), Cards: b.cards(entries)}
	if err := b.writePage("sightings/index.html", "sightings-index", index); err != nil {
		return err
	}

	for i := range entries {
		e := entries[i]
		captured := e.CapturedAt.In(b.location)
		data := sightingPage{
			Page:  b.page(e.CommonName),
			Entry: e,
			Date:  formatDate(captured),
			Time:  captured.Format("15:04"),
		}
		for _, img := range e.Images {
			data.Images = append(data.Images, imageView{
				Web:     "/images/web/" + img.Filename,
				Full:    "/images/full/" + img.Filename,
				Caption: img.Caption,
			})
		}
		if e.SizeMM != nil {
			data.SizeLabel = strconv.FormatFloat(*e.SizeMM, 'f', -1, 64) + " mm"
		}
		if c := e.Celestial; c != nil {
			data.Illumination = fmt.Sprintf("%d%%", int(math.Round(c.MoonIllumination*100)))
		}
		if taxon := b.gbif.Cached(e.ScientificName); taxon != nil && taxon.GBIFKey > 0 {
			data.GBIFLink = fmt.Sprintf("https://www.gbif.org/species/%d", taxon.GBIFKey)
		}
		// Entries run newest first, so prev points at the newer neighbour.
		if i > 0 {
			data.Prev = &navRef{URL: "/sightings/" + entries[i-1].ID + ".html", Label: entries[i-1].CommonName}
		}
		if i+1 < len(entries) {
			data.Next = &navRef{URL: "/sightings/" + entries[i+1].ID + ".html", Label: entries[i+1].CommonName}
		}
		if err := b.writePage("sightings/"+e.ID+".html", "sighting-detail", data); err != nil {
			return err
		}
	}
	return nil
}

type postsIndexData struct {
	Page
	Posts []postCard
}

type postPage struct {
	Page
	PostTitle string
	Date      string
	CoverURL  string
	Body      template.HTML
	Linked    []sightingCard
}

func (b *Builder) renderPostPages(linked []post.Linked, covers map[string]string, bodies map[string]template.HTML) error {
	posts := make([]post.Post, len(linked))
	for i := range linked {
		posts[i] = linked[i].Post
	}
	index := postsIndexData{Page: b.page("Posts"), Posts: b.postCards(posts, covers)}
	if err := b.writePage("posts/index.html", "posts-index", index); err != nil {
		return err
	}

	for i := range linked {
		lp := linked[i]
		data := postPage{
			Page:      b.page(lp.Title),
			PostTitle: lp.Title,
			Date:      formatDate(lp.Date),
			CoverURL:  covers[lp.Slug],
			Body:      bodies[lp.Slug],
			Linked:    b.cards(lp.Entries),
		}
		if err := b.writePage("posts/"+lp.Slug+".html", "post-detail", data); err != nil {
			return err
		}
	}
	return nil
}

// renderBodies converts every post body to HTML once; the post pages and
// the feed both consume the result.
func (b *Builder) renderBodies(posts []post.Post) (map[string]template.HTML, error) {
	bodies := make(map[string]template.HTML, len(posts))
	for _, p := range posts {
		html, err := b.renderer.renderMarkdown(p.Slug, p.Body)
		if err != nil {
			return nil, err
		}
		bodies[p.Slug] = html
	}
	return bodies, nil
}

// staticCoverPrefix marks a cover image served from the static assets.
const staticCoverPrefix = "static/images/"

// resolveCovers validates every post's cover image reference up front and
// maps it to its served URL. A reference that matches neither a static
// asset nor a stored sighting image fails the build before any output is
// written.
func (b *Builder) resolveCovers(posts []post.Post, entries []sighting.Sighting) (map[string]string, error) {
	known := make(map[string]struct{})
	for i := range entries {
		for _, img := range entries[i].Images {
			known[img.Filename] = struct{}{}
		}
	}

	covers := make(map[string]string, len(posts))
	for _, p := range posts {
		url, err := b.coverURL(p, known)
		if err != nil {
			return nil, err
		}
		if url != "" {
			covers[p.Slug] = url
		}
	}
	return covers, nil
}

func (b *Builder) coverURL(p post.Post, known map[string]struct{}) (string, error) {
	cover := p.CoverImage
	if cover == "" {
		return "", nil
	}
	if strings.HasPrefix(cover, "static/") {
		if !strings.HasPrefix(cover, staticCoverPrefix) {
			return "", coverError(p.Slug, cover, "static covers must live under static/images")
		}
		rel := strings.TrimPrefix(cover, "static/")
		if _, err := os.Stat(filepath.Join(b.settings.Journal.StaticDir, filepath.FromSlash(rel))); err != nil {
			return "", coverError(p.Slug, cover, "no such file under the static directory")
		}
		return "/images/" + strings.TrimPrefix(cover, staticCoverPrefix), nil
	}
	if _, ok := known[cover]; !ok {
		return "", coverError(p.Slug, cover, "does not match any sighting image")
	}
	return "/images/web/" + cover, nil
}

func coverError(slug, cover, reason string) error {
	return errors.Newf("post %s cover image %q: %s", slug, cover, reason).
		Component("builder").
		Category(errors.CategoryValidation).
		Context("post", slug).
		Context("cover_image", cover).
		Build()
}

type lifeListData struct {
	Page
	Tree      *taxonomy.Tree
	TreeStats taxonomy.TreeStats
}

// renderLifeList builds the species tree page. With live lookups enabled
// it resolves missing names against GBIF first; either way the page is
// rendered from the cache, so a flaky backbone degrades a species to the
// unclassified section instead of failing the build.
func (b *Builder) renderLifeList(ctx context.Context, entries []sighting.Sighting) (int, error) {
	records := make([]taxonomy.Record, 0, len(entries))
	// Oldest first, so the first encounter represents each species.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		records = append(records, taxonomy.Record{
			ID:             e.ID,
			CommonName:     e.CommonName,
			ScientificName: e.ScientificName,
			Image:          e.LeadImage(),
			Notes:          e.Notes,
		})
	}

	if b.settings.Taxonomy.Enabled {
		names := make([]string, 0, len(records))
		for _, r := range records {
			names = append(names, r.ScientificName)
		}
		if _, err := b.gbif.FetchAll(ctx, names); err != nil {
			return 0, err
		}
	}

	tree := taxonomy.BuildTree(records, b.gbif.Cached)
	stats := tree.Stats()
	data := lifeListData{Page: b.page("Life list"), Tree: tree, TreeStats: stats}
	if err := b.writePage("life-list.html", "life-list", data); err != nil {
		return 0, err
	}
	return stats.Species, nil
}

type statsData struct {
	Page
	Stats *SiteStats
}

func (b *Builder) renderStats(entries []sighting.Sighting) error {
	stats := ComputeStats(entries, b.quick.All(), b.settings, b.location)
	return b.writePage("stats.html", "stats", statsData{Page: b.page("Statistics"), Stats: stats})
}

// publicSighting is one row of the machine-readable sighting index.
type publicSighting struct {
	ID             string    `json:"id"`
	CommonName     string    `json:"common_name"`
	ScientificName string    `json:"scientific_name"`
	Category       string    `json:"category"`
	Season         string    `json:"season"`
	CapturedAt     time.Time `json:"captured_at"`
	Image          string    `json:"image"`
}

func (b *Builder) writeSightingsJSON(entries []sighting.Sighting) error {
	public := make([]publicSighting, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		public = append(public, publicSighting{
			ID:             e.ID,
			CommonName:     e.CommonName,
			ScientificName: e.ScientificName,
			Category:       e.Category,
			Season:         e.Season,
			CapturedAt:     e.CapturedAt,
			Image:          e.LeadImage(),
		})
	}

	data, err := json.Marshal(public)
	if err != nil {
		return errors.New(err).
			Component("builder").
			Category(errors.CategoryState).
			Context("file", "data/sightings.json").
			Build()
	}
	target := filepath.Join(b.settings.Journal.OutputDir, "data", "sightings.json")
	if err := os.WriteFile(target, data, pageFileMode); err != nil {
		return outputError(err, "write_data_file", "data/sightings.json")
	}
	return nil
}
