// Package post loads the journal's narrative posts and links sightings to
// them. Posts are read-only inputs: one markdown file per post with a YAML
// metadata block, never mutated by the system.
package post

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
)

// Package-level logger for post loading and linking
var (
	postLogger   *slog.Logger
	postLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	postLevelVar.Set(initialLevel)

	postLogger, _, err = logging.NewFileLogger("logs/post.log", "post", postLevelVar)
	if err != nil {
		logging.Error("Failed to initialize post file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: postLevelVar})
		postLogger = slog.New(fbHandler).With("service", "post")
	}
}

// Post is one narrative entry as loaded from disk.
type Post struct {
	Slug       string    // filename stem, e.g. 2026-08-15
	Title      string    // display title, falls back to the slug
	Date       time.Time // publication date at midnight journal time
	CoverImage string    // static asset path or sighting image filename
	Sightings  []string  // explicit sighting ids; empty means date-range linking
	Body       string    // markdown narrative without the metadata block
}

// frontmatter is the YAML metadata block at the top of a post file.
type frontmatter struct {
	Title      string   `yaml:"title"`
	Date       string   `yaml:"date"`
	CoverImage string   `yaml:"cover_image"`
	Sightings  []string `yaml:"sightings"`
}

const dateLayout = time.DateOnly

// Load reads every .md file under dir and returns the posts sorted by
// ascending date. A missing directory is an empty journal, not an error.
func Load(dir string, location *time.Location) ([]Post, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("post").
			Category(errors.CategoryFileIO).
			Context("posts_dir", dir).
			Build()
	}

	var posts []Post
	for _, entry := range dirEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		p, err := parseFile(filepath.Join(dir, entry.Name()), location)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Date.Before(posts[j].Date)
		}
		return posts[i].Slug < posts[j].Slug
	})

	postLogger.Debug("Loaded posts", "dir", dir, "count", len(posts))
	return posts, nil
}

// parseFile reads one post. The metadata block is optional; title and date
// fall back to the filename stem.
func parseFile(path string, location *time.Location) (Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Post{}, errors.New(err).
			Component("post").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}

	slug := strings.TrimSuffix(filepath.Base(path), ".md")
	post := Post{Slug: slug, Title: slug}
	body := string(raw)

	var meta frontmatter
	if strings.HasPrefix(body, "---") {
		parts := strings.SplitN(body, "---", 3)
		if len(parts) == 3 {
			if err := yaml.Unmarshal([]byte(parts[1]), &meta); err != nil {
				return Post{}, errors.Newf("post %s has a malformed metadata block: %v", filepath.Base(path), err).
					Component("post").
					Category(errors.CategoryFileParsing).
					FileContext(path, 0).
					Build()
			}
			body = parts[2]
		}
	}

	if meta.Title != "" {
		post.Title = meta.Title
	}
	post.CoverImage = meta.CoverImage
	post.Sightings = meta.Sightings
	post.Body = strings.TrimSpace(body)

	dateValue := meta.Date
	if dateValue == "" {
		dateValue = slug
	}
	post.Date, err = time.ParseInLocation(dateLayout, dateValue, location)
	if err != nil {
		return Post{}, errors.Newf("post %s has an unparseable date %q, expected YYYY-MM-DD", filepath.Base(path), dateValue).
			Component("post").
			Category(errors.CategoryFileParsing).
			FileContext(path, 0).
			Build()
	}

	return post, nil
}
