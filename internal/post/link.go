package post

import (
	"sort"
	"time"

	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Linked is a post with its resolved sighting set.
type Linked struct {
	Post
	Entries []sighting.Sighting
}

// Resolve attaches sightings to posts. An explicit sightings list is
// authoritative and keeps its order; posts without one collect every
// sighting whose capture day falls after the previous post's date, up to
// and including their own. The first post's window is open-ended into the
// past, so each sighting belongs to exactly one auto-populated window.
func Resolve(posts []Post, entries []sighting.Sighting, location *time.Location) ([]Linked, error) {
	ordered := make([]Post, len(posts))
	copy(ordered, posts)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].Slug < ordered[j].Slug
	})

	for i := 1; i < len(ordered); i++ {
		if ordered[i].Date.Equal(ordered[i-1].Date) {
			return nil, errors.Newf("posts %s and %s share the date %s, date-range linking needs distinct dates",
				ordered[i-1].Slug, ordered[i].Slug, ordered[i].Date.Format(dateLayout)).
				Component("post").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	byID := make(map[string]sighting.Sighting, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}

	linked := make([]Linked, 0, len(ordered))
	var prev time.Time
	for _, p := range ordered {
		var resolved []sighting.Sighting
		if len(p.Sightings) > 0 {
			for _, id := range p.Sightings {
				entry, ok := byID[id]
				if !ok {
					return nil, errors.Newf("post %s references unknown sighting %s", p.Slug, id).
						Component("post").
						Category(errors.CategoryValidation).
						SightingContext(id, 0).
						Build()
				}
				resolved = append(resolved, entry)
			}
		} else {
			for _, entry := range entries {
				day := captureDay(entry.CapturedAt, location)
				if day.After(prev) && !day.After(p.Date) {
					resolved = append(resolved, entry)
				}
			}
			sort.Slice(resolved, func(i, j int) bool {
				if !resolved[i].CapturedAt.Equal(resolved[j].CapturedAt) {
					return resolved[i].CapturedAt.Before(resolved[j].CapturedAt)
				}
				return resolved[i].ID < resolved[j].ID
			})
		}
		linked = append(linked, Linked{Post: p, Entries: resolved})
		prev = p.Date
	}

	return linked, nil
}

// captureDay truncates a capture time to its calendar day in the journal
// timezone, the granularity post windows work at.
func captureDay(t time.Time, location *time.Location) time.Time {
	local := t.In(location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
}
