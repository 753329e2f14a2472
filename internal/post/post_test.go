package post

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/errors"
)

func writePost(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadParsesMetadataBlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePost(t, dir, "2026-08-15.md", `---
title: "First week in the square"
date: 2026-08-15
cover_image: 20260815-001-a.jpg
sightings:
  - 20260815-001
  - 20260814-002
---

The first ladybirds arrived with the warm front.
`)

	posts, err := Load(dir, time.UTC)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	p := posts[0]
	assert.Equal(t, "2026-08-15", p.Slug)
	assert.Equal(t, "First week in the square", p.Title)
	assert.True(t, p.Date.Equal(time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "20260815-001-a.jpg", p.CoverImage)
	assert.Equal(t, []string{"20260815-001", "20260814-002"}, p.Sightings)
	assert.Equal(t, "The first ladybirds arrived with the warm front.", p.Body)
}

func TestLoadFallsBackToFilename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePost(t, dir, "2026-08-15.md", "Just a body, no metadata block.\n")

	posts, err := Load(dir, time.UTC)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	p := posts[0]
	assert.Equal(t, "2026-08-15", p.Title)
	assert.True(t, p.Date.Equal(time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)))
	assert.Empty(t, p.Sightings)
	assert.Equal(t, "Just a body, no metadata block.", p.Body)
}

func TestLoadSortsAscendingByDate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePost(t, dir, "2026-08-22.md", "---\ntitle: Later\ndate: 2026-08-22\n---\nbody")
	writePost(t, dir, "2026-08-08.md", "---\ntitle: Earlier\ndate: 2026-08-08\n---\nbody")
	writePost(t, dir, "2026-08-15.md", "---\ntitle: Middle\ndate: 2026-08-15\n---\nbody")

	posts, err := Load(dir, time.UTC)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "Earlier", posts[0].Title)
	assert.Equal(t, "Middle", posts[1].Title)
	assert.Equal(t, "Later", posts[2].Title)
}

func TestLoadKeepsHorizontalRulesInBody(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePost(t, dir, "2026-08-15.md", "---\ndate: 2026-08-15\n---\nAbove the rule.\n\n---\n\nBelow the rule.\n")

	posts, err := Load(dir, time.UTC)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].Body, "Above the rule.")
	assert.Contains(t, posts[0].Body, "Below the rule.")
}

func TestLoadMalformedMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePost(t, dir, "2026-08-15.md", "---\ntitle: [unterminated\ndate 2026-08-15\n---\nbody")

	_, err := Load(dir, time.UTC)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
	assert.Contains(t, err.Error(), "2026-08-15.md")
}

func TestLoadUnparseableDate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePost(t, dir, "first-post.md", "---\ntitle: First\ndate: next tuesday\n---\nbody")

	_, err := Load(dir, time.UTC)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
	assert.Contains(t, err.Error(), "next tuesday")
}

func TestLoadMissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	posts, err := Load(filepath.Join(t.TempDir(), "absent"), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestLoadIgnoresNonMarkdownFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePost(t, dir, "2026-08-15.md", "---\ndate: 2026-08-15\n---\nbody")
	writePost(t, dir, "notes.txt", "not a post")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0o750))

	posts, err := Load(dir, time.UTC)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}
