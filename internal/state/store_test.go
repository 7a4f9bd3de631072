package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddocklabs/docmirror/pkg/document"
)

func ref(url string) document.PdfReference {
	return document.PdfReference{
		URL:          url,
		Title:        "Some Document",
		DiscoveredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFilterNewDropsKnownURLs(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	first, err := store.FilterNew([]document.PdfReference{ref("https://site/a.pdf"), ref("https://site/b.pdf")})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	// A second pass with an overlapping set only returns the new URL.
	second, err := store.FilterNew([]document.PdfReference{ref("https://site/b.pdf"), ref("https://site/c.pdf")})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "https://site/c.pdf", second[0].URL)
}

func TestKnownSetSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	_, err = store.FilterNew([]document.PdfReference{ref("https://site/a.pdf")})
	require.NoError(t, err)

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.True(t, reopened.IsKnown("https://site/a.pdf"))
	assert.False(t, reopened.IsKnown("https://site/b.pdf"))
}

func TestKnownFileIsVersioned(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	_, err = store.FilterNew([]document.PdfReference{ref("https://site/a.pdf")})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, knownFileName))
	require.NoError(t, err)

	var kf knownFile
	require.NoError(t, json.Unmarshal(data, &kf))
	assert.Equal(t, knownSchemaVersion, kf.Version)
	assert.Equal(t, []string{"https://site/a.pdf"}, kf.URLs)
}

func TestLoadsLegacyKnownFormat(t *testing.T) {
	// The previous generation of this tool persisted a bare array of
	// reference records.
	dir := t.TempDir()
	legacy := `[{"url": "https://site/old.pdf", "title": "Old", "date": "2023-01-01"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, knownFileName), []byte(legacy), 0644))

	store, err := Open(dir)
	require.NoError(t, err)
	assert.True(t, store.IsKnown("https://site/old.pdf"))
}

func TestUnknownDoesNotMutate(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	fresh := store.Unknown([]document.PdfReference{ref("https://site/a.pdf")})
	assert.Len(t, fresh, 1)
	assert.False(t, store.IsKnown("https://site/a.pdf"))
}

func TestRecordProcessedPersists(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	doc := document.ProcessedDocument{
		URL:      "https://site/a.pdf",
		Title:    "Doc A",
		Date:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		PDFPath:  "docs/pdf/Doc_A.pdf",
		HTMLPath: "docs/html/Doc_A.html",
		Strategy: "placeholder",
	}
	require.NoError(t, store.RecordProcessed(doc))

	reopened, err := Open(dir)
	require.NoError(t, err)
	docs := reopened.Processed()
	require.Len(t, docs, 1)
	assert.Equal(t, doc, docs[0])
}

func TestProcessedKeepsInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	want := []string{"https://site/c.pdf", "https://site/a.pdf", "https://site/b.pdf"}
	for _, u := range want {
		require.NoError(t, store.RecordProcessed(document.ProcessedDocument{URL: u}))
	}

	// Re-recording an existing URL keeps its original position.
	require.NoError(t, store.RecordProcessed(document.ProcessedDocument{URL: "https://site/a.pdf", Title: "Updated"}))

	assertOrder := func(s *Store) {
		docs := s.Processed()
		require.Len(t, docs, len(want))
		for i, u := range want {
			assert.Equal(t, u, docs[i].URL)
		}
	}
	assertOrder(store)

	// The order is persisted, not just in-memory.
	reopened, err := Open(dir)
	require.NoError(t, err)
	assertOrder(reopened)
	assert.Equal(t, "Updated", reopened.Processed()[1].Title)
}

func TestLoadsLegacyProcessedFormat(t *testing.T) {
	// Version 1 stored a URL-keyed map; entries come back in URL order.
	dir := t.TempDir()
	legacy := `{"version": 1, "documents": {
		"https://site/b.pdf": {"url": "https://site/b.pdf", "title": "B"},
		"https://site/a.pdf": {"url": "https://site/a.pdf", "title": "A"}
	}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, processedFileName), []byte(legacy), 0644))

	store, err := Open(dir)
	require.NoError(t, err)
	docs := store.Processed()
	require.Len(t, docs, 2)
	assert.Equal(t, "https://site/a.pdf", docs[0].URL)
	assert.Equal(t, "https://site/b.pdf", docs[1].URL)
}
