package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddocklabs/docmirror/pkg/document"
)

var pdfBody = []byte("%PDF-1.4 test document body")

func newTestDownloader(t *testing.T) *Downloader {
	t.Helper()
	return New(Options{
		Dir:         t.TempDir(),
		MaxAttempts: 3,
		RetryWait:   10 * time.Millisecond,
	})
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "hash and symbols replaced",
			input:    "Race Director Event Notes #12",
			expected: "Race Director Event Notes _12",
		},
		{
			name:     "allowed characters untouched",
			input:    "Notes_2024-03.v2 final.pdf",
			expected: "Notes_2024-03.v2 final.pdf",
		},
		{
			name:     "slashes and unicode replaced",
			input:    "a/b\\c:dé",
			expected: "a_b_c_d_",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			assert.Equal(t, tt.expected, got)
			// Sanitizing preserves length and the positions of unaffected
			// characters.
			assert.Equal(t, len([]rune(tt.input)), len([]rune(got)))
		})
	}
}

func TestFileName(t *testing.T) {
	withTitle := document.PdfReference{URL: "https://site/docs/raw.pdf", Title: "Race Notes #1"}
	assert.Equal(t, "Race_Notes__1.pdf", FileName(withTitle))

	noTitle := document.PdfReference{URL: "https://site/docs/raw.pdf"}
	assert.Equal(t, "raw.pdf", FileName(noTitle))

	// A filename-shaped title never yields a doubled extension.
	filenameTitle := document.PdfReference{URL: "https://site/docs/raw.pdf", Title: "2024_event_notes.pdf"}
	assert.Equal(t, "2024_event_notes.pdf", FileName(filenameTitle))
}

func TestFetchWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pdfBody)
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	path, err := d.Fetch(context.Background(), document.PdfReference{URL: srv.URL + "/notes.pdf", Title: "Race Notes"})
	require.NoError(t, err)

	assert.Equal(t, "Race_Notes.pdf", filepath.Base(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, content)
}

func TestFetchRetryTransparency(t *testing.T) {
	// Fails attempts 1 and 2, succeeds on attempt 3; the final file content
	// must match an immediate success. The failed attempts carry bodies, so
	// the retry path has to drain them without touching the final read.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("try again later"))
			return
		}
		w.Write(pdfBody)
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	path, err := d.Fetch(context.Background(), document.PdfReference{URL: srv.URL + "/notes.pdf", Title: "Flaky"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, content)
}

func TestFetchExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("service is down"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(Options{Dir: dir, MaxAttempts: 3, RetryWait: 10 * time.Millisecond})

	_, err := d.Fetch(context.Background(), document.PdfReference{URL: srv.URL + "/notes.pdf", Title: "Gone"})

	var dlErr *DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, 3, dlErr.Attempts)
	assert.EqualValues(t, 3, calls.Load())

	// No file is left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	d := newTestDownloader(t)
	_, err := d.Fetch(context.Background(), document.PdfReference{URL: srv.URL + "/notes.pdf", Title: "Nope"})

	var dlErr *DownloadError
	require.True(t, errors.As(err, &dlErr))
}
