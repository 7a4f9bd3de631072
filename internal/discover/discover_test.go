package discover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDiscoverer(pageURL, origin string) *Discoverer {
	return New(Options{
		PageURL: pageURL,
		Origin:  origin,
		Now:     func() time.Time { return fixedTime },
	})
}

func TestDiscoverFindsOnlyPDFAnchorsInOrder(t *testing.T) {
	page := `<html><body>
		<a href="/docs/first.pdf">First Document</a>
		<a href="/about">About</a>
		<a href="/docs/second.pdf">Second Document</a>
		<a href="/docs/image.png">Image</a>
		<a href="/docs/third.pdf">Third Document</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	d := newTestDiscoverer(srv.URL, "https://www.fia.com")
	refs, err := d.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, refs, 3)
	assert.Equal(t, "First Document", refs[0].Title)
	assert.Equal(t, "Second Document", refs[1].Title)
	assert.Equal(t, "Third Document", refs[2].Title)
	for _, ref := range refs {
		assert.Equal(t, fixedTime, ref.DiscoveredAt)
	}
}

func TestDiscoverResolvesURLs(t *testing.T) {
	page := `<html><body>
		<a href="/docs/relative.pdf">Relative</a>
		<a href="https://cdn.example.com/absolute.pdf">Absolute</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	d := newTestDiscoverer(srv.URL, "https://www.fia.com")
	refs, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "https://www.fia.com/docs/relative.pdf", refs[0].URL)
	assert.Equal(t, "https://cdn.example.com/absolute.pdf", refs[1].URL)
}

func TestDiscoverUntitledAnchorKeepsEmptyTitle(t *testing.T) {
	page := `<html><body><a href="/docs/2024_event_notes.pdf">   </a></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	d := newTestDiscoverer(srv.URL, "https://www.fia.com")
	refs, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	// The empty title is preserved so the display fallback still humanizes.
	assert.Empty(t, refs[0].Title)
	assert.Equal(t, "2024 Event Notes", refs[0].DisplayTitle())
}

func TestDiscoverCaseSensitiveSuffix(t *testing.T) {
	// Uppercase extensions do not match the selector.
	page := `<html><body>
		<a href="/docs/upper.PDF">Upper</a>
		<a href="/docs/lower.pdf">Lower</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	d := newTestDiscoverer(srv.URL, "https://www.fia.com")
	refs, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Lower", refs[0].Title)
}

func TestDiscoverFetchErrorOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDiscoverer(srv.URL, "https://www.fia.com")
	_, err := d.Discover(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
}

func TestDiscoverFetchErrorOnUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable on purpose

	d := newTestDiscoverer(srv.URL, "https://www.fia.com")
	_, err := d.Discover(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Error(t, fetchErr.Err)
}
