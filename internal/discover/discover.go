package discover

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/paddocklabs/docmirror/pkg/document"
	"github.com/paddocklabs/docmirror/pkg/logging"
)

// FetchError means the source page could not be retrieved. It aborts the
// whole run since nothing downstream has valid input.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures a Discoverer.
type Options struct {
	PageURL   string
	Origin    string // prefix for relative hrefs
	UserAgent string
	Timeout   time.Duration
	Now       func() time.Time
}

// Discoverer scrapes the source page for links to PDF documents.
type Discoverer struct {
	client  *resty.Client
	pageURL string
	origin  string
	now     func() time.Time
	logger  zerolog.Logger
}

func New(opts Options) *Discoverer {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Discoverer{
		client:  client,
		pageURL: opts.PageURL,
		origin:  strings.TrimSuffix(opts.Origin, "/"),
		now:     now,
		logger:  logging.GetLogger("discover"),
	}
}

// Discover fetches the source page and returns every anchor whose href ends
// in ".pdf", in document order. The list is not deduplicated against history.
func (d *Discoverer) Discover(ctx context.Context) ([]document.PdfReference, error) {
	resp, err := d.client.R().SetContext(ctx).Get(d.pageURL)
	if err != nil {
		return nil, &FetchError{URL: d.pageURL, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{URL: d.pageURL, StatusCode: resp.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, &FetchError{URL: d.pageURL, Err: err}
	}

	var refs []document.PdfReference
	doc.Find(`a[href$=".pdf"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		// An untitled anchor keeps an empty Title; downstream filename and
		// display fallbacks derive from the URL.
		refs = append(refs, document.PdfReference{
			URL:          d.resolve(href),
			Title:        strings.TrimSpace(sel.Text()),
			DiscoveredAt: d.now(),
		})
	})

	d.logger.Info().
		Str("page", d.pageURL).
		Int("links", len(refs)).
		Msg("Discovered PDF links")
	return refs, nil
}

func (d *Discoverer) resolve(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return d.origin + href
}
