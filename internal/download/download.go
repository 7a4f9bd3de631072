package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/paddocklabs/docmirror/pkg/document"
	"github.com/paddocklabs/docmirror/pkg/logging"
)

// copyChunkSize is the buffer size for streaming response bodies to disk.
const copyChunkSize = 8192

// DownloadError means every attempt for one reference failed. The reference
// is skipped for the run; it stays in the known set and is not retried later.
type DownloadError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Options configures a Downloader.
type Options struct {
	Dir         string // destination directory for PDFs
	MaxAttempts int
	RetryWait   time.Duration
	RateLimit   float64 // requests per second, 0 disables pacing
	Timeout     time.Duration
	UserAgent   string
}

// Downloader fetches PDF bodies to sanitized local filenames with bounded
// retry and polite pacing between requests.
type Downloader struct {
	client  *resty.Client
	limiter *rate.Limiter
	dir     string
	logger  zerolog.Logger
}

func New(opts Options) *Downloader {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	client := resty.New().
		SetRetryCount(opts.MaxAttempts - 1).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 400
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			// With unparsed responses resty leaves failed attempts' bodies
			// open; drain and close so their connections are reusable.
			if r == nil {
				return
			}
			if body := r.RawBody(); body != nil {
				io.Copy(io.Discard, io.LimitReader(body, 64<<10))
				body.Close()
			}
		})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Downloader{
		client:  client,
		limiter: limiter,
		dir:     opts.Dir,
		logger:  logging.GetLogger("download"),
	}
}

// Fetch streams one reference's PDF to disk and returns the local path.
// A partially written file is removed before a DownloadError is returned.
func (d *Downloader) Fetch(ctx context.Context, ref document.PdfReference) (string, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", &DownloadError{URL: ref.URL, Attempts: 0, Err: err}
		}
	}

	path := filepath.Join(d.dir, FileName(ref))
	attempts := d.client.RetryCount + 1

	d.logger.Info().Str("url", ref.URL).Str("path", path).Msg("Downloading PDF")

	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(ref.URL)
	if err != nil {
		return "", &DownloadError{URL: ref.URL, Attempts: attempts, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		return "", &DownloadError{
			URL:      ref.URL,
			Attempts: attempts,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return "", &DownloadError{URL: ref.URL, Attempts: attempts, Err: err}
	}

	buf := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(out, body, buf); err != nil {
		out.Close()
		os.Remove(path)
		return "", &DownloadError{URL: ref.URL, Attempts: attempts, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", &DownloadError{URL: ref.URL, Attempts: attempts, Err: err}
	}

	return path, nil
}

// FileName derives the local filename for a reference: the sanitized title
// with spaces collapsed to underscores and a .pdf extension, or the URL's
// path basename when there is no title. A title that already carries a .pdf
// extension contributes only its stem, never a doubled extension.
func FileName(ref document.PdfReference) string {
	title := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(ref.Title), ".pdf"))
	if title == "" {
		return ref.BaseName()
	}
	return strings.ReplaceAll(SanitizeFilename(title), " ", "_") + ".pdf"
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._- ] (space
// included) with an underscore. Length and positions of unaffected
// characters are preserved.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
