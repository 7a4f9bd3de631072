package convert

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/paddocklabs/docmirror/pkg/logging"
)

// ConversionError is what a single strategy reports on failure. It never
// escapes the chain: the dispatcher resolves every failure by falling through
// to the next, less capable strategy.
type ConversionError struct {
	Strategy string
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s conversion: %v", e.Strategy, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Job describes one PDF to render as HTML.
type Job struct {
	PDFPath  string // local path of the downloaded PDF
	HTMLPath string // where the rendering must be written
	Title    string // display title for templated output
	PDFHref  string // href from the HTML file to the PDF, for viewer links
}

// Strategy is one way of producing an HTML rendering of a PDF. Convert must
// either write Job.HTMLPath and return nil, or return an error and leave the
// fallback decision to the chain.
type Strategy interface {
	Name() string
	Convert(ctx context.Context, job Job) error
}

// Chain tries an explicit ordered list of strategies, each under its own
// timeout, until one writes the output file. The last strategy in a default
// chain is a placeholder that cannot fail short of filesystem trouble, so
// conversion as a whole practically always succeeds.
type Chain struct {
	strategies []Strategy
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewChain builds a dispatcher over the given strategies in order.
func NewChain(timeout time.Duration, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		timeout:    timeout,
		logger:     logging.GetLogger("convert"),
	}
}

// DefaultChain wires the production fallback order: external renderer,
// structure-extraction service, local text extraction, placeholder.
func DefaultChain(timeout time.Duration, renderer *Renderer, grobid *Grobid) *Chain {
	return NewChain(timeout,
		renderer,
		grobid,
		&TextExtract{},
		&Placeholder{},
	)
}

// Convert runs the chain for one job and returns the name of the strategy
// that produced the output. An error is returned only when every strategy
// failed, which with a placeholder in the chain means the output path itself
// is unwritable.
func (c *Chain) Convert(ctx context.Context, job Job) (string, error) {
	for _, s := range c.strategies {
		err := c.runOne(ctx, s, job)
		if err == nil {
			c.logger.Info().
				Str("strategy", s.Name()).
				Str("html", job.HTMLPath).
				Msg("Converted PDF")
			return s.Name(), nil
		}
		c.logger.Warn().
			Err(err).
			Str("strategy", s.Name()).
			Str("pdf", job.PDFPath).
			Msg("Conversion strategy failed, falling through")
	}
	return "", fmt.Errorf("all conversion strategies failed for %s", job.PDFPath)
}

func (c *Chain) runOne(ctx context.Context, s Strategy, job Job) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := s.Convert(ctx, job); err != nil {
		return &ConversionError{Strategy: s.Name(), Err: err}
	}
	return nil
}
