package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paddocklabs/docmirror/internal/convert"
	"github.com/paddocklabs/docmirror/internal/discover"
	"github.com/paddocklabs/docmirror/internal/download"
	"github.com/paddocklabs/docmirror/internal/indexer"
	"github.com/paddocklabs/docmirror/internal/state"
	"github.com/paddocklabs/docmirror/pkg/config"
	"github.com/paddocklabs/docmirror/pkg/document"
	"github.com/paddocklabs/docmirror/pkg/logging"
)

// Report summarizes one pipeline run.
type Report struct {
	RunID      string         `json:"run_id"`
	Discovered int            `json:"discovered"`
	New        int            `json:"new"`
	Downloaded int            `json:"downloaded"`
	Failed     int            `json:"failed"`
	Converted  map[string]int `json:"converted"` // strategy name -> count
	Duration   time.Duration  `json:"duration"`
}

// Runner wires the pipeline stages together and executes one sequential
// run: discover, dedup, download, convert, record, rebuild index.
type Runner struct {
	cfg        *config.Config
	runID      string
	discoverer *discover.Discoverer
	store      *state.Store
	downloader *download.Downloader
	chain      *convert.Chain
	builder    *indexer.Builder
	logger     zerolog.Logger
}

// New constructs a Runner from configuration, bootstrapping the output
// directory tree and loading persisted state.
func New(cfg *config.Config) (*Runner, error) {
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.PDFDir, cfg.Paths.HTMLDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	store, err := state.Open(cfg.Paths.StateDir)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	r := &Runner{
		cfg:   cfg,
		runID: runID,
		discoverer: discover.New(discover.Options{
			PageURL:   cfg.Source.PageURL,
			Origin:    cfg.Source.Origin,
			UserAgent: cfg.Source.UserAgent,
			Timeout:   cfg.SourceTimeout(),
		}),
		store: store,
		downloader: download.New(download.Options{
			Dir:         cfg.Paths.PDFDir,
			MaxAttempts: cfg.Download.MaxAttempts,
			RetryWait:   cfg.RetryWait(),
			RateLimit:   cfg.Download.RateLimit,
			Timeout:     cfg.DownloadTimeout(),
			UserAgent:   cfg.Source.UserAgent,
		}),
		chain: convert.DefaultChain(
			cfg.StrategyTimeout(),
			&convert.Renderer{Binary: cfg.Convert.RendererBinary},
			convert.NewGrobid(cfg.Convert.GrobidURL, cfg.Convert.MinContentLength, cfg.StrategyTimeout()),
		),
		builder: indexer.New(cfg.Paths.OutputDir, nil),
		logger:  logging.GetRunLogger(runID),
	}
	return r, nil
}

// Run executes one full pipeline pass. Only a discovery failure is returned
// as an error; per-item download failures are logged, counted and skipped.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:     r.runID,
		Converted: make(map[string]int),
	}

	refs, err := r.discoverer.Discover(ctx)
	if err != nil {
		return nil, err
	}
	report.Discovered = len(refs)

	fresh, err := r.store.FilterNew(refs)
	if err != nil {
		return nil, err
	}
	report.New = len(fresh)

	if len(fresh) == 0 {
		r.logger.Info().Msg("No new documents")
	}

	for _, ref := range fresh {
		if err := r.processOne(ctx, ref, report); err != nil {
			report.Failed++
			r.logger.Error().Err(err).Str("url", ref.URL).Msg("Skipping document")
		}
	}

	if err := r.builder.Build(r.store.Processed()); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	r.logger.Info().
		Int("discovered", report.Discovered).
		Int("new", report.New).
		Int("downloaded", report.Downloaded).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Run complete")
	return report, nil
}

func (r *Runner) processOne(ctx context.Context, ref document.PdfReference, report *Report) error {
	pdfPath, err := r.downloader.Fetch(ctx, ref)
	if err != nil {
		// The URL stays in the known set: it will not be retried on a
		// future run.
		return err
	}
	report.Downloaded++

	baseName := strings.TrimSuffix(filepath.Base(pdfPath), ".pdf")
	htmlPath := filepath.Join(r.cfg.Paths.HTMLDir, baseName+".html")

	strategy, err := r.chain.Convert(ctx, convert.Job{
		PDFPath:  pdfPath,
		HTMLPath: htmlPath,
		Title:    ref.DisplayTitle(),
		PDFHref:  relHref(filepath.Dir(htmlPath), pdfPath),
	})
	if err != nil {
		return err
	}
	report.Converted[strategy]++

	return r.store.RecordProcessed(document.ProcessedDocument{
		URL:      ref.URL,
		Title:    ref.DisplayTitle(),
		Date:     ref.DiscoveredAt,
		PDFPath:  pdfPath,
		HTMLPath: htmlPath,
		Strategy: strategy,
	})
}

// DiscoverOnly lists new references without marking them known or touching
// any files. Backs the dry-run CLI command.
func (r *Runner) DiscoverOnly(ctx context.Context) ([]document.PdfReference, error) {
	refs, err := r.discoverer.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.Unknown(refs), nil
}

// RebuildIndex regenerates the index page from persisted state without
// scraping or downloading anything.
func (r *Runner) RebuildIndex() error {
	return r.builder.Build(r.store.Processed())
}

// relHref computes the href from a directory to a target file, with forward
// slashes for use in HTML.
func relHref(fromDir, target string) string {
	rel, err := filepath.Rel(fromDir, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}
