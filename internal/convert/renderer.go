package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Renderer invokes an external PDF-to-HTML renderer (pdf2htmlEX) as a
// subprocess. It is the preferred strategy: output preserves layout, fonts
// and images. Absence of the binary is an ordinary failure, not fatal.
type Renderer struct {
	// Binary is the renderer executable, looked up on PATH.
	Binary string
}

func (r *Renderer) Name() string { return "pdf2htmlex" }

func (r *Renderer) Convert(ctx context.Context, job Job) error {
	bin := r.Binary
	if bin == "" {
		bin = "pdf2htmlEX"
	}

	// Probe availability first so "not installed" reads differently from a
	// conversion failure in the logs.
	if err := exec.CommandContext(ctx, bin, "--version").Run(); err != nil {
		return fmt.Errorf("%s unavailable: %w", bin, err)
	}

	// The renderer writes a bundle of assets next to its output, so render
	// into a scratch dir and move only the HTML file into place.
	outName := filepath.Base(job.HTMLPath)
	tempDir := filepath.Join(filepath.Dir(job.HTMLPath), "temp_"+strings.TrimSuffix(outName, ".html"))
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	cmd := exec.CommandContext(ctx, bin,
		"--dest-dir", tempDir,
		"--zoom", "1.3",
		"--fit-width", "1000",
		"--embed", "cfijo", // css, fonts, images, js, outline
		"--process-outline", "0",
		job.PDFPath,
		outName,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("renderer exited: %w: %s", err, strings.TrimSpace(string(out)))
	}

	rendered := filepath.Join(tempDir, outName)
	if _, err := os.Stat(rendered); err != nil {
		return fmt.Errorf("renderer produced no output: %w", err)
	}
	return os.Rename(rendered, job.HTMLPath)
}
