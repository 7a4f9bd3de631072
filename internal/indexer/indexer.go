package indexer

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/paddocklabs/docmirror/pkg/document"
	"github.com/paddocklabs/docmirror/pkg/logging"
)

// nojekyllName is the marker file that stops GitHub Pages from running the
// output directory through Jekyll.
const nojekyllName = ".nojekyll"

// Builder regenerates the static index page over all processed documents.
// The previous index is always fully overwritten; output is deterministic
// for a fixed input set apart from the last-updated timestamp.
type Builder struct {
	outputDir string
	now       func() time.Time
	logger    zerolog.Logger
}

func New(outputDir string, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{
		outputDir: outputDir,
		now:       now,
		logger:    logging.GetLogger("indexer"),
	}
}

type indexEntry struct {
	Title    string
	Date     string
	HTMLHref string
	PDFHref  string
}

type indexData struct {
	LastUpdated string
	Entries     []indexEntry
}

// Build renders index.html from the processed-document mapping, newest
// first, and drops the .nojekyll marker alongside it.
func (b *Builder) Build(docs []document.ProcessedDocument) error {
	// Stable: documents sharing a date keep their relative insertion order.
	sorted := make([]document.ProcessedDocument, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	data := indexData{
		LastUpdated: b.now().Format("2006-01-02 15:04:05"),
	}
	for _, doc := range sorted {
		data.Entries = append(data.Entries, indexEntry{
			Title:    doc.Title,
			Date:     doc.Date.Format("2006-01-02"),
			HTMLHref: b.relHref(doc.HTMLPath),
			PDFHref:  b.relHref(doc.PDFPath),
		})
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		return err
	}

	indexPath := filepath.Join(b.outputDir, "index.html")
	if err := writeFileAtomic(indexPath, buf.Bytes()); err != nil {
		return err
	}
	if err := b.ensureNoJekyll(); err != nil {
		return err
	}

	b.logger.Info().
		Str("path", indexPath).
		Int("documents", len(data.Entries)).
		Msg("Rebuilt index page")
	return nil
}

// relHref turns a stored path into an href relative to the index page.
// Paths outside the output dir are linked as-is.
func (b *Builder) relHref(path string) string {
	rel, err := filepath.Rel(b.outputDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (b *Builder) ensureNoJekyll() error {
	path := filepath.Join(b.outputDir, nojekyllName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, nil, 0644)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>FIA Documents Archive</title>
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; max-width: 1000px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; color: #333; }
        header { background-color: #e10600; color: white; padding: 20px; border-radius: 5px; margin-bottom: 20px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
        h1 { margin: 0; font-size: 2em; }
        .last-updated { margin-top: 10px; font-size: 0.9em; opacity: 0.8; }
        .document-list { list-style-type: none; padding: 0; }
        .document-item { background-color: white; margin-bottom: 15px; padding: 15px; border-radius: 5px; box-shadow: 0 2px 5px rgba(0,0,0,0.05); }
        .document-link { color: #0066cc; text-decoration: none; font-weight: 500; font-size: 1.1em; display: block; margin-bottom: 5px; }
        .document-link:hover { text-decoration: underline; }
        .document-date { color: #666; font-size: 0.9em; }
        .pdf-link { color: #666; font-size: 0.9em; margin-left: 10px; }
        .no-documents { background-color: white; padding: 20px; border-radius: 5px; text-align: center; color: #666; }
        footer { margin-top: 30px; text-align: center; font-size: 0.9em; color: #666; }
    </style>
</head>
<body>
    <header>
        <h1>FIA Documents Archive</h1>
        <div class="last-updated">Last updated: {{.LastUpdated}}</div>
    </header>

{{if .Entries}}    <ul class="document-list">
{{range .Entries}}        <li class="document-item">
            <a href="{{.HTMLHref}}" class="document-link">{{.Title}}</a>
            <span class="document-date">{{.Date}}</span>
            <a href="{{.PDFHref}}" class="pdf-link">original PDF</a>
        </li>
{{end}}    </ul>
{{else}}    <div class="no-documents">No documents available yet.</div>
{{end}}
    <footer>
        <p>This archive is automatically updated with the latest documents from the FIA website.</p>
    </footer>
</body>
</html>
`))
