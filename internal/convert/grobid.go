package convert

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// grobidErrorMarker appears in TEI bodies GROBID emits for documents it
// could not segment.
const grobidErrorMarker = "[NO_BLOCKS]"

// Grobid submits the PDF to a locally running GROBID instance and renders
// the returned TEI XML as HTML. Degenerate responses (too short, or carrying
// the error marker) count as failure so the chain falls through.
type Grobid struct {
	client           *resty.Client
	baseURL          string
	minContentLength int
}

// NewGrobid builds the service strategy. minContentLength guards against
// accepting near-empty TEI documents; zero applies a default of 200 bytes.
func NewGrobid(baseURL string, minContentLength int, timeout time.Duration) *Grobid {
	if minContentLength <= 0 {
		minContentLength = 200
	}
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Grobid{
		client:           client,
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		minContentLength: minContentLength,
	}
}

func (g *Grobid) Name() string { return "grobid" }

func (g *Grobid) Convert(ctx context.Context, job Job) error {
	pdfBytes, err := os.ReadFile(job.PDFPath)
	if err != nil {
		return err
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetFileReader("input", filepath.Base(job.PDFPath), bytes.NewReader(pdfBytes)).
		SetFormData(map[string]string{
			"consolidateHeader":   "1",
			"includeRawCitations": "1",
		}).
		Post(g.baseURL + "/api/processFulltextDocument")
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("service returned status %d", resp.StatusCode())
	}

	tei := resp.String()
	if len(tei) < g.minContentLength {
		return fmt.Errorf("response too short (%d bytes)", len(tei))
	}
	if strings.Contains(tei, grobidErrorMarker) {
		return fmt.Errorf("response contains error marker %s", grobidErrorMarker)
	}

	// Keep the raw TEI next to the rendering for later reprocessing.
	teiPath := strings.TrimSuffix(job.HTMLPath, ".html") + ".tei.xml"
	if err := os.WriteFile(teiPath, []byte(tei), 0644); err != nil {
		return err
	}

	page := teiToHTML(tei, job.Title)
	return os.WriteFile(job.HTMLPath, []byte(page), 0644)
}

var (
	teiTitleRe    = regexp.MustCompile(`(?s)<title[^>]*>(.*?)</title>`)
	teiAbstractRe = regexp.MustCompile(`(?s)<abstract>(.*?)</abstract>`)
	teiBodyRe     = regexp.MustCompile(`(?s)<body>(.*?)</body>`)
	teiSectionRe  = regexp.MustCompile(`<div[^>]*type="section"[^>]*>`)
	teiHeadRe     = regexp.MustCompile(`(?s)<head>(.*?)</head>`)
	teiStripRe    = regexp.MustCompile(`</?(tei|text|TEI)[^>]*>`)
)

var grobidPageTmpl = template.Must(template.New("grobid").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; }
        h1, h2, h3 { color: #333; }
        .abstract { background-color: #f9f9f9; padding: 15px; border-left: 4px solid #ddd; margin-bottom: 20px; }
        .section { margin-bottom: 20px; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <div class="content">
{{.Content}}
    </div>
</body>
</html>
`))

// teiToHTML lifts title, abstract and body out of a TEI document and wraps
// them in a plain HTML page. A structural transform, not a full TEI
// renderer: sections become divs, heads become h2s, leftover TEI markup is
// stripped.
func teiToHTML(tei, title string) string {
	if title == "" {
		if m := teiTitleRe.FindStringSubmatch(tei); m != nil {
			title = strings.TrimSpace(m[1])
		}
	}
	if title == "" {
		title = "Converted Document"
	}

	var abstract string
	if m := teiAbstractRe.FindStringSubmatch(tei); m != nil {
		abstract = `<div class="abstract"><h2>Abstract</h2>` + m[1] + `</div>`
	}

	var body string
	if m := teiBodyRe.FindStringSubmatch(tei); m != nil {
		body = m[1]
		body = teiSectionRe.ReplaceAllString(body, `<div class="section">`)
		body = teiHeadRe.ReplaceAllString(body, `<h2>$1</h2>`)
	}

	content := teiStripRe.ReplaceAllString(abstract+body, "")

	var buf bytes.Buffer
	grobidPageTmpl.Execute(&buf, struct {
		Title   string
		Content template.HTML
	}{
		Title:   html.UnescapeString(title),
		Content: template.HTML(content),
	})
	return buf.String()
}
