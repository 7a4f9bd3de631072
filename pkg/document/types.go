package document

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// PdfReference is a document discovered on the source page that has not
// necessarily been downloaded yet. URL is the unique key throughout the
// pipeline.
type PdfReference struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// ProcessedDocument is a reference that has been downloaded and converted.
// Strategy records which conversion strategy produced the HTML rendering.
type ProcessedDocument struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	PDFPath  string    `json:"pdf_path"`
	HTMLPath string    `json:"html_path"`
	Strategy string    `json:"strategy,omitempty"`
}

// BaseName returns the filename portion of the reference URL, e.g.
// "2024_sporting_regulations.pdf". Falls back to the raw URL tail when the
// URL does not parse.
func (r PdfReference) BaseName() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return path.Base(r.URL)
	}
	return path.Base(u.Path)
}

// DisplayTitle returns the anchor title when present, otherwise a humanized
// form of the URL's base filename ("event_notes_12.pdf" -> "Event Notes 12").
// A title that is itself a PDF filename is humanized the same way, so pages
// never show a raw filename as their heading.
func (r PdfReference) DisplayTitle() string {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return HumanizeFilename(r.BaseName())
	}
	if strings.HasSuffix(title, ".pdf") {
		return HumanizeFilename(title)
	}
	return title
}

// HumanizeFilename turns a PDF filename into a readable title: strips the
// extension, replaces underscores with spaces and upper-cases each word.
func HumanizeFilename(name string) string {
	name = strings.TrimSuffix(name, ".pdf")
	name = strings.ReplaceAll(name, "_", " ")
	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
