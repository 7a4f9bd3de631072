package convert

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextExtract parses the PDF in-process and wraps the extracted plain text
// in a tabbed viewer page: an embedded PDF.js frame next to a searchable
// text tab. Runs entirely locally, no binaries or services.
type TextExtract struct {
	// MaxPages caps extraction for pathological documents; 0 means no cap.
	MaxPages int
}

func (t *TextExtract) Name() string { return "text-extract" }

func (t *TextExtract) Convert(ctx context.Context, job Job) error {
	text, err := t.extractText(job.PDFPath)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = viewerTmpl.Execute(&buf, viewerData{
		Title:     job.Title,
		PDFHref:   job.PDFHref,
		ViewerSrc: viewerURL(job.PDFHref),
		Text:      text,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(job.HTMLPath, buf.Bytes(), 0644)
}

func (t *TextExtract) extractText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("parsing PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if t.MaxPages > 0 && i > t.MaxPages {
			break
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Unreadable page, keep going with the rest.
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

type viewerData struct {
	Title     string
	PDFHref   string
	ViewerSrc template.URL
	Text      string
}

// viewerURL points the hosted PDF.js viewer at the mirrored PDF.
func viewerURL(pdfHref string) template.URL {
	return template.URL("https://mozilla.github.io/pdf.js/web/viewer.html?file=" + pdfHref)
}

var viewerTmpl = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; margin: 0; padding: 0; color: #333; }
        .header { background-color: #e10600; color: white; padding: 20px; text-align: center; }
        h1 { margin: 0; }
        .container { max-width: 1200px; margin: 0 auto; padding: 20px; }
        .pdf-viewer { width: 100%; height: 800px; border: 1px solid #ddd; margin: 20px 0; }
        .tabs { display: flex; margin-bottom: 20px; }
        .tab { padding: 10px 20px; background-color: #f2f2f2; cursor: pointer; border: 1px solid #ddd; border-bottom: none; margin-right: 5px; }
        .tab.active { background-color: #e10600; color: white; }
        .tab-content { display: none; }
        .tab-content.active { display: block; }
        .download { display: inline-block; padding: 10px 20px; background-color: #e10600; color: white; text-decoration: none; border-radius: 5px; font-weight: bold; }
        footer { margin-top: 40px; text-align: center; font-size: 0.8em; color: #666; padding: 20px; background-color: #f5f5f5; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
    </div>

    <div class="container">
        <div class="tabs">
            <div class="tab active" onclick="switchTab('viewer')">PDF Viewer</div>
            <div class="tab" onclick="switchTab('text')">Extracted Text</div>
        </div>

        <div id="viewer-tab" class="tab-content active">
            <iframe class="pdf-viewer" src="{{.ViewerSrc}}"></iframe>
        </div>

        <div id="text-tab" class="tab-content">
            <pre>{{.Text}}</pre>
        </div>

        <div style="text-align: center; margin-top: 20px;">
            <a href="{{.PDFHref}}" download class="download">Download Original PDF</a>
        </div>
    </div>

    <footer>
        <p>Converted from PDF to HTML for easier viewing.</p>
    </footer>

    <script>
        function switchTab(tabName) {
            document.querySelectorAll('.tab-content').forEach(tab => tab.classList.remove('active'));
            document.getElementById(tabName + '-tab').classList.add('active');
            document.querySelectorAll('.tab').forEach(tab => tab.classList.remove('active'));
            document.querySelector('.tab[onclick="switchTab(\'' + tabName + '\')"]').classList.add('active');
        }
    </script>
</body>
</html>
`))
