package convert

import (
	"bytes"
	"context"
	"html/template"
	"os"
)

// Placeholder is the last resort: a minimal static page with the title, an
// embedded viewer frame and a download link for the original PDF. It always
// writes output, so the chain never leaves a downloaded PDF without HTML.
type Placeholder struct{}

func (p *Placeholder) Name() string { return "placeholder" }

func (p *Placeholder) Convert(ctx context.Context, job Job) error {
	var buf bytes.Buffer
	err := placeholderTmpl.Execute(&buf, viewerData{
		Title:     job.Title,
		PDFHref:   job.PDFHref,
		ViewerSrc: viewerURL(job.PDFHref),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(job.HTMLPath, buf.Bytes(), 0644)
}

var placeholderTmpl = template.Must(template.New("placeholder").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 20px; max-width: 1000px; margin: 0 auto; }
        h1 { color: #e10600; }
        .pdf-container { margin: 20px auto; border: 1px solid #ddd; border-radius: 5px; height: 800px; }
        .pdf-container iframe { width: 100%; height: 100%; border: none; }
        .pdf-link { display: inline-block; margin: 20px 0; padding: 10px 20px; background-color: #e10600; color: white; text-decoration: none; border-radius: 5px; font-weight: bold; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <div class="pdf-container">
        <iframe src="{{.ViewerSrc}}"></iframe>
    </div>
    <p><a class="pdf-link" href="{{.PDFHref}}" target="_blank">Download PDF</a></p>
</body>
</html>
`))
