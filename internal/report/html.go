package report

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var htmlTemplate = template.Must(template.New("report.html.tmpl").
	Funcs(template.FuncMap{"cvss": formatCVSS}).
	ParseFS(templateFS, "templates/report.html.tmpl"))

func formatCVSS(score *float64) string {
	if score == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*score, 'f', 1, 64)
}

func renderHTML(data *Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
