package report

import (
	"fmt"
	"strings"
	"unicode"
)

// Document is a rendered report artifact.
type Document struct {
	Bytes       []byte
	Filename    string
	ContentType string
}

// Renderer turns report data into a document of one format.
type Renderer interface {
	Render(data *Data) (Document, error)
}

type formatRenderer struct {
	ext         string
	contentType string
	encode      func(data *Data) ([]byte, error)
}

func (r formatRenderer) Render(data *Data) (Document, error) {
	b, err := r.encode(data)
	if err != nil {
		return Document{}, fmt.Errorf("rendering %s: %w", r.ext, err)
	}
	return Document{
		Bytes:       b,
		Filename:    Filename(data.Metadata.Title, data.Metadata.GeneratedAt.Format("20060102-150405"), r.ext),
		ContentType: r.contentType,
	}, nil
}

var renderers = map[Format]formatRenderer{
	FormatJSON: {ext: "json", contentType: "application/json", encode: renderJSON},
	FormatHTML: {ext: "html", contentType: "text/html; charset=utf-8", encode: renderHTML},
	FormatPDF:  {ext: "pdf", contentType: "application/pdf", encode: renderPDF},
	FormatDOCX: {
		ext:         "docx",
		contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		encode:      renderDOCX,
	},
}

// RendererFor returns the renderer of a format.
func RendererFor(f Format) (Renderer, error) {
	r, ok := renderers[f]
	if !ok {
		return nil, fmt.Errorf("no renderer for format %q", f)
	}
	return r, nil
}

// Filename builds <slug>-<stamp>.<ext>.
func Filename(title, stamp, ext string) string {
	return slug(title) + "-" + stamp + "." + ext
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "report"
	}
	if len(out) > 60 {
		out = strings.TrimSuffix(out[:60], "-")
	}
	return out
}
