package report

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`
)

// docxBuilder writes WordprocessingML body paragraphs.
type docxBuilder struct {
	body bytes.Buffer
	err  error
}

// escape writes s as XML character data. The first write error is kept.
func (d *docxBuilder) escape(w io.Writer, s string) {
	if d.err != nil {
		return
	}
	d.err = xml.EscapeText(w, []byte(s))
}

func (d *docxBuilder) run(text string, bold bool, halfPoints int, color string) {
	d.body.WriteString("<w:r><w:rPr>")
	if bold {
		d.body.WriteString("<w:b/>")
	}
	if color != "" {
		fmt.Fprintf(&d.body, `<w:color w:val="%s"/>`, color)
	}
	if halfPoints > 0 {
		fmt.Fprintf(&d.body, `<w:sz w:val="%d"/>`, halfPoints)
	}
	d.body.WriteString(`</w:rPr><w:t xml:space="preserve">`)
	d.escape(&d.body, text)
	d.body.WriteString("</w:t></w:r>")
}

func (d *docxBuilder) para(text string, bold bool, halfPoints int, color string) {
	d.body.WriteString("<w:p>")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			d.body.WriteString("<w:r><w:br/></w:r>")
		}
		d.run(line, bold, halfPoints, color)
	}
	d.body.WriteString("</w:p>")
}

func (d *docxBuilder) heading(s string) { d.para(s, true, 32, "1F2937") }
func (d *docxBuilder) subheading(s string) { d.para(s, true, 24, "") }
func (d *docxBuilder) text(s string) {
	if s != "" {
		d.para(s, false, 0, "")
	}
}

func (d *docxBuilder) keyValue(k, v string) {
	d.body.WriteString("<w:p>")
	d.run(k+": ", true, 0, "")
	d.run(v, false, 0, "")
	d.body.WriteString("</w:p>")
}

func (d *docxBuilder) list(items []string) {
	for _, item := range items {
		d.para("• "+item, false, 0, "")
	}
}

var severityHex = map[models.Severity]string{
	models.SeverityCritical:      "7F1D1D",
	models.SeverityHigh:          "B91C1C",
	models.SeverityMedium:        "B45309",
	models.SeverityLow:           "1D4ED8",
	models.SeverityInformational: "4B5563",
}

func renderDOCX(data *Data) ([]byte, error) {
	d := &docxBuilder{}

	if data.Metadata.Confidential {
		d.para("CONFIDENTIAL", true, 18, "B91C1C")
	}
	if data.Metadata.Watermark && !data.Metadata.Confidential {
		d.para("DRAFT", true, 18, "9CA3AF")
	}
	d.para(data.Metadata.Title, true, 44, "")
	line := data.Pentest.Title
	if data.Target != nil {
		line += " - " + data.Target.Name + " (" + data.Target.Address + ")"
	}
	d.text(line)
	d.text(fmt.Sprintf("Report type: %s - generated %s by %s", data.Metadata.ReportType,
		data.Metadata.GeneratedAt.Format("2006-01-02 15:04 MST"), data.Metadata.GeneratedBy))

	st := data.Statistics
	d.heading("Statistics")
	d.keyValue("Risk score", fmt.Sprintf("%d / 100 (%s)", st.OverallRiskScore, RiskLevel(st.OverallRiskScore)))
	d.keyValue("Total findings", fmt.Sprint(st.TotalFindings))
	d.keyValue("Critical + High", fmt.Sprint(st.CriticalAndHighCount))
	d.keyValue("Average CVSS", fmt.Sprintf("%.1f", st.AverageCVSS))
	d.keyValue("Testing duration", fmt.Sprintf("%d days", st.TestingDurationDays))

	if s := data.Sections.ExecutiveSummary; s != nil {
		d.heading("Executive Summary")
		d.keyValue("Risk level", s.RiskLevel)
		d.text(s.Overview)
		d.subheading("Recommendations")
		for i, r := range s.Recommendations {
			d.text(fmt.Sprintf("%d. %s", i+1, r))
		}
		d.text(s.Conclusion)
	}
	if s := data.Sections.Methodology; s != nil {
		d.heading("Methodology")
		d.text(s.Approach)
		for _, p := range s.Phases {
			d.keyValue(p.Name, p.Description)
		}
		d.keyValue("Tools", strings.Join(s.Tools, ", "))
		d.keyValue("Standards", strings.Join(s.Standards, ", "))
	}
	if s := data.Sections.Findings; s != nil {
		d.heading(fmt.Sprintf("Findings (%d)", s.Total))
		for _, b := range s.Buckets {
			if b.Count == 0 {
				continue
			}
			d.para(fmt.Sprintf("%s (%d)", b.Severity, b.Count), true, 28, severityHex[b.Severity])
			for _, f := range b.Findings {
				d.subheading(f.Title)
				d.keyValue("Status", string(f.Status))
				if f.CVSSScore != nil {
					d.keyValue("CVSS", fmt.Sprintf("%.1f", *f.CVSSScore))
				}
				if f.Category != "" {
					d.keyValue("Category", f.Category)
				}
				if f.Reporter != "" {
					d.keyValue("Reporter", f.Reporter)
				}
				if f.Assignee != "" {
					d.keyValue("Assignee", f.Assignee)
				}
				d.text(f.Description)
				if f.ProofOfConcept != "" {
					d.keyValue("Proof of concept", "")
					d.text(f.ProofOfConcept)
				}
				if f.ReproductionSteps != "" {
					d.keyValue("Reproduction steps", "")
					d.text(f.ReproductionSteps)
				}
				if f.Remediation != "" {
					d.keyValue("Remediation", f.Remediation)
				}
				d.list(f.References)
			}
		}
	}
	if s := data.Sections.Remediation; s != nil {
		d.heading("Remediation Plan")
		for _, t := range s.Timeline {
			d.keyValue(fmt.Sprintf("%s (%s) - %d", t.Name, t.Timeframe, t.Count), t.Description)
		}
		if len(s.ByCategory) > 0 {
			d.subheading("By category")
			for _, c := range s.ByCategory {
				d.keyValue(fmt.Sprintf("%s (%d)", c.Category, c.Count), c.Suggestion)
			}
		}
		d.subheading("Best practices")
		d.list(s.BestPractices)
	}
	if s := data.Sections.Appendices; s != nil {
		d.heading("Appendices")
		d.subheading("Glossary")
		for _, g := range s.Glossary {
			d.keyValue(g.Term, g.Definition)
		}
		d.subheading("References")
		d.list(s.References)
		d.subheading("Tools")
		for _, t := range s.Tools {
			d.keyValue(t.Name, t.Version)
		}
		d.text(s.Disclaimer)
	}

	var document bytes.Buffer
	document.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	document.Write(d.body.Bytes())
	document.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`)

	var core bytes.Buffer
	core.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><dc:title>`)
	d.escape(&core, data.Metadata.Title)
	core.WriteString(`</dc:title><dc:creator>`)
	d.escape(&core, data.Metadata.GeneratedBy)
	fmt.Fprintf(&core, `</dc:creator><dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created></cp:coreProperties>`,
		data.Metadata.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"))
	if d.err != nil {
		return nil, fmt.Errorf("writing docx text: %w", d.err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", []byte(docxContentTypes)},
		{"_rels/.rels", []byte(docxRels)},
		{"docProps/core.xml", core.Bytes()},
		{"word/document.xml", document.Bytes()},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("adding %s: %w", p.name, err)
		}
		if _, err := f.Write(p.body); err != nil {
			return nil, fmt.Errorf("writing %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing docx archive: %w", err)
	}
	return out.Bytes(), nil
}
