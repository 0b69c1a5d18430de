package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

var severityColors = map[models.Severity][3]int{
	models.SeverityCritical:      {127, 29, 29},
	models.SeverityHigh:          {185, 28, 28},
	models.SeverityMedium:        {180, 83, 9},
	models.SeverityLow:           {29, 78, 216},
	models.SeverityInformational: {75, 85, 99},
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func renderPDF(data *Data) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(data.Metadata.Title, true)
	pdf.SetAuthor(data.Metadata.GeneratedBy, true)
	pdf.SetCreationDate(data.Metadata.GeneratedAt)
	pdf.SetMargins(18, 20, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")

	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetHeaderFunc(func() {
		if data.Metadata.Watermark {
			w.watermark(data.Metadata.Confidential)
		}
		if data.Metadata.Confidential {
			pdf.SetFont("Helvetica", "B", 8)
			pdf.SetTextColor(185, 28, 28)
			pdf.CellFormat(0, 5, "CONFIDENTIAL", "", 1, "R", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	w.cover(data)
	w.statistics(data.Statistics)

	if s := data.Sections.ExecutiveSummary; s != nil {
		w.heading("Executive Summary")
		w.paragraph("Risk level: " + s.RiskLevel)
		w.paragraph(s.Overview)
		w.subheading("Recommendations")
		w.list(s.Recommendations, true)
		w.paragraph(s.Conclusion)
	}
	if s := data.Sections.Methodology; s != nil {
		w.heading("Methodology")
		w.paragraph(s.Approach)
		for _, p := range s.Phases {
			w.keyValue(p.Name, p.Description)
		}
		w.keyValue("Tools", strings.Join(s.Tools, ", "))
		w.keyValue("Standards", strings.Join(s.Standards, ", "))
	}
	if s := data.Sections.Findings; s != nil {
		w.heading(fmt.Sprintf("Findings (%d)", s.Total))
		for _, b := range s.Buckets {
			if b.Count == 0 {
				continue
			}
			w.severityHeading(b.Severity, b.Count)
			for _, f := range b.Findings {
				w.finding(f)
			}
		}
	}
	if s := data.Sections.Remediation; s != nil {
		w.heading("Remediation Plan")
		for _, t := range s.Timeline {
			w.keyValue(fmt.Sprintf("%s (%s) - %d", t.Name, t.Timeframe, t.Count), t.Description)
		}
		if len(s.ByCategory) > 0 {
			w.subheading("By category")
			for _, c := range s.ByCategory {
				w.keyValue(fmt.Sprintf("%s (%d)", c.Category, c.Count), c.Suggestion)
			}
		}
		w.subheading("Best practices")
		w.list(s.BestPractices, false)
	}
	if s := data.Sections.Appendices; s != nil {
		w.heading("Appendices")
		w.subheading("Glossary")
		for _, g := range s.Glossary {
			w.keyValue(g.Term, g.Definition)
		}
		w.subheading("References")
		w.list(s.References, false)
		w.subheading("Tools")
		for _, t := range s.Tools {
			w.keyValue(t.Name, t.Version)
		}
		w.paragraph(s.Disclaimer)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) cover(data *Data) {
	w.pdf.SetFont("Helvetica", "B", 20)
	w.pdf.MultiCell(0, 10, w.tr(data.Metadata.Title), "", "L", false)
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.SetTextColor(90, 90, 90)
	line := data.Pentest.Title
	if data.Target != nil {
		line += " - " + data.Target.Name + " (" + data.Target.Address + ")"
	}
	w.pdf.MultiCell(0, 5, w.tr(line), "", "L", false)
	w.pdf.MultiCell(0, 5, w.tr(fmt.Sprintf("Report type: %s - generated %s by %s",
		data.Metadata.ReportType, data.Metadata.GeneratedAt.Format("2006-01-02 15:04 MST"), data.Metadata.GeneratedBy)),
		"", "L", false)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.Ln(4)
}

func (w *pdfWriter) statistics(st Statistics) {
	w.heading("Statistics")
	w.keyValue("Risk score", fmt.Sprintf("%d / 100 (%s)", st.OverallRiskScore, RiskLevel(st.OverallRiskScore)))
	w.keyValue("Total findings", fmt.Sprint(st.TotalFindings))
	w.keyValue("Critical + High", fmt.Sprint(st.CriticalAndHighCount))
	w.keyValue("Average CVSS", fmt.Sprintf("%.1f", st.AverageCVSS))
	w.keyValue("Testing duration", fmt.Sprintf("%d days", st.TestingDurationDays))
	for _, sev := range models.Severities {
		w.keyValue(string(sev), fmt.Sprint(st.BySeverity[sev]))
	}
}

func (w *pdfWriter) finding(f FindingDetail) {
	w.pdf.SetFont("Helvetica", "B", 11)
	w.pdf.MultiCell(0, 6, w.tr(f.Title), "", "L", false)
	w.keyValue("Status", string(f.Status))
	if f.CVSSScore != nil {
		w.keyValue("CVSS", fmt.Sprintf("%.1f", *f.CVSSScore))
	}
	if f.Category != "" {
		w.keyValue("Category", f.Category)
	}
	if f.Reporter != "" {
		w.keyValue("Reporter", f.Reporter)
	}
	if f.Assignee != "" {
		w.keyValue("Assignee", f.Assignee)
	}
	w.paragraph(f.Description)
	if f.ProofOfConcept != "" {
		w.subheading("Proof of concept")
		w.code(f.ProofOfConcept)
	}
	if f.ReproductionSteps != "" {
		w.subheading("Reproduction steps")
		w.code(f.ReproductionSteps)
	}
	if f.Remediation != "" {
		w.subheading("Remediation")
		w.paragraph(f.Remediation)
	}
	if len(f.References) > 0 {
		w.subheading("References")
		w.list(f.References, false)
	}
	w.pdf.Ln(3)
}

func (w *pdfWriter) heading(s string) {
	w.pdf.Ln(4)
	w.pdf.SetFont("Helvetica", "B", 15)
	w.pdf.CellFormat(0, 9, w.tr(s), "B", 1, "L", false, 0, "")
	w.pdf.Ln(2)
}

func (w *pdfWriter) subheading(s string) {
	w.pdf.SetFont("Helvetica", "B", 11)
	w.pdf.CellFormat(0, 7, w.tr(s), "", 1, "L", false, 0, "")
}

func (w *pdfWriter) severityHeading(sev models.Severity, count int) {
	c := severityColors[sev]
	w.pdf.SetFont("Helvetica", "B", 13)
	w.pdf.SetTextColor(c[0], c[1], c[2])
	w.pdf.CellFormat(0, 8, fmt.Sprintf("%s (%d)", sev, count), "", 1, "L", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)
}

func (w *pdfWriter) paragraph(s string) {
	if s == "" {
		return
	}
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.MultiCell(0, 5, w.tr(s), "", "L", false)
	w.pdf.Ln(1)
}

func (w *pdfWriter) code(s string) {
	w.pdf.SetFont("Courier", "", 9)
	w.pdf.SetFillColor(245, 245, 245)
	w.pdf.MultiCell(0, 4.5, w.tr(s), "", "L", true)
	w.pdf.Ln(1)
}

func (w *pdfWriter) keyValue(k, v string) {
	w.pdf.SetFont("Helvetica", "B", 10)
	w.pdf.CellFormat(45, 5, w.tr(k), "", 0, "L", false, 0, "")
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.MultiCell(0, 5, w.tr(v), "", "L", false)
}

func (w *pdfWriter) list(items []string, numbered bool) {
	w.pdf.SetFont("Helvetica", "", 10)
	for i, item := range items {
		bullet := "-"
		if numbered {
			bullet = fmt.Sprintf("%d.", i+1)
		}
		w.pdf.CellFormat(8, 5, bullet, "", 0, "R", false, 0, "")
		w.pdf.MultiCell(0, 5, w.tr(item), "", "L", false)
	}
}

func (w *pdfWriter) watermark(confidential bool) {
	text := "DRAFT"
	if confidential {
		text = "CONFIDENTIAL"
	}
	pageW, pageH := w.pdf.GetPageSize()
	w.pdf.SetFont("Helvetica", "B", 60)
	w.pdf.SetTextColor(235, 215, 215)
	w.pdf.TransformBegin()
	w.pdf.TransformRotate(35, pageW/2, pageH/2)
	w.pdf.Text(pageW/2-w.pdf.GetStringWidth(text)/2, pageH/2, text)
	w.pdf.TransformEnd()
	w.pdf.SetTextColor(0, 0, 0)
}
