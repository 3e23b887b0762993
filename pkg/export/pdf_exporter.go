package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Field is one label/value line of a document section.
type Field struct {
	Label string
	Value string
}

// Section groups fields under a heading.
type Section struct {
	Heading string
	Fields  []Field
}

// Document is a printable summary: titled sections followed by an optional
// table.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
	Table    *Dataset
	Footer   string
}

// PDFExporter renders documents with gofpdf.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays the document out on A4 pages.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Sections) == 0 && doc.Table == nil {
		return nil, fmt.Errorf("pdf requires at least one section or table")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(doc.Title), "", 1, "C", false, 0, "")
	}
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, doc.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, section.Heading, "B", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, f := range section.Fields {
			pdf.CellFormat(60, 7, f.Label, "", 0, "", false, 0, "")
			pdf.CellFormat(0, 7, f.Value, "", 1, "", false, 0, "")
		}
		pdf.Ln(3)
	}

	if doc.Table != nil && len(doc.Table.Headers) > 0 {
		renderTable(pdf, *doc.Table)
	}

	if doc.Footer != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 5, doc.Footer, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func renderTable(pdf *gofpdf.Fpdf, data Dataset) {
	colWidth := 180.0 / float64(len(data.Headers))
	pdf.SetFont("Arial", "B", 10)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}
