// Package export renders letters into downloadable documents.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	// ContentType is the MIME type written by PDFRenderer.
	ContentType = "application/pdf"
	// LetterFilename is the attachment name for exported letters.
	LetterFilename = "Arztbrief.pdf"
)

// PDFRenderer lays out plain text on A4 pages. Text wider than TextWidth is
// wrapped and pages break automatically.
type PDFRenderer struct {
	Margin    float64 // mm, all sides
	TextWidth float64 // mm
	FontSize  float64 // pt
	Font      string
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{
		Margin:    10,
		TextWidth: 180,
		FontSize:  11,
		Font:      "Helvetica",
	}
}

// Render writes title and text as a PDF document to w.
func (r *PDFRenderer) Render(w io.Writer, title, text string) error {
	if w == nil {
		return errors.New("export: nil writer")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(r.Margin, r.Margin, r.Margin)
	pdf.SetAutoPageBreak(true, r.Margin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("medassist", true)

	// Core fonts are cp1252; umlauts and ß need translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont(r.Font, "", r.FontSize)
	lineHeight := r.FontSize * 0.5
	pdf.MultiCell(r.TextWidth, lineHeight, tr(text), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export: write pdf: %w", err)
	}
	return nil
}
