package document

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/pkg/config"
)

// Page geometry in millimeters (A4 portrait).
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginTop    = 20.0
	marginBottom = 18.0
	marginLeft   = 15.0
	marginRight  = 15.0
	contentWidth = pageWidth - marginLeft - marginRight

	headingHeight = 9.0
	lineHeight    = 5.0
)

// Engine renders a paginated flight ticket from one BookingDocumentData.
// Rendering the same input twice produces byte-identical output.
type Engine struct {
	issuerName string
	termsURL   string
}

func NewEngine(cfg config.DocumentConfig) *Engine {
	return &Engine{
		issuerName: cfg.IssuerName,
		termsURL:   cfg.TermsURL,
	}
}

// Placement records where one atomic block landed, for layout assertions.
type Placement struct {
	Section string
	Item    string
	Page    int
	Top     float64
	Bottom  float64
}

// layout owns the page list and the vertical cursor during a render.
type layout struct {
	pdf        *gofpdf.Fpdf
	engine     *Engine
	y          float64
	placements []Placement
}

// Render produces the ticket PDF.
func (e *Engine) Render(data *domain.BookingDocumentData) ([]byte, error) {
	pdf, _, err := e.renderDoc(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &domain.DocumentRenderError{Err: err}
	}
	return buf.Bytes(), nil
}

// Layout runs the same pagination pass and returns only the placement
// trace. Used to assert overflow behavior without parsing PDF bytes.
func (e *Engine) Layout(data *domain.BookingDocumentData) ([]Placement, error) {
	_, placements, err := e.renderDoc(data)
	return placements, err
}

func (e *Engine) renderDoc(data *domain.BookingDocumentData) (*gofpdf.Fpdf, []Placement, error) {
	if data == nil {
		return nil, nil, &domain.DocumentRenderError{Err: fmt.Errorf("nil document data")}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	// Fixed creation date keeps output byte-identical across renders.
	pdf.SetCreationDate(time.Unix(0, 0).UTC())
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Flight Ticket "+data.OrderID, true)

	l := &layout{pdf: pdf, engine: e}
	l.newPage()

	l.drawTitle(data)
	l.drawItinerary(data)
	l.drawPassengers(data)
	l.drawPriceBreakdown(data)
	l.drawPayment(data)
	l.drawContact(data)

	// Every page gets the identical footer, not just the last.
	for p := 1; p <= pdf.PageCount(); p++ {
		pdf.SetPage(p)
		l.drawFooter(data)
	}

	if pdf.Err() {
		return nil, nil, &domain.DocumentRenderError{Err: pdf.Error()}
	}
	return pdf, l.placements, nil
}

// newPage appends a watermarked page and resets the cursor below the top
// margin. Drawing resumes there.
func (l *layout) newPage() {
	l.pdf.AddPage()
	l.drawWatermark()
	l.y = marginTop
}

// ensureSpace starts a new page when fewer than needed millimeters remain
// above the bottom margin. Callers size needed so no atomic block is ever
// split across a page boundary.
func (l *layout) ensureSpace(needed float64) {
	if l.y+needed > pageHeight-marginBottom {
		l.newPage()
	}
}

func (l *layout) place(section, item string, height float64) {
	l.placements = append(l.placements, Placement{
		Section: section,
		Item:    item,
		Page:    l.pdf.PageNo(),
		Top:     l.y,
		Bottom:  l.y + height,
	})
}

func (l *layout) drawWatermark() {
	pdf := l.pdf
	pdf.SetFont("Helvetica", "B", 52)
	pdf.SetTextColor(232, 232, 232)
	pdf.TransformBegin()
	pdf.TransformRotate(45, pageWidth/2, pageHeight/2)
	text := l.engine.issuerName
	w := pdf.GetStringWidth(text)
	pdf.Text(pageWidth/2-w/2, pageHeight/2, text)
	pdf.TransformEnd()
	pdf.SetTextColor(0, 0, 0)
}

func (l *layout) drawFooter(data *domain.BookingDocumentData) {
	pdf := l.pdf
	y := pageHeight - marginBottom + 4

	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(marginLeft, y-2, pageWidth-marginRight, y-2)

	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(110, 110, 110)
	left := fmt.Sprintf("%s  ·  Issued %s", l.engine.issuerName, FormatDate(data.IssueDate))
	pdf.Text(marginLeft, y+2, left)
	pdf.Text(marginLeft, y+6, "Terms: "+l.engine.termsURL)

	confidential := "CONFIDENTIAL"
	w := pdf.GetStringWidth(confidential)
	pdf.Text(pageWidth-marginRight-w, y+2, confidential)
	pdf.SetTextColor(0, 0, 0)
}

// heading draws a section heading. A heading may sit at the bottom of a
// page with its first item opening the next one; only items are atomic.
func (l *layout) heading(text string) {
	l.ensureSpace(headingHeight + lineHeight)
	pdf := l.pdf
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(20, 40, 90)
	pdf.Text(marginLeft, l.y+6, text)
	pdf.SetDrawColor(20, 40, 90)
	pdf.Line(marginLeft, l.y+7.5, pageWidth-marginRight, l.y+7.5)
	pdf.SetTextColor(0, 0, 0)
	l.y += headingHeight
}

func (l *layout) textLine(font string, size float64, indent float64, text string) {
	l.pdf.SetFont("Helvetica", font, size)
	l.pdf.Text(marginLeft+indent, l.y+4, text)
	l.y += lineHeight
}
