// Package pdf is a minimal PDF 1.4 document sink: multi-page text and line
// drawing, deferred text regions resolved at close, and append-only overlay
// stamping of finished documents via incremental update.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
)

// Version is the PDF specification version emitted.
const Version = "1.4"

// Fixed low object numbers shared by every document this package writes.
// Stamping relies on the catalog and fonts keeping these slots.
const (
	objCatalog     = 1
	objPages       = 2
	objFontRegular = 3
	objFontBold    = 4
	objFirstPage   = 5
)

// FontRegular and FontBold name the two built-in fonts available to text
// operations.
const (
	FontRegular = "/F1"
	FontBold    = "/F2"
)

// Page dimension presets in points.
var (
	A4Width  = 595.276
	A4Height = 841.890
)

// Canvas accumulates PDF content-stream operators. It backs both document
// pages and overlay stamps.
type Canvas struct {
	ops strings.Builder
}

// Text draws s at (x, y) in the given font and size. The origin is the
// lower-left corner of the page.
func (c *Canvas) Text(x, y float64, font string, size float64, s string) {
	c.ops.WriteString("BT\n")
	fmt.Fprintf(&c.ops, "%s %.2f Tf\n", font, size)
	fmt.Fprintf(&c.ops, "%.2f %.2f Td\n", x, y)
	fmt.Fprintf(&c.ops, "(%s) Tj\n", escapeString(s))
	c.ops.WriteString("ET\n")
}

// Line strokes a straight line between two points.
func (c *Canvas) Line(x1, y1, x2, y2 float64) {
	fmt.Fprintf(&c.ops, "%.2f %.2f m %.2f %.2f l S\n", x1, y1, x2, y2)
}

// Rect strokes a rectangle with lower-left corner (x, y).
func (c *Canvas) Rect(x, y, w, h float64) {
	fmt.Fprintf(&c.ops, "%.2f %.2f %.2f %.2f re S\n", x, y, w, h)
}

// FillRect fills a rectangle with the current gray level.
func (c *Canvas) FillRect(x, y, w, h float64) {
	fmt.Fprintf(&c.ops, "%.2f %.2f %.2f %.2f re f\n", x, y, w, h)
}

// SetLineWidth sets the stroke width in points.
func (c *Canvas) SetLineWidth(w float64) {
	fmt.Fprintf(&c.ops, "%.2f w\n", w)
}

// SetGray sets both fill and stroke gray level, 0 black to 1 white.
func (c *Canvas) SetGray(g float64) {
	fmt.Fprintf(&c.ops, "%.3f g %.3f G\n", g, g)
}

// Content returns the accumulated operator stream.
func (c *Canvas) Content() string {
	return c.ops.String()
}

// TextRegion is a fixed-position text slot whose content is supplied after
// the page is composed, at the latest when the document closes. Unset
// regions render nothing.
type TextRegion struct {
	x, y float64
	font string
	size float64
	text string
	set  bool
}

// Set supplies the region's text.
func (r *TextRegion) Set(s string) {
	r.text = s
	r.set = true
}

// Page is one document page under composition.
type Page struct {
	Canvas
	deferred []*TextRegion
}

// ReserveText reserves a deferred text region at (x, y). The text is drawn
// when the document closes, after Set has been called.
func (p *Page) ReserveText(x, y float64, font string, size float64) *TextRegion {
	r := &TextRegion{x: x, y: y, font: font, size: size}
	p.deferred = append(p.deferred, r)
	return r
}

// Document composes a multi-page PDF. Pages are buffered until Bytes so
// deferred regions can be resolved against the final page count.
type Document struct {
	width  float64
	height float64
	title  string
	pages  []*Page
	closed bool
}

// NewDocument creates an empty A4 portrait document.
func NewDocument(title string) *Document {
	return &Document{width: A4Width, height: A4Height, title: title}
}

// PageWidth returns the page width in points.
func (d *Document) PageWidth() float64 { return d.width }

// PageHeight returns the page height in points.
func (d *Document) PageHeight() float64 { return d.height }

// AddPage starts a new page and returns it for drawing.
func (d *Document) AddPage() *Page {
	p := &Page{}
	d.pages = append(d.pages, p)
	return p
}

// PageCount returns the number of pages added so far.
func (d *Document) PageCount() int { return len(d.pages) }

// Bytes closes the document and assembles the final file. Deferred text
// regions are flushed into their pages first. A document with no pages is
// an error; Bytes may only be called once.
func (d *Document) Bytes() ([]byte, error) {
	if d.closed {
		return nil, fmt.Errorf("pdf: document already closed")
	}
	if len(d.pages) == 0 {
		return nil, fmt.Errorf("pdf: document has no pages")
	}
	d.closed = true

	for _, p := range d.pages {
		for _, r := range p.deferred {
			if r.set && r.text != "" {
				p.Text(r.x, r.y, r.font, r.size, r.text)
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + Version + "\n")
	buf.WriteString("%\xE2\xE3\xCF\xD3\n")

	// Objects 1..4 are fixed; pages follow as stream/page pairs.
	kids := make([]string, len(d.pages))
	for i := range d.pages {
		kids[i] = fmt.Sprintf("%d 0 R", objFirstPage+2*i+1)
	}

	objects := []string{
		fmt.Sprintf("<< /Type /Catalog\n/Pages %d 0 R\n>>", objPages),
		fmt.Sprintf("<< /Type /Pages\n/Kids [%s]\n/Count %d\n>>", strings.Join(kids, " "), len(d.pages)),
		"<< /Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n/Encoding /WinAnsiEncoding\n>>",
		"<< /Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica-Bold\n/Encoding /WinAnsiEncoding\n>>",
	}

	for i, p := range d.pages {
		content := p.Content()
		stream := fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
		objects = append(objects, stream)

		streamNum := objFirstPage + 2*i
		page := fmt.Sprintf(
			"<< /Type /Page\n/Parent %d 0 R\n/MediaBox [0 0 %.2f %.2f]\n/Contents %d 0 R\n/Resources << /Font << /F1 %d 0 R /F2 %d 0 R >> >>\n>>",
			objPages, d.width, d.height, streamNum, objFontRegular, objFontBold)
		objects = append(objects, page)
	}

	xref := make([]int, len(objects)+1)
	for i, obj := range objects {
		xref[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefPos := buf.Len()
	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", xref[i])
	}

	buf.WriteString("trailer\n")
	fmt.Fprintf(&buf, "<< /Size %d\n/Root %d 0 R\n>>\n", len(objects)+1, objCatalog)
	buf.WriteString("startxref\n")
	fmt.Fprintf(&buf, "%d\n", xrefPos)
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), nil
}

// escapeString escapes special characters for PDF text strings.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "(", "\\(")
	s = strings.ReplaceAll(s, ")", "\\)")
	return s
}
