package extract

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	// A horizontal gap wider than this many font sizes starts a new cell.
	cellGapFactor = 1.0
	// A smaller gap inside a cell is a word break.
	wordGapFactor = 0.15
	// Fallback font size when the PDF reports none.
	defaultFontSize = 10.0
	// Glyphs within this many font sizes vertically share a line.
	lineTolerance = 0.5
	// A vertical gap wider than this many font sizes is a paragraph break.
	paragraphGapFactor = 1.8
)

// PDFDocument reads pages through ledongthuc/pdf.
type PDFDocument struct {
	file   *os.File
	reader *pdf.Reader
}

// OpenPDF opens the PDF at path. The caller must Close it.
func OpenPDF(path string) (doc *PDFDocument, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	return &PDFDocument{file: f, reader: r}, nil
}

func (d *PDFDocument) Close() error {
	return d.file.Close()
}

func (d *PDFDocument) NumPages() int {
	return d.reader.NumPage()
}

func (d *PDFDocument) PageText(n int) (text string, err error) {
	defer recoverPage(n, &err)

	lines := d.pageLines(n)
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 && lines[i-1].y-l.y > paragraphGapFactor*l.size {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(splitCells(l.runs), " "))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func (d *PDFDocument) PageTables(n int) (tables []Table, err error) {
	defer recoverPage(n, &err)

	return tablesFromLines(d.pageLines(n)), nil
}

// pageLines reads the positioned glyphs of page n. Content tracks Td, TD, T*
// and Tm as well as the CTM, so glyph positions hold whatever operator placed them.
func (d *PDFDocument) pageLines(n int) []line {
	page := d.reader.Page(n)
	if page.V.IsNull() {
		return nil
	}
	return linesFromText(page.Content().Text)
}

func recoverPage(n int, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: page %d: %v", ErrUnreadableDocument, n, r)
	}
}

// line is one baseline of text, runs ordered left to right.
type line struct {
	y    float64
	size float64
	runs []pdf.Text
}

// linesFromText groups glyph runs sharing a baseline into lines, top of the
// page first.
func linesFromText(texts []pdf.Text) []line {
	runs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.Trim(t.S, "\r\n") == "" && t.S != "" {
			continue
		}
		runs = append(runs, t)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Y > runs[j].Y })

	var lines []line
	for _, t := range runs {
		size := fontSize(t)
		if k := len(lines) - 1; k >= 0 && lines[k].y-t.Y <= lineTolerance*size {
			lines[k].runs = append(lines[k].runs, t)
			continue
		}
		lines = append(lines, line{y: t.Y, size: size, runs: []pdf.Text{t}})
	}
	for _, l := range lines {
		sort.SliceStable(l.runs, func(i, j int) bool { return l.runs[i].X < l.runs[j].X })
	}
	return lines
}

// tablesFromLines groups consecutive lines that split into two or more cells.
// Single-cell lines (prose) end the current table.
func tablesFromLines(lines []line) []Table {
	var tables []Table
	var current Table
	for _, l := range lines {
		cells := splitCells(l.runs)
		if len(cells) < 2 {
			if len(current) > 0 {
				tables = append(tables, current)
				current = nil
			}
			continue
		}
		current = append(current, cells)
	}
	if len(current) > 0 {
		tables = append(tables, current)
	}
	return tables
}

// splitCells joins the text runs of one line, starting a new cell wherever the
// horizontal gap between runs exceeds cellGapFactor font sizes.
func splitCells(runs []pdf.Text) Row {
	var cells Row
	var cell strings.Builder
	prevEnd := 0.0
	for i, t := range runs {
		if i > 0 {
			size := fontSize(t)
			gap := t.X - prevEnd
			switch {
			case gap > cellGapFactor*size:
				cells = appendCell(cells, cell.String())
				cell.Reset()
			case gap > wordGapFactor*size:
				cell.WriteByte(' ')
			}
		}
		cell.WriteString(t.S)
		if end := t.X + runWidth(t); i == 0 || end > prevEnd {
			prevEnd = end
		}
	}
	return appendCell(cells, cell.String())
}

func fontSize(t pdf.Text) float64 {
	if t.FontSize > 0 {
		return t.FontSize
	}
	return defaultFontSize
}

// runWidth returns the glyph width, or an estimate of half an em per rune for
// fonts that carry no Widths array.
func runWidth(t pdf.Text) float64 {
	if t.W > 0 {
		return t.W
	}
	return 0.5 * fontSize(t) * float64(utf8.RuneCountInString(t.S))
}

func appendCell(cells Row, s string) Row {
	s = strings.TrimSpace(s)
	if s == "" {
		return cells
	}
	return append(cells, s)
}
