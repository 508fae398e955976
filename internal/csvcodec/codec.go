package csvcodec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pricofy/csv-translation/internal/domain"
)

// Row holds the cells of one record, ordered by the document header.
type Row []string

// Document is a parsed CSV file.
type Document struct {
	Header  []string
	Rows    []Row
	Dialect Dialect
}

// Value returns the cell of row under column, or "" when absent.
func (d *Document) Value(row int, column string) string {
	for i, name := range d.Header {
		if name == column && row < len(d.Rows) && i < len(d.Rows[row]) {
			return d.Rows[row][i]
		}
	}
	return ""
}

// Records returns the header followed by every row.
func (d *Document) Records() [][]string {
	out := make([][]string, 0, len(d.Rows)+1)
	out = append(out, d.Header)
	for _, row := range d.Rows {
		out = append(out, row)
	}
	return out
}

// WithRows returns a document sharing header and dialect with d.
func (d *Document) WithRows(rows []Row) *Document {
	return &Document{Header: d.Header, Rows: rows, Dialect: d.Dialect}
}

// Parse sniffs the dialect from the first SampleLines lines of text and reads
// the header and rows. Every row must have as many fields as the header.
func Parse(text string) (*Document, error) {
	dialect, err := Sniff(Sample(text, SampleLines))
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = dialect.Delimiter
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: no header", domain.ErrMalformedCSV)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedCSV, err)
	}

	doc := &Document{Header: header, Dialect: dialect}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, csv.ErrFieldCount) {
				return nil, fmt.Errorf("%w: row field count does not match header (%d columns): %w", domain.ErrMalformedCSV, len(header), err)
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedCSV, err)
		}
		doc.Rows = append(doc.Rows, Row(rec))
	}

	return doc, nil
}

// Serialize writes the document with its dialect. Fields holding any
// candidate delimiter are quoted so that Parse sniffs the same dialect back.
func Serialize(doc *Document) (string, error) {
	if doc.Dialect.Delimiter == 0 {
		return "", fmt.Errorf("%w: dialect has no delimiter", domain.ErrMalformedCSV)
	}

	var b strings.Builder
	writeRecord(&b, doc.Header, doc.Dialect)
	for i, row := range doc.Rows {
		if len(row) != len(doc.Header) {
			return "", fmt.Errorf("%w: row %d has %d fields, header has %d", domain.ErrMalformedCSV, i+1, len(row), len(doc.Header))
		}
		writeRecord(&b, row, doc.Dialect)
	}
	return b.String(), nil
}

func writeRecord(b *strings.Builder, fields []string, d Dialect) {
	for i, field := range fields {
		if i > 0 {
			b.WriteRune(d.Delimiter)
		}
		if !needsQuotes(field, d.Delimiter) {
			b.WriteString(field)
			continue
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString(d.LineTerminator())
}

func needsQuotes(field string, comma rune) bool {
	if field == "" {
		return false
	}
	if strings.ContainsAny(field, "\"\r\n") || strings.ContainsRune(field, comma) {
		return true
	}
	for _, c := range candidateDelimiters {
		if strings.ContainsRune(field, c) {
			return true
		}
	}
	r, _ := utf8.DecodeRuneInString(field)
	return unicode.IsSpace(r)
}
