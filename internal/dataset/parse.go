package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrEmptyDocument is returned for documents without a header line.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrNotCSV is returned when the remote side answered with an HTML page instead of CSV.
	ErrNotCSV = errors.New("document is HTML, not CSV")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseError is returned when a document is not well-formed tabular text.
type ParseError struct {
	// Line is the 1-based line of the offending record, 0 if unknown.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads a CSV document into a table. The first record is the header.
// Every column gets a single kind, inferred from all of its non-blank cells.
func Parse(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	if looksLikeHTML(br) {
		return nil, &ParseError{Err: ErrNotCSV}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: ErrEmptyDocument}
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, wrapCSVError(err)
	}

	names := normalizeHeader(header)
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Kind: inferKind(records, i)}
	}

	rows := make([]Row, len(records))
	for i, record := range records {
		row := make(Row, len(columns))
		for j, c := range columns {
			row[c.Name] = parseCell(record[j], c.Kind)
		}
		rows[i] = row
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

func wrapCSVError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return &ParseError{Err: err}
}

func looksLikeHTML(br *bufio.Reader) bool {
	head, _ := br.Peek(512)
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return false
	}
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html"))
}

// normalizeHeader names blank header cells "Unnamed: <index>" and
// suffixes repeated names with ".1", ".2", ... Names are compared
// case-insensitively like SQLite identifiers, and the storage ordinal
// column counts as taken.
func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	used := map[string]bool{strings.ToLower(ordinalColumn): true}
	suffix := make(map[string]int)
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		orig, base := name, strings.ToLower(name)
		for used[strings.ToLower(name)] {
			suffix[base]++
			name = orig + "." + strconv.Itoa(suffix[base])
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// inferKind picks the narrowest kind that every non-blank cell of the column fits.
func inferKind(records [][]string, col int) Kind {
	isBool, isInt, isFloat := true, true, true
	var nonBlank int
	for _, record := range records {
		cell := strings.TrimSpace(record[col])
		if cell == "" {
			continue
		}
		nonBlank++
		if isBool {
			_, isBool = parseBool(cell)
		}
		if isInt {
			_, err := strconv.ParseInt(cell, 10, 64)
			isInt = err == nil
		}
		if isFloat {
			_, isFloat = parseFloat(cell)
		}
		if !isBool && !isInt && !isFloat {
			break
		}
	}
	switch {
	case nonBlank == 0:
		return KindString
	case isBool:
		return KindBool
	case isInt:
		return KindInteger
	case isFloat:
		return KindNumber
	default:
		return KindString
	}
}
