package core

// parser.go turns an uploaded file into headers and rows.
//
// Parsing is purely structural. It rejects files that are not CSV-typed or
// cannot be split into a header line plus rows of at most that many fields,
// and leaves judging cell values to SchemaValidator.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FormatError reports a file that cannot be read as CSV.
type FormatError struct {
	File   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("invalid csv %q: %s", e.File, e.Reason)
	}
	return "invalid csv: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// ParseResult is the structural content of a CSV file.
type ParseResult struct {
	Headers []string
	Rows    []ParsedRow
}

// ParseFile checks the file type and parses its content.
func ParseFile(f FileHandle) (ParseResult, error) {
	if !f.IsCSV() {
		return ParseResult{}, &FormatError{File: f.Name, Reason: "file is not a .csv file"}
	}
	res, err := parseReader(bytes.NewReader(f.Data))
	var fe *FormatError
	if errors.As(err, &fe) {
		fe.File = f.Name
	}
	return res, err
}

// ParseText parses CSV text that is already known to be CSV-typed.
func ParseText(text string) (ParseResult, error) {
	return parseReader(strings.NewReader(text))
}

func parseReader(src io.Reader) (ParseResult, error) {
	r := csv.NewReader(NewCleanReader(src))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return ParseResult{}, &FormatError{Reason: "file has no content"}
	}
	if err != nil {
		return ParseResult{}, &FormatError{Reason: "unreadable header line", Err: err}
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = CleanCell(h)
	}
	if isEmptyRow(headers) {
		return ParseResult{}, &FormatError{Reason: "header line is blank"}
	}

	var rows []ParsedRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ParseResult{}, &FormatError{Reason: "malformed row", Err: err}
		}
		if isEmptyRow(record) {
			continue
		}
		if len(record) > len(headers) {
			line, _ := r.FieldPos(0)
			return ParseResult{}, &FormatError{
				Reason: fmt.Sprintf("line %d has %d fields but the header has %d", line, len(record), len(headers)),
			}
		}
		rows = append(rows, toParsedRow(headers, record))
	}

	return ParseResult{Headers: headers, Rows: rows}, nil
}

// toParsedRow keys cells by header. Short rows get empty trailing cells; a
// duplicated header keeps its first column.
func toParsedRow(headers, record []string) ParsedRow {
	row := make(ParsedRow, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if _, seen := row[h]; seen {
			continue
		}
		if i < len(record) {
			row[h] = strings.TrimSpace(record[i])
		} else {
			row[h] = ""
		}
	}
	return row
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
