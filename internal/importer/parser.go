package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var candidateDelimiters = []rune{',', ';', '\t', ':'}

const delimiterSampleLines = 10

// MissingHeadersError reports the required header fields absent from the
// file, in canonical order.
type MissingHeadersError struct {
	Missing []Field
}

func (e *MissingHeadersError) Error() string {
	return "missing required headers: " + joinFields(e.Missing)
}

// MalformedError wraps a structural CSV failure (unbalanced quoting, wrong
// column count). Malformed records are never silently skipped.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return "malformed csv: " + e.Err.Error()
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Parse turns raw CSV bytes into a sequence of canonical rows. It strips a
// UTF-8 BOM, auto-detects the delimiter, skips blank lines, ignores unknown
// columns, and asserts the required headers against the actual parse.
func Parse(data []byte) ([]Row, error) {
	content := bytes.TrimPrefix(data, []byte("\uFEFF"))
	delimiter := detectDelimiter(content)

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = delimiter

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &MissingHeadersError{Missing: append([]Field(nil), RequiredFields...)}
	}
	if err != nil {
		return nil, &MalformedError{Err: err}
	}

	columns := mapHeader(header)
	if missing := missingRequired(columns); len(missing) > 0 {
		return nil, &MissingHeadersError{Missing: missing}
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &MalformedError{Err: err}
		}
		row := Row{}
		for field, index := range columns {
			if index < len(record) {
				row[field] = record[index]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// detectDelimiter probes the candidate delimiters against the first few
// lines and picks the first one whose normalized header set covers the
// required fields. Comma wins when nothing matches.
func detectDelimiter(content []byte) rune {
	sample := sampleLines(content, delimiterSampleLines)
	for _, candidate := range candidateDelimiters {
		reader := csv.NewReader(strings.NewReader(sample))
		reader.Comma = candidate
		reader.FieldsPerRecord = -1
		header, err := reader.Read()
		if err != nil {
			continue
		}
		if len(missingRequired(mapHeader(header))) == 0 {
			return candidate
		}
	}
	return ','
}

func sampleLines(content []byte, n int) string {
	lines := strings.SplitN(string(content), "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// mapHeader maps known headers to their column index; unknown columns are
// dropped. The first occurrence of a duplicated header wins.
func mapHeader(header []string) map[Field]int {
	columns := make(map[Field]int, len(header))
	for index, raw := range header {
		field, ok := knownField(raw)
		if !ok {
			continue
		}
		if _, seen := columns[field]; !seen {
			columns[field] = index
		}
	}
	return columns
}

func missingRequired(columns map[Field]int) []Field {
	var missing []Field
	for _, field := range RequiredFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// classifyParseError maps a Parse failure onto a single pipeline-level
// result error. Parser failures are normal outcomes, not panics.
func classifyParseError(err error) string {
	var missingErr *MissingHeadersError
	if errors.As(err, &missingErr) {
		return "Missing required headers: " + joinFields(missingErr.Missing)
	}
	var malformedErr *MalformedError
	if errors.As(err, &malformedErr) {
		return "Invalid CSV format: " + malformedErr.Err.Error()
	}
	return fmt.Sprintf("Unexpected import error: %v", err)
}
