package core

// convert.go turns raw CSV cells into typed ProcessRecord fields.
//
// Cells coming out of spreadsheet tools carry artifacts: padding, Excel
// formula prefixes (="7"), stray quotes, thousands separators and unit
// suffixes on hours. The Parse* helpers accept those and report ok=false
// for anything else, leaving the caller to decide whether that is an error.

import (
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates a plain decimal number after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// hourSuffixes are stripped from Time Spent values, longest first.
var hourSuffixes = []string{"hours", "hour", "hrs", "hr", "h"}

// HeaderIndex maps lowercased header text to its column position.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are lowercased for case-insensitive matching; the first occurrence of
// a duplicated header wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

// CleanCell removes common CSV artifacts from a cell value:
//   - Trims whitespace
//   - Removes Excel formula prefix (="...")
//   - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// Get returns the cell for column, matching header text case-insensitively.
func (r ParsedRow) Get(column string) (string, bool) {
	if v, ok := r[column]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(strings.TrimSpace(k), column) {
			return v, true
		}
	}
	return "", false
}

// ParseScore parses a score cell. ok is false when the cell is empty, not a
// whole number, or outside [MinScore, MaxScore].
func ParseScore(s string) (int, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < MinScore || n > MaxScore {
		return 0, false
	}
	return n, true
}

// ParseHours parses a Time Spent cell such as "12.5", "1,200" or "4 hrs".
// Negative values are rejected.
func ParseHours(s string) (float64, bool) {
	s = strings.ToLower(CleanCell(s))
	for _, suffix := range hourSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// RecordFromRow converts a parsed row into a ProcessRecord. Cells that do not
// parse are left at their zero value; the validator reports them separately.
func RecordFromRow(row ParsedRow) ProcessRecord {
	cell := func(col string) string {
		v, _ := row.Get(col)
		return CleanCell(v)
	}
	score := func(col string) int {
		n, _ := ParseScore(cell(col))
		return n
	}
	hours, _ := ParseHours(cell(ColTimeSpent))

	return ProcessRecord{
		Name:             cell(ColProcessName),
		Department:       cell(ColDepartment),
		CustomDepartment: cell(ColCustomDepartment),
		TimeSpentHours:   hours,
		Repetitive:       score(ColRepetitive),
		DataDriven:       score(ColDataDriven),
		RuleBased:        score(ColRuleBased),
		HighVolume:       score(ColHighVolume),
		Impact:           score(ColImpact),
		Feasibility:      score(ColFeasibility),
		Notes:            cell(ColNotes),
	}
}

// RecordsFromRows converts rows in order.
func RecordsFromRows(rows []ParsedRow) []ProcessRecord {
	out := make([]ProcessRecord, len(rows))
	for i, row := range rows {
		out[i] = RecordFromRow(row)
	}
	return out
}
