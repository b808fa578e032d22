package core

// validation.go checks parsed rows against the process import schema.
//
// Validation happens at two levels:
//  1. Header validation: every required column must be present (order and
//     case do not matter)
//  2. Row validation: every score cell must be a whole number in [1,10];
//     Process Name must be set and Time Spent, when given, must be a
//     non-negative number
//
// Validation is accumulative. A single pass records every problem so the
// user can fix the file in one attempt. It never fails; an empty report
// means the file is clean.

import (
	"fmt"
	"strings"
)

// RowError is a problem with one cell of one data row.
type RowError struct {
	RowIndex int    `json:"row_index"` // 1-based data row number
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.RowIndex, e.Message)
}

// ValidationReport is the derived validation state of a session's rows.
type ValidationReport struct {
	MissingColumns []string   `json:"missing_columns"`
	RowErrors      []RowError `json:"row_errors"`
	IsEmpty        bool       `json:"is_empty"`
}

// OK reports whether the report holds no problems at all.
func (r ValidationReport) OK() bool {
	return len(r.MissingColumns) == 0 && len(r.RowErrors) == 0 && !r.IsEmpty
}

// BlocksImport returns the reason the report blocks an import under policy,
// or nil.
func (r ValidationReport) BlocksImport(policy ScoreErrorPolicy) error {
	if r.IsEmpty {
		return ErrEmptyFile
	}
	if len(r.MissingColumns) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(r.MissingColumns, ", "))
	}
	if policy == ScorePolicyBlock && len(r.RowErrors) > 0 {
		return fmt.Errorf("%w: %d row errors", ErrRowErrors, len(r.RowErrors))
	}
	return nil
}

// Messages returns the user-facing lines for the report, header problems first.
func (r ValidationReport) Messages() []string {
	var out []string
	if r.IsEmpty {
		out = append(out, "CSV file is empty")
	}
	if len(r.MissingColumns) > 0 {
		out = append(out, "Missing required columns: "+strings.Join(r.MissingColumns, ", "))
	}
	for _, e := range r.RowErrors {
		out = append(out, e.String())
	}
	return out
}

// ErrorsForRow returns the errors recorded against a 1-based row.
func (r ValidationReport) ErrorsForRow(rowIndex int) []RowError {
	var out []RowError
	for _, e := range r.RowErrors {
		if e.RowIndex == rowIndex {
			out = append(out, e)
		}
	}
	return out
}

// ScoreRangeMessage is the message recorded for an invalid score cell.
func ScoreRangeMessage(field string) string {
	return fmt.Sprintf("%s must be a whole number between %d and %d", field, MinScore, MaxScore)
}

// SchemaValidator validates headers and rows against a fixed column set.
type SchemaValidator struct {
	required []string
	scores   []string
}

// NewSchemaValidator returns a validator for the process import schema.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		required: RequiredColumns,
		scores:   ScoreColumns,
	}
}

// Validate builds a report for headers and rows. It never fails.
func (v *SchemaValidator) Validate(headers []string, rows []ParsedRow) ValidationReport {
	report := ValidationReport{
		MissingColumns: v.MissingColumns(headers),
	}

	if len(rows) == 0 {
		report.IsEmpty = true
		return report
	}

	missing := make(map[string]bool, len(report.MissingColumns))
	for _, c := range report.MissingColumns {
		missing[c] = true
	}

	for i, row := range rows {
		report.RowErrors = append(report.RowErrors, v.validateRow(i+1, row, missing)...)
	}

	return report
}

// MissingColumns returns the required columns absent from headers, in
// template order.
func (v *SchemaValidator) MissingColumns(headers []string) []string {
	idx := MakeHeaderIndex(headers)
	var missing []string
	for _, col := range v.required {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// validateRow checks one row. Columns already reported missing are skipped.
func (v *SchemaValidator) validateRow(rowIndex int, row ParsedRow, missing map[string]bool) []RowError {
	var errs []RowError

	if !missing[ColProcessName] {
		if name, _ := row.Get(ColProcessName); CleanCell(name) == "" {
			errs = append(errs, RowError{
				RowIndex: rowIndex,
				Field:    ColProcessName,
				Message:  "Process Name is required",
			})
		}
	}

	if !missing[ColTimeSpent] {
		if raw, _ := row.Get(ColTimeSpent); CleanCell(raw) != "" {
			if _, ok := ParseHours(raw); !ok {
				errs = append(errs, RowError{
					RowIndex: rowIndex,
					Field:    ColTimeSpent,
					Message:  "Time Spent must be a non-negative number of hours",
				})
			}
		}
	}

	for _, col := range v.scores {
		if missing[col] {
			continue
		}
		raw, _ := row.Get(col)
		if _, ok := ParseScore(raw); !ok {
			errs = append(errs, RowError{
				RowIndex: rowIndex,
				Field:    col,
				Message:  ScoreRangeMessage(col),
			})
		}
	}

	return errs
}
