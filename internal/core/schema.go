package core

import (
	"bytes"
	"encoding/csv"
)

// Column headers of the process import file.
const (
	ColProcessName      = "Process Name"
	ColDepartment       = "Department"
	ColCustomDepartment = "Custom Department"
	ColTimeSpent        = "Time Spent"
	ColRepetitive       = "Repetitive Score"
	ColDataDriven       = "Data-Driven Score"
	ColRuleBased        = "Rule-Based Score"
	ColHighVolume       = "High Volume Score"
	ColImpact           = "Impact Score"
	ColFeasibility      = "Feasibility Score"
	ColNotes            = "Process Notes"
)

// TemplateFileName is the download name of the CSV template.
const TemplateFileName = "process_template.csv"

// MinScore and MaxScore bound every score column (inclusive).
const (
	MinScore = 1
	MaxScore = 10
)

// RequiredColumns is the exact header set an import file must contain,
// in template order.
var RequiredColumns = []string{
	ColProcessName,
	ColDepartment,
	ColCustomDepartment,
	ColTimeSpent,
	ColRepetitive,
	ColDataDriven,
	ColRuleBased,
	ColHighVolume,
	ColImpact,
	ColFeasibility,
	ColNotes,
}

// ScoreColumns are the columns holding 1-10 integer scores.
var ScoreColumns = []string{
	ColRepetitive,
	ColDataDriven,
	ColRuleBased,
	ColHighVolume,
	ColImpact,
	ColFeasibility,
}

// TemplateCSV returns the import template: the required header row and no data.
func TemplateCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Writes to a bytes.Buffer cannot fail.
	_ = w.Write(RequiredColumns)
	w.Flush()
	return buf.Bytes()
}
