package core

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// ProcessRecord is a single business process as stored in the record store.
// Score fields are 1-10 when set; zero means the score was not provided.
type ProcessRecord struct {
	Name             string  `json:"name"`
	Department       string  `json:"department"`
	CustomDepartment string  `json:"custom_department,omitempty"`
	TimeSpentHours   float64 `json:"time_spent_hours"`
	Repetitive       int     `json:"repetitive_score,omitempty"`
	DataDriven       int     `json:"data_driven_score,omitempty"`
	RuleBased        int     `json:"rule_based_score,omitempty"`
	HighVolume       int     `json:"high_volume_score,omitempty"`
	Impact           int     `json:"impact_score,omitempty"`
	Feasibility      int     `json:"feasibility_score,omitempty"`
	Notes            string  `json:"notes,omitempty"`
}

// EffectiveDepartment returns CustomDepartment when Department is "Other".
func (r ProcessRecord) EffectiveDepartment() string {
	if strings.EqualFold(r.Department, "Other") && r.CustomDepartment != "" {
		return r.CustomDepartment
	}
	return r.Department
}

// RecordStore creates process records. Implementations live in internal/store.
type RecordStore interface {
	Create(ctx context.Context, rec ProcessRecord) (string, error)
}

// FileHandle is an uploaded file as the wizard sees it.
type FileHandle struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// csvMimeTypes are the content types browsers and tools send for CSV files.
var csvMimeTypes = map[string]bool{
	"text/csv":                    true,
	"application/csv":             true,
	"text/comma-separated-values": true,
	"text/x-csv":                  true,
	"application/x-csv":           true,
}

// IsCSV reports whether the file is CSV-typed. The .csv extension wins;
// a file without an extension is accepted on a CSV content type.
func (f FileHandle) IsCSV() bool {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if ext == ".csv" {
		return true
	}
	if ext != "" {
		return false
	}
	mime := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return csvMimeTypes[mime]
}

// ParsedRow maps header text (as written in the file) to the cell value.
type ParsedRow map[string]string

// WizardStep is the current step of an import wizard.
type WizardStep string

const (
	StepSelectFile WizardStep = "select_file"
	StepPreview    WizardStep = "preview"
	StepImporting  WizardStep = "importing"
	StepSuccess    WizardStep = "success"
	StepFailed     WizardStep = "failed"
	StepClosed     WizardStep = "closed"
)

// Terminal reports whether no further business transition can leave the step.
func (s WizardStep) Terminal() bool {
	return s == StepSuccess || s == StepFailed || s == StepClosed
}

// ScoreErrorPolicy decides whether row-level errors block an import.
type ScoreErrorPolicy string

const (
	// ScorePolicyWarn shows row errors but lets the import proceed.
	ScorePolicyWarn ScoreErrorPolicy = "warn"
	// ScorePolicyBlock treats any row error like a missing column.
	ScorePolicyBlock ScoreErrorPolicy = "block"
)

// Valid reports whether p is a known policy.
func (p ScoreErrorPolicy) Valid() bool {
	return p == ScorePolicyWarn || p == ScorePolicyBlock
}

// FailedRow is a row that could not be created.
type FailedRow struct {
	RowIndex int    `json:"row_index"` // 1-based data row number
	Reason   string `json:"reason"`
}

// ImportResult is the aggregated result of an import, in CSV row order.
type ImportResult struct {
	Succeeded []string    `json:"succeeded"`
	Failed    []FailedRow `json:"failed"`
}

// Total returns the number of rows the import covered.
func (r ImportResult) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// ImportProgress is a point-in-time view of a running import.
type ImportProgress struct {
	Total     int        `json:"total"`
	Done      int        `json:"done"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Step      WizardStep `json:"step"`
}

// Percent returns the progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Done * 100) / p.Total
}

// ProgressCallback is called after each row is attempted.
type ProgressCallback func(ImportProgress)

// WizardSnapshot is a read-only copy of a wizard's observable state.
type WizardSnapshot struct {
	ID         string           `json:"id"`
	Step       WizardStep       `json:"step"`
	FileName   string           `json:"file_name,omitempty"`
	Headers    []string         `json:"headers,omitempty"`
	Rows       []ParsedRow      `json:"rows,omitempty"`
	RowCount   int              `json:"row_count"`
	Report     ValidationReport `json:"report"`
	Messages   []string         `json:"messages,omitempty"`
	CanAdvance bool             `json:"can_advance"`
	CanImport  bool             `json:"can_import"`
	Progress   ImportProgress   `json:"progress"`
	Result     *ImportResult    `json:"result,omitempty"`
	Failure    string           `json:"failure,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
