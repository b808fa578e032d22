package core

import "time"

// ImportSession is the in-memory state of one wizard invocation. It is owned
// by its Wizard and never shared across wizards.
type ImportSession struct {
	ID        string
	File      *FileHandle
	Headers   []string
	Rows      []ParsedRow
	Report    ValidationReport
	FormatErr error // set when the selected file could not be parsed
	Step      WizardStep
	Result    *ImportResult
	Failure   string // user-facing reason for StepFailed
	CreatedAt time.Time
	UpdatedAt time.Time
}

func newImportSession(id string, now time.Time) *ImportSession {
	return &ImportSession{
		ID:        id,
		Step:      StepSelectFile,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// parsed reports whether a file was selected and parsed without error.
func (s *ImportSession) parsed() bool {
	return s.File != nil && s.FormatErr == nil && s.Headers != nil
}

// clearData drops parsed rows and the derived report. The file reference
// is kept.
func (s *ImportSession) clearData() {
	s.Headers = nil
	s.Rows = nil
	s.Report = ValidationReport{}
	s.FormatErr = nil
}

// discard releases everything the session holds.
func (s *ImportSession) discard() {
	s.clearData()
	s.File = nil
	s.Result = nil
}

// messages returns the user-facing lines for the session's current state.
func (s *ImportSession) messages() []string {
	var out []string
	if s.FormatErr != nil {
		out = append(out, "Please upload a valid CSV file")
	}
	out = append(out, s.Report.Messages()...)
	if s.Failure != "" {
		out = append(out, s.Failure)
	}
	return out
}
