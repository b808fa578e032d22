package application

import "github.com/JonMunkholm/bulkimport/internal/core"

// DoneMsg reports a finished action with a status line.
type DoneMsg string

// ErrMsg reports a failed action.
type ErrMsg struct {
	Err error
}

func (e ErrMsg) Error() string { return e.Err.Error() }

// wizardOpenedMsg switches the model to the file prompt.
type wizardOpenedMsg struct{}

// progressMsg is one update from a running import.
type progressMsg core.ImportProgress

// importDoneMsg arrives when the progress stream closes.
type importDoneMsg struct{}
