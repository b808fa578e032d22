// Support codes shown next to wizard errors.
//
//	NET001  record store unreachable        DB001  duplicate process ID
//	DB004   connection refused              DB005  connection reset
//	DB006   store operation timed out       VAL003 empty Process Name
//	VAL004  required columns missing        VAL007 score outside 1..10
//	VAL008  row errors block the import     FILE001 upload too large
//	FILE002 not a readable CSV              FILE004 no file selected
//	FILE005 header only, no data rows       IMP001 import cancelled
//	IMP002  import slots exhausted          IMP003 import ran past its limit
//	IMP004  request cancelled               IMP005 request deadline exceeded
//	WIZ001  action not valid at this step   WIZ002 session gone or expired
//	RATE001 client over its request budget  ERR000 anything unmatched
//
// Patterns are lowercase substrings of err.Error(). Guard failures are
// wrapped in a TransitionError, so their patterns precede WIZ001.

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern maps lowercase substrings of an error to one UserMessage.
type errorPattern struct {
	match []string
	msg   UserMessage
}

// errorPatterns is scanned in order; the first hit wins.
var errorPatterns = []errorPattern{
	{
		match: []string{"network error"},
		msg:   UserMessage{Code: "NET001", Message: "The record store could not be reached", Action: "Check your connection and try the import again"},
	},
	{
		match: []string{"file too large"},
		msg:   UserMessage{Code: "FILE001", Message: "File exceeds the 10MB upload limit", Action: "Split the file into smaller chunks"},
	},
	{
		match: []string{"invalid csv"},
		msg:   UserMessage{Code: "FILE002", Message: "Please upload a valid CSV file", Action: "Save the file as comma-separated values with a .csv extension"},
	},
	{
		match: []string{"no file provided"},
		msg:   UserMessage{Code: "FILE004", Message: "No file was selected", Action: "Please select a CSV file to upload"},
	},
	{
		match: []string{"csv file is empty"},
		msg:   UserMessage{Code: "FILE005", Message: "CSV file is empty", Action: "Add at least one process row below the header"},
	},
	{
		match: []string{"process name is required"},
		msg:   UserMessage{Code: "VAL003", Message: "Process Name is required", Action: "Give every row a process name"},
	},
	{
		match: []string{"missing required columns"},
		msg:   UserMessage{Code: "VAL004", Message: "Missing required columns", Action: "Download the template and match its headers exactly"},
	},
	{
		match: []string{"between 1 and 10"},
		msg:   UserMessage{Code: "VAL007", Message: "Scores must be whole numbers between 1 and 10", Action: "Fix the highlighted rows in your file"},
	},
	{
		match: []string{"block import"},
		msg:   UserMessage{Code: "VAL008", Message: "Rows with errors must be fixed before importing", Action: "Fix the highlighted rows and select the file again"},
	},
	{
		match: []string{"duplicate key", "unique constraint", "conditional check failed"},
		msg:   UserMessage{Code: "DB001", Message: "A process with this ID already exists", Action: "Review the failed rows and import them again"},
	},
	{
		match: []string{"connection refused"},
		msg:   UserMessage{Code: "DB004", Message: "Unable to connect to the record store", Action: "Please try again in a few moments"},
	},
	{
		match: []string{"connection reset"},
		msg:   UserMessage{Code: "DB005", Message: "The connection was interrupted", Action: "Please try again"},
	},
	{
		match: []string{"import cancelled"},
		msg:   UserMessage{Code: "IMP001", Message: "The import was cancelled", Action: "Start a new import when ready"},
	},
	{
		match: []string{"too many concurrent imports"},
		msg:   UserMessage{Code: "IMP002", Message: "System is busy processing other imports", Action: "Please wait a moment and try again"},
	},
	{
		match: []string{"import timed out"},
		msg:   UserMessage{Code: "IMP003", Message: "The import ran past its time limit", Action: "Try importing a smaller file"},
	},
	{
		match: []string{"context canceled"},
		msg:   UserMessage{Code: "IMP004", Message: "Request was cancelled", Action: "Please try again"},
	},
	{
		match: []string{"context deadline exceeded"},
		msg:   UserMessage{Code: "IMP005", Message: "Request timed out", Action: "Check your connection and try again"},
	},
	{
		match: []string{"timeout", "timed out"},
		msg:   UserMessage{Code: "DB006", Message: "Operation timed out", Action: "Try importing a smaller file or try again later"},
	},
	{
		match: []string{"transition not allowed"},
		msg:   UserMessage{Code: "WIZ001", Message: "This action is not available at the current step", Action: "Follow the wizard steps in order"},
	},
	{
		match: []string{"wizard session not found"},
		msg:   UserMessage{Code: "WIZ002", Message: "Import session not found", Action: "The session may have expired. Please start a new import"},
	},
	{
		match: []string{"rate limit"},
		msg:   UserMessage{Code: "RATE001", Message: "Too many requests", Action: "Please wait a moment before trying again"},
	},
}

// defaultMessage is the ERR000 fallback; the original error is only logged.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match, or the ERR000 fallback.
//
// Example:
//
//	err := fmt.Errorf("%w: Repetitive Score", ErrMissingColumns)
//	msg := MapError(err)
//	// msg.Code == "VAL004"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if containsAny(errStr, ep.match) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
