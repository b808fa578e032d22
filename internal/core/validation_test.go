package core

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseForTest(t *testing.T, text string) ParseResult {
	t.Helper()
	res, err := ParseText(text)
	require.NoError(t, err)
	return res
}

func TestValidate_CleanFile(t *testing.T) {
	res := parseForTest(t, validCSV(5))

	report := NewSchemaValidator().Validate(res.Headers, res.Rows)

	if diff := cmp.Diff(ValidationReport{}, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, report.OK())
}

func TestValidate_HeaderOrderAndCaseIgnored(t *testing.T) {
	headers := make([]string, len(RequiredColumns))
	for i, c := range RequiredColumns {
		headers[len(headers)-1-i] = strings.ToUpper(c)
	}

	missing := NewSchemaValidator().MissingColumns(headers)
	assert.Empty(t, missing)
}

func TestValidate_MissingColumns(t *testing.T) {
	res := parseForTest(t, "Name,Dept,Time\nInvoice review,Finance,4\n")

	report := NewSchemaValidator().Validate(res.Headers, res.Rows)

	if diff := cmp.Diff(RequiredColumns, report.MissingColumns); diff != "" {
		t.Errorf("missing columns mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, report.RowErrors, "row checks skip columns that are missing")
	assert.False(t, report.IsEmpty)
	assert.Contains(t, report.Messages()[0], "Missing required columns")
	assert.ErrorIs(t, report.BlocksImport(ScorePolicyWarn), ErrMissingColumns)
}

func TestValidate_PartiallyMissingColumns(t *testing.T) {
	header := strings.Replace(templateHeader, ",Impact Score", "", 1)
	res := parseForTest(t, header+"\nA,Finance,,1,1,1,1,1,1,\n")

	report := NewSchemaValidator().Validate(res.Headers, res.Rows)

	assert.Equal(t, []string{ColImpact}, report.MissingColumns)
	assert.Empty(t, report.RowErrors)
}

func TestValidate_EmptyFileShortCircuits(t *testing.T) {
	res := parseForTest(t, templateHeader+"\n")

	report := NewSchemaValidator().Validate(res.Headers, res.Rows)

	assert.True(t, report.IsEmpty)
	assert.Empty(t, report.RowErrors)
	assert.Equal(t, []string{"CSV file is empty"}, report.Messages())
	assert.ErrorIs(t, report.BlocksImport(ScorePolicyWarn), ErrEmptyFile)
}

func TestValidate_ScoreOutOfRange(t *testing.T) {
	text := templateHeader + "\n" +
		"Good,Finance,,2,5,5,5,5,5,5,\n" +
		"Bad,Finance,,2,15,5,5,5,5,5,\n"
	res := parseForTest(t, text)

	report := NewSchemaValidator().Validate(res.Headers, res.Rows)

	want := []RowError{{RowIndex: 2, Field: ColRepetitive, Message: "Repetitive Score must be a whole number between 1 and 10"}}
	if diff := cmp.Diff(want, report.RowErrors); diff != "" {
		t.Errorf("row errors mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, report.Messages()[0], "between 1 and 10")
	assert.NoError(t, report.BlocksImport(ScorePolicyWarn))
	assert.ErrorIs(t, report.BlocksImport(ScorePolicyBlock), ErrRowErrors)
}

func TestValidate_AccumulatesEveryProblem(t *testing.T) {
	text := templateHeader + "\n" +
		",Finance,,lots,0,abc,,11,5,5,\n" +
		"Fine,Ops,,1,1,1,1,1,1,1,\n" +
		"Also bad,Ops,,1,1,1,1,1,1,7.5,\n"
	res := parseForTest(t, text)

	report := NewSchemaValidator().Validate(res.Headers, res.Rows)

	want := []RowError{
		{RowIndex: 1, Field: ColProcessName, Message: "Process Name is required"},
		{RowIndex: 1, Field: ColTimeSpent, Message: "Time Spent must be a non-negative number of hours"},
		{RowIndex: 1, Field: ColRepetitive, Message: ScoreRangeMessage(ColRepetitive)},
		{RowIndex: 1, Field: ColDataDriven, Message: ScoreRangeMessage(ColDataDriven)},
		{RowIndex: 1, Field: ColRuleBased, Message: ScoreRangeMessage(ColRuleBased)},
		{RowIndex: 1, Field: ColHighVolume, Message: ScoreRangeMessage(ColHighVolume)},
		{RowIndex: 3, Field: ColFeasibility, Message: ScoreRangeMessage(ColFeasibility)},
	}
	if diff := cmp.Diff(want, report.RowErrors); diff != "" {
		t.Errorf("row errors mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, report.ErrorsForRow(1), 6)
	assert.Empty(t, report.ErrorsForRow(2))
}
