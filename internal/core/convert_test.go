package core

import "testing"

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple string unchanged", input: "Invoice review", want: "Invoice review"},
		{name: "empty string", input: "", want: ""},
		{name: "surrounded by whitespace", input: "  Finance  ", want: "Finance"},
		{name: "Excel formula with quotes", input: `="7"`, want: "7"},
		{name: "Excel formula without quotes", input: "=7", want: "7"},
		{name: "surrounding double quotes", input: `"Finance"`, want: "Finance"},
		{name: "surrounding single quotes", input: "'Finance'", want: "Finance"},
		{name: "whitespace inside quotes", input: `" Finance "`, want: "Finance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanCell(tt.input)
			if got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// MakeHeaderIndex Tests
// ----------------------------------------------------------------------------

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{" Process Name ", "DEPARTMENT", "Process Name"})

	if got, ok := idx["process name"]; !ok || got != 0 {
		t.Errorf(`idx["process name"] = %d, %v; want 0, true`, got, ok)
	}
	if got, ok := idx["department"]; !ok || got != 1 {
		t.Errorf(`idx["department"] = %d, %v; want 1, true`, got, ok)
	}
	if len(idx) != 2 {
		t.Errorf("len(idx) = %d, want 2", len(idx))
	}
}

// ----------------------------------------------------------------------------
// ParseScore Tests
// ----------------------------------------------------------------------------

func TestParseScore(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"1", 1, true},
		{"10", 10, true},
		{" 7 ", 7, true},
		{`="5"`, 5, true},
		{"0", 0, false},
		{"11", 0, false},
		{"15", 0, false},
		{"-3", 0, false},
		{"7.5", 0, false},
		{"seven", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseScore(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseScore(%q) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseHours Tests
// ----------------------------------------------------------------------------

func TestParseHours(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"12", 12, true},
		{"12.5", 12.5, true},
		{".5", 0.5, true},
		{"1,200", 1200, true},
		{"4 hrs", 4, true},
		{"6h", 6, true},
		{"2 Hours", 2, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"lots", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseHours(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseHours(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// RecordFromRow Tests
// ----------------------------------------------------------------------------

func TestRecordFromRow(t *testing.T) {
	row := ParsedRow{
		"process name":      "Invoice matching",
		"Department":        "Other",
		"Custom Department": "Shared Services",
		"Time Spent":        "12.5",
		"Repetitive Score":  "9",
		"Data-Driven Score": "8",
		"Rule-Based Score":  "15",
		"High Volume Score": "7",
		"Impact Score":      "6",
		"Feasibility Score": "",
		"Process Notes":     "Monthly close",
	}

	got := RecordFromRow(row)

	if got.Name != "Invoice matching" {
		t.Errorf("Name = %q, want %q", got.Name, "Invoice matching")
	}
	if got.EffectiveDepartment() != "Shared Services" {
		t.Errorf("EffectiveDepartment() = %q, want %q", got.EffectiveDepartment(), "Shared Services")
	}
	if got.TimeSpentHours != 12.5 {
		t.Errorf("TimeSpentHours = %v, want 12.5", got.TimeSpentHours)
	}
	if got.Repetitive != 9 || got.DataDriven != 8 || got.HighVolume != 7 || got.Impact != 6 {
		t.Errorf("scores = %+v, want 9/8/7/6", got)
	}
	if got.RuleBased != 0 {
		t.Errorf("RuleBased = %d, want 0 for out-of-range value", got.RuleBased)
	}
	if got.Feasibility != 0 {
		t.Errorf("Feasibility = %d, want 0 for empty value", got.Feasibility)
	}
	if got.Notes != "Monthly close" {
		t.Errorf("Notes = %q, want %q", got.Notes, "Monthly close")
	}
}
