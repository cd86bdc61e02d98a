package stakeout

import "testing"

func TestNewQuery_ValidJSON(t *testing.T) {
	q, err := NewQuery(ModeJSON, "available", WithLocator("$.data.status"))
	if err != nil {
		t.Fatalf("NewQuery() error = %v", err)
	}

	if q.Mode() != ModeJSON {
		t.Errorf("Mode() = %v, want %v", q.Mode(), ModeJSON)
	}
	if q.Locator() != "$.data.status" {
		t.Errorf("Locator() = %v, want %v", q.Locator(), "$.data.status")
	}
	if q.TargetValue() != "available" {
		t.Errorf("TargetValue() = %v, want %v", q.TargetValue(), "available")
	}
	if q.Negative() {
		t.Error("Negative() = true, want false")
	}
}

func TestNewQuery_ValidHTML(t *testing.T) {
	q, err := NewQuery(ModeHTML, "In Stock")
	if err != nil {
		t.Fatalf("NewQuery() error = %v", err)
	}

	if q.Mode() != ModeHTML {
		t.Errorf("Mode() = %v, want %v", q.Mode(), ModeHTML)
	}
	if q.Locator() != "" {
		t.Errorf("Locator() = %v, want empty", q.Locator())
	}
}

func TestNewQuery_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		target string
		opts   []QueryOption
	}{
		{"unknown mode", Mode("xml"), "value", nil},
		{"empty mode", Mode(""), "value", nil},
		{"empty target", ModeHTML, "", nil},
		{"json without locator", ModeJSON, "value", nil},
		{"empty locator", ModeJSON, "value", []QueryOption{WithLocator("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQuery(tt.mode, tt.target, tt.opts...)
			if err == nil {
				t.Error("NewQuery() expected error, got nil")
			}
		})
	}
}

func TestWithNegative(t *testing.T) {
	q, err := NewQuery(ModeHTML, "Sold Out", WithNegative())
	if err != nil {
		t.Fatalf("NewQuery() error = %v", err)
	}

	if !q.Negative() {
		t.Error("Negative() = false, want true")
	}
}

func TestMode_String(t *testing.T) {
	if ModeJSON.String() != "json" {
		t.Errorf("ModeJSON.String() = %v, want json", ModeJSON.String())
	}
	if ModeHTML.String() != "html" {
		t.Errorf("ModeHTML.String() = %v, want html", ModeHTML.String())
	}
}
