package model_test

import (
	"errors"
	"testing"

	"github.com/H3199/duunikanban/internal/model"
)

// ── ParseState ─────────────────────────────────────────────────────────────

func TestParseState_ValidValues(t *testing.T) {
	valid := []string{"new", "saved", "applied", "interview", "offer", "rejected"}
	for _, s := range valid {
		got, err := model.ParseState(s)
		if err != nil {
			t.Errorf("ParseState(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseState(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseState_InvalidValue(t *testing.T) {
	_, err := model.ParseState("bogus")
	if !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("ParseState(\"bogus\") error = %v, want ErrInvalidState", err)
	}
}

func TestParseState_EmptyString(t *testing.T) {
	if _, err := model.ParseState(""); err == nil {
		t.Error("ParseState(\"\") expected error, got nil")
	}
}

// "trash" shows up in old flat-file data but is not a tracked state.
func TestParseState_TrashIsNotAState(t *testing.T) {
	if _, err := model.ParseState("trash"); err == nil {
		t.Error("ParseState(\"trash\") expected error, got nil")
	}
}

func TestParseState_CaseSensitive(t *testing.T) {
	for _, s := range []string{"NEW", "Applied", "INTERVIEW"} {
		if _, err := model.ParseState(s); err == nil {
			t.Errorf("ParseState(%q) should reject non-lowercase value", s)
		}
	}
}

func TestParseState_WithWhitespace(t *testing.T) {
	for _, s := range []string{" applied", "applied ", " applied "} {
		if _, err := model.ParseState(s); err == nil {
			t.Errorf("ParseState(%q) should reject padded value", s)
		}
	}
}

func TestParseState_AllStatesRoundTrip(t *testing.T) {
	all := model.AllStates()
	if len(all) != 6 {
		t.Fatalf("AllStates() returned %d states, want 6", len(all))
	}
	for _, s := range all {
		got, err := model.ParseState(string(s))
		if err != nil {
			t.Errorf("ParseState(%q) unexpected error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseState(%q) = %q, want %q", s, got, s)
		}
	}
}

// ── IsTerminal ─────────────────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	for _, s := range []model.State{model.StateOffer, model.StateRejected} {
		if !model.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should be true", s)
		}
	}
	for _, s := range []model.State{model.StateNew, model.StateSaved, model.StateApplied, model.StateInterview} {
		if model.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should be false", s)
		}
	}
}

// ── ParseRegion ────────────────────────────────────────────────────────────

func TestParseRegion(t *testing.T) {
	for _, s := range []string{"FI", "EMEA", "unspecified"} {
		if _, err := model.ParseRegion(s); err != nil {
			t.Errorf("ParseRegion(%q) unexpected error: %v", s, err)
		}
	}
	if _, err := model.ParseRegion("fi"); err == nil {
		t.Error("ParseRegion(\"fi\") expected error, got nil")
	}
}
