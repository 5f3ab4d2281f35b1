package i18n

import (
	"strings"
	"testing"
)

func TestTranslate(t *testing.T) {
	tr, err := New("en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := tr.T("en", "timesheet.rejected", map[string]any{
		"Week":   "2026-10-12",
		"Stage":  "dm",
		"Reason": "missing hours",
	})
	if !strings.Contains(got, "missing hours") || !strings.Contains(got, "2026-10-12") {
		t.Fatalf("unexpected text %q", got)
	}

	zh := tr.T("zh", "timesheet.approved", map[string]any{"Week": "2026-10-12"})
	if !strings.Contains(zh, "审批通过") {
		t.Fatalf("expected zh text, got %q", zh)
	}
}

func TestTranslateFallbacks(t *testing.T) {
	tr, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.DefaultLocale() != "en" {
		t.Fatalf("default locale = %q", tr.DefaultLocale())
	}

	// unknown locale falls back to the default
	got := tr.T("fr", "timesheet.approved", map[string]any{"Week": "2026-10-12"})
	if !strings.HasPrefix(got, "Your timesheet") {
		t.Fatalf("expected english fallback, got %q", got)
	}

	if got := tr.T("en", "no.such.message", nil); got != "no.such.message" {
		t.Fatalf("unknown id should be returned as-is, got %q", got)
	}
}
