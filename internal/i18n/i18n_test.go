package i18n

import "testing"

func TestLocalization(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	en := NewLocalizer("en")
	if got := T(en, "report.correct"); got != "Correct" {
		t.Errorf("en report.correct = %q", got)
	}

	zh := NewLocalizer("zh")
	if got := T(zh, "report.correct"); got != "正确" {
		t.Errorf("zh report.correct = %q", got)
	}

	// Unknown languages fall back to English.
	fr := NewLocalizer("fr")
	if got := T(fr, "report.correct"); got != "Correct" {
		t.Errorf("fallback report.correct = %q", got)
	}

	// Missing IDs return the ID itself.
	if got := T(en, "report.nonexistent"); got != "report.nonexistent" {
		t.Errorf("missing id: %q", got)
	}
}

func TestTemplateData(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	en := NewLocalizer("en")
	got := Td(en, "report.question", map[string]any{"Number": 3, "Points": 10.0})
	if got != "Question 3 (10 points)" {
		t.Errorf("templated message = %q", got)
	}
}
