package ui

import "testing"

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("GROUPLOCK_DARK_MODE", "1")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme when GROUPLOCK_DARK_MODE=1")
	}

	t.Setenv("GROUPLOCK_DARK_MODE", "")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when GROUPLOCK_DARK_MODE is unset")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black COLORFGBG background")
	}
}
