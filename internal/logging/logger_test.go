package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// TestAllCategoriesLog checks that every category writes into the shared log file.
func TestAllCategoriesLog(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "grouplock.log")
	if err := Initialize(Config{Level: "debug", JSON: true, File: logFile, Quiet: true}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	t.Cleanup(func() { _ = Initialize(Config{Quiet: true}) })

	categories := []Category{
		CategoryBoot, CategoryBrowser, CategoryLocator, CategoryDispatch, CategoryWatchdog,
		CategoryOrchestrator, CategoryStore, CategoryApp, CategoryUI, CategoryHeuristics,
	}
	for _, cat := range categories {
		Get(cat).Info("category test", zap.String("cat", string(cat)))
	}
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	content := string(data)
	for _, cat := range categories {
		if !strings.Contains(content, `"logger":"`+string(cat)+`"`) {
			t.Errorf("missing entry for category %s", cat)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "level.log")
	if err := Initialize(Config{Level: "warn", File: logFile, Quiet: true}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	t.Cleanup(func() { _ = Initialize(Config{Quiet: true}) })

	Get(CategoryStore).Info("should be dropped")
	Get(CategoryStore).Warn("should be kept")
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(data), "should be dropped") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(string(data), "should be kept") {
		t.Error("warn entry missing")
	}
}

func TestGetBeforeInitializeIsNoop(t *testing.T) {
	if err := Initialize(Config{Quiet: true}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	l := Get(CategoryBrowser)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Info("goes nowhere")
}

func TestConcurrentGet(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Get(CategoryDispatch).Debug("concurrent")
		}()
	}
	wg.Wait()
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"warning": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for in, want := range tests {
		if got := parseLevel(in, false).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
	if got := parseLevel("error", true).String(); got != "debug" {
		t.Errorf("verbose should force debug, got %s", got)
	}
}
