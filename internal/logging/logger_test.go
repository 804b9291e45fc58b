package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readCategoryLog(t *testing.T, dir string, category Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, "logs", date+"_"+string(category)+".log"))
	if err != nil {
		return ""
	}
	return string(data)
}

func TestDebugModeWritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	StoreDebug("opened %s", "bolt")
	Chat("send accepted")
	CloseAll()

	if got := readCategoryLog(t, dir, CategoryStore); !strings.Contains(got, "opened bolt") {
		t.Errorf("store log missing entry, got %q", got)
	}
	if got := readCategoryLog(t, dir, CategoryChat); !strings.Contains(got, "send accepted") {
		t.Errorf("chat log missing entry, got %q", got)
	}
}

func TestDebugModeDisabled(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Session("should not be written")

	if _, err := os.Stat(filepath.Join(dir, "logs")); !os.IsNotExist(err) {
		t.Errorf("logs directory should not exist when debug mode is off")
	}
	if IsCategoryEnabled(CategorySession) {
		t.Errorf("categories must be disabled outside debug mode")
	}
}

func TestCategoryToggle(t *testing.T) {
	dir := t.TempDir()
	err := Initialize(dir, Options{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"api": false, "events": true},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	API("hidden")
	Events("visible")
	CloseAll()

	if got := readCategoryLog(t, dir, CategoryAPI); got != "" {
		t.Errorf("disabled category wrote %q", got)
	}
	if got := readCategoryLog(t, dir, CategoryEvents); !strings.Contains(got, "visible") {
		t.Errorf("enabled category missing entry, got %q", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	StoreDebug("debug line")
	StoreWarn("warn line")
	CloseAll()

	got := readCategoryLog(t, dir, CategoryStore)
	if strings.Contains(got, "debug line") {
		t.Errorf("debug line should be filtered at warn level")
	}
	if !strings.Contains(got, "warn line") {
		t.Errorf("warn line missing, got %q", got)
	}
}

func TestTimerLogging(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	timer := StartTimer(CategorySession, "flush")
	time.Sleep(5 * time.Millisecond)
	if elapsed := timer.StopWithThreshold(time.Nanosecond); elapsed <= 0 {
		t.Errorf("expected positive elapsed time")
	}
	CloseAll()

	if got := readCategoryLog(t, dir, CategorySession); !strings.Contains(got, "flush took") {
		t.Errorf("expected threshold warning, got %q", got)
	}
}

func TestNoopLoggerIsSafe(t *testing.T) {
	l := &Logger{category: CategoryUI}
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	if l.With("k", "v") != l {
		t.Errorf("With on a no-op logger should return the same logger")
	}
}
