package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelRouterSplitsStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "lostfound.log")

	logger, cleanup, err := newLogger(&stdout, &stderr, logPath)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}

	logger.Info("item reported", "item_id", 1)
	logger.Debug("hidden")
	logger.With("component", "api").Error("database down")
	cleanup()

	if !strings.Contains(stdout.String(), "item reported") || strings.Contains(stdout.String(), "database down") {
		t.Errorf("unexpected stdout: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "component=api") || strings.Contains(stderr.String(), "item reported") {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
	if strings.Contains(stdout.String()+stderr.String(), "hidden") {
		t.Error("debug records should be dropped")
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "item reported") || !strings.Contains(string(data), "database down") {
		t.Errorf("log file should hold every record, got %q", data)
	}
}

func TestPromptPasswordFromPipe(t *testing.T) {
	var prompt bytes.Buffer
	got, err := promptPassword(strings.NewReader("hunter22\n"), &prompt)
	if err != nil {
		t.Fatalf("promptPassword: %v", err)
	}
	if got != "hunter22" {
		t.Errorf("expected hunter22, got %q", got)
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	b, _ := generatePassword(16)
	if len(a) != 16 || a == b {
		t.Errorf("expected two distinct 16 char passwords, got %q and %q", a, b)
	}
}
