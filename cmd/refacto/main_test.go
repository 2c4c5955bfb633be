package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/refacto-hq/refacto/pkg/model"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"empty string", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestTruncateJobID(t *testing.T) {
	id := "550e8400-e29b-41d4-a716-446655440000"
	if got := truncateJobID(id, 8); got != "550e8400" {
		t.Errorf("truncateJobID = %q, want %q", got, "550e8400")
	}
	if got := truncateJobID("short", 8); got != "short" {
		t.Errorf("truncateJobID = %q, want %q", got, "short")
	}
}

func TestFormatTime(t *testing.T) {
	got := formatTime("2026-03-15T09:30:00Z")
	if got != "Mar 15 09:30" {
		t.Errorf("formatTime = %q, want %q", got, "Mar 15 09:30")
	}

	// Unparseable input passes through
	if got := formatTime("yesterday"); got != "yesterday" {
		t.Errorf("formatTime = %q, want passthrough", got)
	}
}

func TestRunLocalAnalysis_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := runLocalAnalysis(context.Background(), file, nil)
	if err == nil {
		t.Error("expected error for a file path")
	}
}

func TestRunLocalAnalysis_MissingPath(t *testing.T) {
	_, err := runLocalAnalysis(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestRunLocalAnalysis_FindsIssues(t *testing.T) {
	dir := t.TempDir()

	// A function with far too many parameters
	src := `package sample

func process(a, b, c, d, e, f, g, h int) int {
	return a + b + c + d + e + f + g + h
}
`
	if err := os.WriteFile(filepath.Join(dir, "sample.go"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := runLocalAnalysis(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("runLocalAnalysis failed: %v", err)
	}

	if res.Summary.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1", res.Summary.TotalFiles)
	}

	var found bool
	for i := range res.Issues {
		if res.Issues[i].Type == model.IssueLongParameterList {
			found = true
		}
	}
	if !found {
		t.Errorf("expected long_parameter_list issue, got %d issues", len(res.Issues))
	}
}

func TestEmitReport_WritesFile(t *testing.T) {
	dir := t.TempDir()
	src := "package sample\n\nfunc ok() {}\n"
	if err := os.WriteFile(filepath.Join(dir, "sample.go"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := runLocalAnalysis(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("runLocalAnalysis failed: %v", err)
	}

	out := filepath.Join(t.TempDir(), "report.json")
	if err := emitReport(res, dir, "json", out); err != nil {
		t.Fatalf("emitReport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	if !strings.Contains(string(data), "summary") {
		t.Error("report should contain a summary section")
	}
}

func TestEmitReport_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := runLocalAnalysis(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("runLocalAnalysis failed: %v", err)
	}

	if err := emitReport(res, dir, "xml", ""); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCommands_Registered(t *testing.T) {
	for _, c := range []struct {
		name string
		use  string
	}{
		{"analyze", analyzeCmd().Use},
		{"secrets", secretsCmd().Use},
		{"duplicates", duplicatesCmd().Use},
		{"verify", verifyCmd().Use},
		{"report", reportCmd().Use},
		{"job", jobCmd().Use},
		{"version", versionCmd().Use},
	} {
		if !strings.HasPrefix(c.use, c.name) {
			t.Errorf("command %s has Use %q", c.name, c.use)
		}
	}
}
