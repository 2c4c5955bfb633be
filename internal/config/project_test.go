package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultProjectConfig(t *testing.T) {
	cfg := DefaultProjectConfig()

	if cfg == nil {
		t.Fatal("DefaultProjectConfig() returned nil")
	}

	if cfg.Version != "1.0" {
		t.Errorf("Version = %s, want 1.0", cfg.Version)
	}

	// Check analysis defaults
	if cfg.Analysis.MaxFunctionLines != 50 {
		t.Errorf("Analysis.MaxFunctionLines = %d, want 50", cfg.Analysis.MaxFunctionLines)
	}
	if cfg.Analysis.MaxClassMethods != 10 {
		t.Errorf("Analysis.MaxClassMethods = %d, want 10", cfg.Analysis.MaxClassMethods)
	}
	if cfg.Analysis.MaxNestingDepth != 4 {
		t.Errorf("Analysis.MaxNestingDepth = %d, want 4", cfg.Analysis.MaxNestingDepth)
	}
	if cfg.Analysis.MaxParameters != 5 {
		t.Errorf("Analysis.MaxParameters = %d, want 5", cfg.Analysis.MaxParameters)
	}
	if cfg.Analysis.MaxComplexity != 10 {
		t.Errorf("Analysis.MaxComplexity = %d, want 10", cfg.Analysis.MaxComplexity)
	}
	if cfg.Analysis.MaxCognitive != 15 {
		t.Errorf("Analysis.MaxCognitive = %d, want 15", cfg.Analysis.MaxCognitive)
	}

	// Check duplicate defaults
	if cfg.Duplicates.MinLines != 6 {
		t.Errorf("Duplicates.MinLines = %d, want 6", cfg.Duplicates.MinLines)
	}
	if cfg.Duplicates.StructuralThreshold != 0.90 {
		t.Errorf("Duplicates.StructuralThreshold = %f, want 0.90", cfg.Duplicates.StructuralThreshold)
	}
	if cfg.Duplicates.SemanticThreshold != 0.75 {
		t.Errorf("Duplicates.SemanticThreshold = %f, want 0.75", cfg.Duplicates.SemanticThreshold)
	}

	// Check security defaults
	if cfg.Security.MinEntropy != 3.5 {
		t.Errorf("Security.MinEntropy = %f, want 3.5", cfg.Security.MinEntropy)
	}

	// Check include patterns
	if len(cfg.Include) != 4 {
		t.Errorf("len(Include) = %d, want 4", len(cfg.Include))
	}

	// Check exclude patterns
	if len(cfg.Exclude) < 4 {
		t.Errorf("len(Exclude) = %d, want at least 4", len(cfg.Exclude))
	}
}

func TestLoadProjectConfig_NoFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadProjectConfig(dir)
	if err != nil {
		t.Fatalf("LoadProjectConfig() error = %v", err)
	}

	// Falls back to defaults
	if cfg.Analysis.MaxFunctionLines != 50 {
		t.Errorf("Analysis.MaxFunctionLines = %d, want default 50", cfg.Analysis.MaxFunctionLines)
	}
}

func TestLoadProjectConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `version: "1.0"
analysis:
  max_function_lines: 30
  max_complexity: 8
duplicates:
  min_lines: 10
security:
  min_entropy: 4.0
weights:
  critical: 20
`
	if err := os.WriteFile(filepath.Join(dir, ".refacto.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadProjectConfig(dir)
	if err != nil {
		t.Fatalf("LoadProjectConfig() error = %v", err)
	}

	if cfg.Analysis.MaxFunctionLines != 30 {
		t.Errorf("Analysis.MaxFunctionLines = %d, want 30", cfg.Analysis.MaxFunctionLines)
	}
	if cfg.Analysis.MaxComplexity != 8 {
		t.Errorf("Analysis.MaxComplexity = %d, want 8", cfg.Analysis.MaxComplexity)
	}
	// Unspecified fields keep defaults
	if cfg.Analysis.MaxNestingDepth != 4 {
		t.Errorf("Analysis.MaxNestingDepth = %d, want default 4", cfg.Analysis.MaxNestingDepth)
	}
	if cfg.Duplicates.MinLines != 10 {
		t.Errorf("Duplicates.MinLines = %d, want 10", cfg.Duplicates.MinLines)
	}
	if cfg.Security.MinEntropy != 4.0 {
		t.Errorf("Security.MinEntropy = %f, want 4.0", cfg.Security.MinEntropy)
	}
	if cfg.Weights["critical"] != 20 {
		t.Errorf("Weights[critical] = %d, want 20", cfg.Weights["critical"])
	}
}

func TestLoadProjectConfig_YmlFallback(t *testing.T) {
	dir := t.TempDir()
	content := "version: \"1.0\"\nanalysis:\n  max_parameters: 3\n"
	if err := os.WriteFile(filepath.Join(dir, ".refacto.yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadProjectConfig(dir)
	if err != nil {
		t.Fatalf("LoadProjectConfig() error = %v", err)
	}
	if cfg.Analysis.MaxParameters != 3 {
		t.Errorf("Analysis.MaxParameters = %d, want 3", cfg.Analysis.MaxParameters)
	}
}

func TestSaveProjectConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultProjectConfig()
	cfg.Analysis.MaxComplexity = 7

	if err := SaveProjectConfig(dir, cfg); err != nil {
		t.Fatalf("SaveProjectConfig() error = %v", err)
	}

	loaded, err := LoadProjectConfig(dir)
	if err != nil {
		t.Fatalf("LoadProjectConfig() error = %v", err)
	}
	if loaded.Analysis.MaxComplexity != 7 {
		t.Errorf("Analysis.MaxComplexity = %d, want 7", loaded.Analysis.MaxComplexity)
	}
}

func TestProjectConfig_Merge(t *testing.T) {
	base := DefaultProjectConfig()
	override := &ProjectConfig{
		Language: "go",
		Analysis: AnalysisConfig{
			MaxFunctionLines: 25,
			Workers:          4,
		},
		Duplicates: DuplicatesConfig{
			SemanticThreshold: 0.85,
		},
		Security: SecurityConfig{
			ConfidenceOverrides: map[string]int{"weak-hash": 60},
		},
		Exclude: []string{"generated/**"},
	}

	base.Merge(override)

	if base.Language != "go" {
		t.Errorf("Language = %s, want go", base.Language)
	}
	if base.Analysis.MaxFunctionLines != 25 {
		t.Errorf("Analysis.MaxFunctionLines = %d, want 25", base.Analysis.MaxFunctionLines)
	}
	if base.Analysis.Workers != 4 {
		t.Errorf("Analysis.Workers = %d, want 4", base.Analysis.Workers)
	}
	// Untouched values survive
	if base.Analysis.MaxClassMethods != 10 {
		t.Errorf("Analysis.MaxClassMethods = %d, want 10", base.Analysis.MaxClassMethods)
	}
	if base.Duplicates.SemanticThreshold != 0.85 {
		t.Errorf("Duplicates.SemanticThreshold = %f, want 0.85", base.Duplicates.SemanticThreshold)
	}
	if base.Duplicates.StructuralThreshold != 0.90 {
		t.Errorf("Duplicates.StructuralThreshold = %f, want 0.90", base.Duplicates.StructuralThreshold)
	}
	if base.Security.ConfidenceOverrides["weak-hash"] != 60 {
		t.Errorf("ConfidenceOverrides[weak-hash] = %d, want 60", base.Security.ConfidenceOverrides["weak-hash"])
	}
	if len(base.Exclude) != 1 || base.Exclude[0] != "generated/**" {
		t.Errorf("Exclude = %v", base.Exclude)
	}
}

func TestProjectConfig_MergeNil(t *testing.T) {
	base := DefaultProjectConfig()
	base.Merge(nil)

	if base.Analysis.MaxFunctionLines != 50 {
		t.Errorf("Merge(nil) should not change anything")
	}
}
