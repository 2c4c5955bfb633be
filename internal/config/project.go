package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig represents a .refacto.yaml file in a repository
type ProjectConfig struct {
	Version string `yaml:"version"`

	// Language detection override
	Language string `yaml:"language,omitempty"`

	// Detector thresholds
	Analysis AnalysisConfig `yaml:"analysis"`

	// Duplicate detection settings
	Duplicates DuplicatesConfig `yaml:"duplicates"`

	// Security scanner settings
	Security SecurityConfig `yaml:"security,omitempty"`

	// Refactoring verifier settings
	Verifier VerifierConfig `yaml:"verifier,omitempty"`

	// Quality score weights per severity
	Weights map[string]int `yaml:"weights,omitempty"`

	// File patterns
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// AnalysisConfig holds per-detector thresholds
type AnalysisConfig struct {
	// Maximum function length in lines before long_method fires
	MaxFunctionLines int `yaml:"max_function_lines,omitempty"`

	// Maximum methods per class before god_class fires
	MaxClassMethods int `yaml:"max_class_methods,omitempty"`

	// Maximum control-structure nesting depth
	MaxNestingDepth int `yaml:"max_nesting_depth,omitempty"`

	// Maximum formal parameters per function
	MaxParameters int `yaml:"max_parameters,omitempty"`

	// Maximum cyclomatic complexity
	MaxComplexity int `yaml:"max_complexity,omitempty"`

	// Maximum cognitive complexity
	MaxCognitive int `yaml:"max_cognitive,omitempty"`

	// Parallel file analyses; 0 means min(NumCPU, 8)
	Workers int `yaml:"workers,omitempty"`
}

// DuplicatesConfig holds duplicate detection settings
type DuplicatesConfig struct {
	// Minimum fragment size in lines
	MinLines int `yaml:"min_lines,omitempty"`

	// Similarity required for an AST-shape match (0-1)
	StructuralThreshold float64 `yaml:"structural_threshold,omitempty"`

	// Similarity required for a token-set match (0-1)
	SemanticThreshold float64 `yaml:"semantic_threshold,omitempty"`
}

// SecurityConfig holds security scanner settings
type SecurityConfig struct {
	// Minimum Shannon entropy for generic secret assignment matches
	MinEntropy float64 `yaml:"min_entropy,omitempty"`

	// Per-rule confidence overrides keyed by rule id
	ConfidenceOverrides map[string]int `yaml:"confidence_overrides,omitempty"`
}

// VerifierConfig holds refactoring verifier settings
type VerifierConfig struct {
	// Largest input, in lines, the structural diff will accept
	DiffBudgetLines int `yaml:"diff_budget_lines,omitempty"`
}

// DefaultProjectConfig returns sensible defaults
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Version: "1.0",
		Analysis: AnalysisConfig{
			MaxFunctionLines: 50,
			MaxClassMethods:  10,
			MaxNestingDepth:  4,
			MaxParameters:    5,
			MaxComplexity:    10,
			MaxCognitive:     15,
		},
		Duplicates: DuplicatesConfig{
			MinLines:            6,
			StructuralThreshold: 0.90,
			SemanticThreshold:   0.75,
		},
		Security: SecurityConfig{
			MinEntropy: 3.5,
		},
		Verifier: VerifierConfig{
			DiffBudgetLines: 2000,
		},
		Include: []string{"**/*.go", "**/*.py", "**/*.ts", "**/*.js"},
		Exclude: []string{
			"**/vendor/**",
			"**/node_modules/**",
			"**/.git/**",
			"**/dist/**",
			"**/build/**",
		},
	}
}

// LoadProjectConfig loads a .refacto.yaml from the given directory
func LoadProjectConfig(repoPath string) (*ProjectConfig, error) {
	configPath := filepath.Join(repoPath, ".refacto.yaml")

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Also try .refacto.yml
		configPath = filepath.Join(repoPath, ".refacto.yml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultProjectConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveProjectConfig saves the config to .refacto.yaml
func SaveProjectConfig(repoPath string, cfg *ProjectConfig) error {
	configPath := filepath.Join(repoPath, ".refacto.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Merge applies overrides from another config (e.g., CLI flags)
func (c *ProjectConfig) Merge(other *ProjectConfig) {
	if other == nil {
		return
	}

	if other.Language != "" {
		c.Language = other.Language
	}

	if other.Analysis.MaxFunctionLines != 0 {
		c.Analysis.MaxFunctionLines = other.Analysis.MaxFunctionLines
	}
	if other.Analysis.MaxClassMethods != 0 {
		c.Analysis.MaxClassMethods = other.Analysis.MaxClassMethods
	}
	if other.Analysis.MaxNestingDepth != 0 {
		c.Analysis.MaxNestingDepth = other.Analysis.MaxNestingDepth
	}
	if other.Analysis.MaxParameters != 0 {
		c.Analysis.MaxParameters = other.Analysis.MaxParameters
	}
	if other.Analysis.MaxComplexity != 0 {
		c.Analysis.MaxComplexity = other.Analysis.MaxComplexity
	}
	if other.Analysis.MaxCognitive != 0 {
		c.Analysis.MaxCognitive = other.Analysis.MaxCognitive
	}
	if other.Analysis.Workers != 0 {
		c.Analysis.Workers = other.Analysis.Workers
	}

	if other.Duplicates.MinLines != 0 {
		c.Duplicates.MinLines = other.Duplicates.MinLines
	}
	if other.Duplicates.StructuralThreshold != 0 {
		c.Duplicates.StructuralThreshold = other.Duplicates.StructuralThreshold
	}
	if other.Duplicates.SemanticThreshold != 0 {
		c.Duplicates.SemanticThreshold = other.Duplicates.SemanticThreshold
	}

	if other.Security.MinEntropy != 0 {
		c.Security.MinEntropy = other.Security.MinEntropy
	}
	if len(other.Security.ConfidenceOverrides) > 0 {
		if c.Security.ConfidenceOverrides == nil {
			c.Security.ConfidenceOverrides = make(map[string]int)
		}
		for rule, conf := range other.Security.ConfidenceOverrides {
			c.Security.ConfidenceOverrides[rule] = conf
		}
	}

	if other.Verifier.DiffBudgetLines != 0 {
		c.Verifier.DiffBudgetLines = other.Verifier.DiffBudgetLines
	}

	if len(other.Weights) > 0 {
		c.Weights = other.Weights
	}

	if len(other.Include) > 0 {
		c.Include = other.Include
	}

	if len(other.Exclude) > 0 {
		c.Exclude = other.Exclude
	}
}
