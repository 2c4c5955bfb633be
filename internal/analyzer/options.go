package analyzer

import (
	"runtime"

	"github.com/refacto-hq/refacto/internal/config"
	"github.com/refacto-hq/refacto/pkg/model"
)

// Options is the immutable configuration record for one analysis run. It is
// built once when the run starts and only read afterwards.
type Options struct {
	// Structure detector thresholds
	MaxFunctionLines int
	MaxClassMethods  int
	MaxNestingDepth  int
	MaxParameters    int
	MaxComplexity    int
	MaxCognitive     int

	// Duplicate detection
	DuplicateMinLines   int
	StructuralThreshold float64
	SemanticThreshold   float64

	// Security scanner
	MinEntropy          float64
	ConfidenceOverrides map[string]int

	// Largest verifier diff input, in lines
	DiffBudgetLines int

	// Quality score weights
	Weights model.SeverityWeights

	// Parallel file analyses; 0 means min(NumCPU, 8)
	Workers int
}

// DefaultOptions mirrors the stock project configuration.
func DefaultOptions() *Options {
	return OptionsFromConfig(config.DefaultProjectConfig())
}

// OptionsFromConfig freezes a project config into run options.
func OptionsFromConfig(cfg *config.ProjectConfig) *Options {
	if cfg == nil {
		cfg = config.DefaultProjectConfig()
	}

	opts := &Options{
		MaxFunctionLines:    cfg.Analysis.MaxFunctionLines,
		MaxClassMethods:     cfg.Analysis.MaxClassMethods,
		MaxNestingDepth:     cfg.Analysis.MaxNestingDepth,
		MaxParameters:       cfg.Analysis.MaxParameters,
		MaxComplexity:       cfg.Analysis.MaxComplexity,
		MaxCognitive:        cfg.Analysis.MaxCognitive,
		DuplicateMinLines:   cfg.Duplicates.MinLines,
		StructuralThreshold: cfg.Duplicates.StructuralThreshold,
		SemanticThreshold:   cfg.Duplicates.SemanticThreshold,
		MinEntropy:          cfg.Security.MinEntropy,
		DiffBudgetLines:     cfg.Verifier.DiffBudgetLines,
		Workers:             cfg.Analysis.Workers,
	}

	if len(cfg.Security.ConfidenceOverrides) > 0 {
		opts.ConfidenceOverrides = make(map[string]int, len(cfg.Security.ConfidenceOverrides))
		for rule, conf := range cfg.Security.ConfidenceOverrides {
			opts.ConfidenceOverrides[rule] = conf
		}
	}

	if len(cfg.Weights) > 0 {
		opts.Weights = make(model.SeverityWeights, len(cfg.Weights))
		for sev, w := range cfg.Weights {
			opts.Weights[model.Severity(sev)] = w
		}
	}

	return opts
}

// WorkerCount resolves the effective parallelism.
func (o *Options) WorkerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// RuleConfidence returns the configured confidence for a security rule,
// falling back to the rule's own default.
func (o *Options) RuleConfidence(ruleID string, fallback int) int {
	if conf, ok := o.ConfidenceOverrides[ruleID]; ok {
		return conf
	}
	return fallback
}
