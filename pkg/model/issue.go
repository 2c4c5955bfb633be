// Package model defines the records the analysis core produces and the rest
// of the system consumes: Issues found by detectors, DuplicateGroups linking
// repeated code, and RefactoringSuggestions with their verification outcome.
// Everything here is a plain record; persistence, transport, and review flows
// live elsewhere.
package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// IssueType identifies the kind of finding a detector produced.
// The enum is closed: detectors pick from this list, they never invent types.
type IssueType string

const (
	IssueLongMethod           IssueType = "long_method"
	IssueGodClass             IssueType = "god_class"
	IssueDeepNesting          IssueType = "deep_nesting"
	IssueLongParameterList    IssueType = "long_parameter_list"
	IssueHighComplexity       IssueType = "high_complexity"
	IssueCognitiveComplexity  IssueType = "cognitive_complexity"
	IssueDuplicateCode        IssueType = "duplicate_code"
	IssueMagicNumber          IssueType = "magic_number"
	IssueDeadCode             IssueType = "dead_code"
	IssueFeatureEnvy          IssueType = "feature_envy"
	IssueHardcodedCredentials IssueType = "hardcoded_credentials"
	IssueHardcodedSecrets     IssueType = "hardcoded_secrets"
	IssueSensitiveFile        IssueType = "sensitive_file"
	IssueUnsafeLogging        IssueType = "unsafe_logging"
	IssueWeakEncryption       IssueType = "weak_encryption"
	IssueHardcodedValues      IssueType = "hardcoded_values"
)

// Severity is the impact level of an issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting and comparison. Higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IssueStatus tracks the external review decision on an issue.
// The analysis core only ever creates issues as pending.
type IssueStatus string

const (
	IssuePending  IssueStatus = "pending"
	IssueAccepted IssueStatus = "accepted"
	IssueRejected IssueStatus = "rejected"
)

// Metrics carries the numeric evidence behind an issue. Each issue family
// fills its own fields: complexity detectors set Value/Threshold, the
// duplicate engine sets Similarity and Lines, security rules set RuleID and
// sometimes Entropy. Extra is a fallback bag for detector-specific numbers
// that have no dedicated field yet.
type Metrics struct {
	Value      float64            `json:"value,omitempty"`
	Threshold  float64            `json:"threshold,omitempty"`
	Similarity float64            `json:"similarity,omitempty"`
	Lines      int                `json:"lines,omitempty"`
	RuleID     string             `json:"rule_id,omitempty"`
	Entropy    float64            `json:"entropy,omitempty"`
	Extra      map[string]float64 `json:"extra,omitempty"`
}

// Issue is a single code-quality or security finding in one file.
type Issue struct {
	ID         uuid.UUID `json:"id"`
	Type       IssueType `json:"type"`
	Severity   Severity  `json:"severity"`
	Confidence int       `json:"confidence"` // 0-100

	FilePath     string `json:"file_path"`
	FunctionName string `json:"function_name,omitempty"`
	ClassName    string `json:"class_name,omitempty"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`

	Description    string `json:"description"`
	Recommendation string `json:"recommendation,omitempty"`
	CodeSnippet    string `json:"code_snippet,omitempty"`

	// Set only for duplicate_code issues; resolves to exactly one group.
	DuplicateGroupID *uuid.UUID `json:"duplicate_group_id,omitempty"`

	Metrics Metrics     `json:"metrics"`
	Status  IssueStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// Key identifies an issue's location for deduplication: two detector hits on
// the same (type, file, line range) are the same finding.
func (i *Issue) Key() string {
	return string(i.Type) + "|" + i.FilePath + "|" + strconv.Itoa(i.LineStart) + "|" + strconv.Itoa(i.LineEnd)
}

// IsSecurity reports whether the issue came from the security scanner family.
func (t IssueType) IsSecurity() bool {
	switch t {
	case IssueHardcodedCredentials, IssueHardcodedSecrets, IssueSensitiveFile,
		IssueUnsafeLogging, IssueWeakEncryption:
		return true
	}
	return false
}
