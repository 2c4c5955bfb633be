package model

// SeverityWeights maps each severity to its penalty in the quality score.
// The coefficients are a product heuristic, not a correctness invariant, so
// they live in configuration and are passed in rather than hard-coded.
type SeverityWeights map[Severity]int

// DefaultSeverityWeights are the stock penalties.
var DefaultSeverityWeights = SeverityWeights{
	SeverityCritical: 10,
	SeverityHigh:     5,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// QualityScore condenses a set of issues into a 0-100 health score: start at
// 100 and subtract each issue's severity weight, floored at 0.
func QualityScore(issues []Issue, weights SeverityWeights) int {
	if weights == nil {
		weights = DefaultSeverityWeights
	}
	score := 100
	for i := range issues {
		score -= weights[issues[i].Severity]
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Summary aggregates one analysis run for reports and API responses.
type Summary struct {
	TotalFiles       int               `json:"total_files"`
	SupportedFiles   int               `json:"supported_files"`
	UnsupportedFiles int               `json:"unsupported_files"`
	ParseErrors      int               `json:"parse_errors"`
	TotalIssues      int               `json:"total_issues"`
	BySeverity       map[Severity]int  `json:"by_severity"`
	ByType           map[IssueType]int `json:"by_type"`
	DuplicateGroups  int               `json:"duplicate_groups"`
	QualityScore     int               `json:"quality_score"`
}

// Summarize builds a Summary from a run's issues and groups.
func Summarize(issues []Issue, groups []DuplicateGroup, weights SeverityWeights) Summary {
	s := Summary{
		BySeverity:      make(map[Severity]int),
		ByType:          make(map[IssueType]int),
		TotalIssues:     len(issues),
		DuplicateGroups: len(groups),
	}
	for i := range issues {
		s.BySeverity[issues[i].Severity]++
		s.ByType[issues[i].Type]++
	}
	s.QualityScore = QualityScore(issues, weights)
	return s
}
