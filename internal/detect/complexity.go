package detect

import (
	"fmt"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// Cyclomatic flags functions whose cyclomatic complexity exceeds the
// configured limit. Complexity starts at 1 and adds one per decision point:
// branches, loops, non-default case clauses and boolean operators.
type Cyclomatic struct{}

func (Cyclomatic) Name() string { return "cyclomatic-complexity" }

func (Cyclomatic) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	if _, ok := rulesFor(file.Language); !ok {
		return nil
	}

	var issues []model.Issue
	for i := range file.Functions {
		fn := &file.Functions[i]
		if fn.Node == nil {
			continue
		}
		complexity := CyclomaticComplexity(fn.Node, file.Language)
		if complexity <= opts.MaxComplexity {
			continue
		}
		issues = append(issues, metricIssue(file, fn, model.IssueHighComplexity, 85,
			complexity, opts.MaxComplexity,
			fmt.Sprintf("Function '%s' has cyclomatic complexity %d (limit %d)",
				qualifiedName(fn), complexity, opts.MaxComplexity),
			"Break the function into smaller pieces with fewer decision points"))
	}
	return issues
}

// CyclomaticComplexity computes the cyclomatic complexity of a subtree. The
// verifier reuses it to compare originals against refactored candidates.
func CyclomaticComplexity(n *parser.Node, lang parser.Language) int {
	rules, ok := rulesFor(lang)
	if !ok {
		return 1
	}

	complexity := 1
	n.Walk(func(node *parser.Node) {
		switch {
		case rules.branchKinds[node.Kind]:
			complexity++
		case rules.caseKinds[node.Kind]:
			complexity++
		case rules.boolOps[node.Kind]:
			complexity++
		}
	})
	return complexity
}

// Cognitive flags functions whose cognitive complexity exceeds the configured
// limit. Unlike the cyclomatic count, increments grow with nesting: a branch
// at depth d costs 1+d, so deeply nested logic scores much higher than the
// same branches written flat.
type Cognitive struct{}

func (Cognitive) Name() string { return "cognitive-complexity" }

func (Cognitive) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	rules, ok := rulesFor(file.Language)
	if !ok {
		return nil
	}

	var issues []model.Issue
	for i := range file.Functions {
		fn := &file.Functions[i]
		if fn.Node == nil {
			continue
		}
		score := cognitiveComplexity(fn.Node, rules)
		if score <= opts.MaxCognitive {
			continue
		}
		issues = append(issues, metricIssue(file, fn, model.IssueCognitiveComplexity, 85,
			score, opts.MaxCognitive,
			fmt.Sprintf("Function '%s' has cognitive complexity %d (limit %d)",
				qualifiedName(fn), score, opts.MaxCognitive),
			"Reduce nesting and split compound conditions"))
	}
	return issues
}

func cognitiveComplexity(n *parser.Node, rules langRules) int {
	score := 0

	var walk func(node *parser.Node, depth int)
	walk = func(node *parser.Node, depth int) {
		if node.Err {
			return
		}
		switch {
		case rules.cogNest[node.Kind]:
			score += 1 + depth
			depth++
		case rules.cogFlat[node.Kind]:
			score++
		case rules.boolOps[node.Kind]:
			score++
		}
		for _, c := range node.Children {
			walk(c, depth)
		}
	}
	walk(n, 0)

	return score
}
