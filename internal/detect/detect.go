// Package detect implements the structural code smell detectors: size and
// nesting limits, complexity metrics, dead code, feature envy and literal
// hygiene. Every detector is pure and reads only the parsed file it is given.
package detect

import (
	"fmt"
	"strings"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// All returns every registered detector in a stable order.
func All() []analyzer.Detector {
	return []analyzer.Detector{
		LongMethod{},
		GodClass{},
		DeepNesting{},
		LongParameterList{},
		Cyclomatic{},
		Cognitive{},
		DeadCode{},
		FeatureEnvy{},
		MagicNumbers{},
		HardcodedValues{},
	}
}

// langRules holds the grammar node kinds each metric counts, per language.
// Kinds follow the tree-sitter grammars; operator tokens appear as anonymous
// leaves in the normalized tree.
type langRules struct {
	branchKinds map[string]bool // decision points: +1 cyclomatic
	caseKinds   map[string]bool // non-default case clauses: +1 cyclomatic
	boolOps     map[string]bool // boolean operators: +1 cyclomatic and cognitive
	depthKinds  map[string]bool // control structures counted for nesting depth
	cogNest     map[string]bool // cognitive: +1+depth, increases nesting
	cogFlat     map[string]bool // cognitive: flat +1
	blockKinds  map[string]bool // statement containers scanned for dead code
	terminators map[string]bool // statements nothing in the same block survives
	numberKinds map[string]bool // numeric literal kinds
	stringKinds map[string]bool // string literal kinds
}

func kinds(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

var goRules = langRules{
	branchKinds: kinds("if_statement", "for_statement", "expression_switch_statement",
		"type_switch_statement", "select_statement"),
	caseKinds:   kinds("expression_case", "type_case", "communication_case"),
	boolOps:     kinds("&&", "||"),
	depthKinds:  kinds("if_statement", "for_statement", "expression_switch_statement", "type_switch_statement", "select_statement"),
	cogNest:     kinds("if_statement", "for_statement", "expression_switch_statement", "type_switch_statement", "select_statement"),
	cogFlat:     kinds("else"),
	blockKinds:  kinds("block"),
	terminators: kinds("return_statement", "break_statement", "continue_statement"),
	numberKinds: kinds("int_literal", "float_literal"),
	stringKinds: kinds("interpreted_string_literal", "raw_string_literal"),
}

var pyRules = langRules{
	branchKinds: kinds("if_statement", "elif_clause", "for_statement", "while_statement",
		"except_clause", "conditional_expression"),
	caseKinds:   kinds("case_clause"),
	boolOps:     kinds("boolean_operator"),
	depthKinds:  kinds("if_statement", "for_statement", "while_statement", "try_statement", "match_statement", "with_statement"),
	cogNest:     kinds("if_statement", "for_statement", "while_statement", "except_clause", "match_statement"),
	cogFlat:     kinds("elif_clause", "else_clause", "conditional_expression"),
	blockKinds:  kinds("block"),
	terminators: kinds("return_statement", "break_statement", "continue_statement", "raise_statement"),
	numberKinds: kinds("integer", "float"),
	stringKinds: kinds("string"),
}

var jsRules = langRules{
	branchKinds: kinds("if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_statement", "catch_clause", "ternary_expression"),
	caseKinds:   kinds("switch_case"),
	boolOps:     kinds("&&", "||"),
	depthKinds:  kinds("if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement", "switch_statement", "try_statement"),
	cogNest:     kinds("if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement", "switch_statement", "catch_clause"),
	cogFlat:     kinds("else", "ternary_expression"),
	blockKinds:  kinds("statement_block"),
	terminators: kinds("return_statement", "break_statement", "continue_statement", "throw_statement"),
	numberKinds: kinds("number"),
	stringKinds: kinds("string"),
}

func rulesFor(lang parser.Language) (langRules, bool) {
	switch lang {
	case parser.LanguageGo:
		return goRules, true
	case parser.LanguagePython:
		return pyRules, true
	case parser.LanguageJavaScript, parser.LanguageTypeScript:
		return jsRules, true
	default:
		return langRules{}, false
	}
}

// severityForRatio maps how far a metric exceeds its threshold to severity:
// more than 2x is critical, more than 1.5x is high, anything above is medium.
func severityForRatio(value, threshold int) model.Severity {
	if threshold <= 0 {
		return model.SeverityMedium
	}
	ratio := float64(value) / float64(threshold)
	switch {
	case ratio > 2.0:
		return model.SeverityCritical
	case ratio > 1.5:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// qualifiedName renders a function name for messages, including the class or
// receiver when the function is a method.
func qualifiedName(fn *parser.Function) string {
	name := fn.Name
	if name == "" {
		name = "(anonymous)"
	}
	if fn.Class != "" {
		return fn.Class + "." + name
	}
	return name
}

// snippet returns up to three trimmed source lines starting at startLine.
func snippet(source []byte, startLine, endLine int) string {
	lines := strings.Split(string(source), "\n")
	if startLine < 1 || startLine > len(lines) {
		return ""
	}
	last := startLine + 2
	if endLine < last {
		last = endLine
	}
	if last > len(lines) {
		last = len(lines)
	}

	out := make([]string, 0, 3)
	for i := startLine - 1; i < last; i++ {
		out = append(out, strings.TrimSpace(lines[i]))
	}
	return strings.Join(out, "\n")
}

func metricIssue(file *parser.ParsedFile, fn *parser.Function, typ model.IssueType,
	confidence, value, threshold int, desc, rec string) model.Issue {
	return model.Issue{
		Type:           typ,
		Severity:       severityForRatio(value, threshold),
		Confidence:     confidence,
		FilePath:       file.Path,
		FunctionName:   fn.Name,
		ClassName:      fn.Class,
		LineStart:      fn.StartLine,
		LineEnd:        fn.EndLine,
		Description:    desc,
		Recommendation: rec,
		CodeSnippet:    snippet(file.Source, fn.StartLine, fn.EndLine),
		Metrics: model.Metrics{
			Value:     float64(value),
			Threshold: float64(threshold),
		},
	}
}

func formatCount(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
