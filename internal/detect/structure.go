package detect

import (
	"fmt"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// LongMethod flags functions whose line count exceeds the configured limit.
type LongMethod struct{}

func (LongMethod) Name() string { return "long-method" }

func (LongMethod) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	var issues []model.Issue
	for i := range file.Functions {
		fn := &file.Functions[i]
		lines := fn.Lines()
		if lines <= opts.MaxFunctionLines {
			continue
		}
		issues = append(issues, metricIssue(file, fn, model.IssueLongMethod, 90,
			lines, opts.MaxFunctionLines,
			fmt.Sprintf("Function '%s' has %s (limit %d)",
				qualifiedName(fn), formatCount(lines, "line"), opts.MaxFunctionLines),
			"Split the function into smaller, focused functions"))
	}
	return issues
}

// GodClass flags classes, and Go receiver types, that accumulate too many
// methods.
type GodClass struct{}

func (GodClass) Name() string { return "god-class" }

func (GodClass) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	var issues []model.Issue

	for i := range file.Classes {
		cls := &file.Classes[i]
		count := len(cls.Methods)
		if count <= opts.MaxClassMethods {
			continue
		}
		issues = append(issues, model.Issue{
			Type:           model.IssueGodClass,
			Severity:       severityForRatio(count, opts.MaxClassMethods),
			Confidence:     90,
			FilePath:       file.Path,
			ClassName:      cls.Name,
			LineStart:      cls.StartLine,
			LineEnd:        cls.EndLine,
			Description:    fmt.Sprintf("Class '%s' has %s (limit %d)", cls.Name, formatCount(count, "method"), opts.MaxClassMethods),
			Recommendation: "Split the class into smaller classes with single responsibilities",
			CodeSnippet:    snippet(file.Source, cls.StartLine, cls.StartLine),
			Metrics: model.Metrics{
				Value:     float64(count),
				Threshold: float64(opts.MaxClassMethods),
			},
		})
	}

	// Go has no class nodes; methods group by receiver type instead.
	if file.Language == parser.LanguageGo {
		issues = append(issues, detectGoReceivers(file, opts)...)
	}

	return issues
}

func detectGoReceivers(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	type span struct {
		count      int
		start, end int
	}
	receivers := make(map[string]*span)
	order := make([]string, 0)

	for i := range file.Functions {
		fn := &file.Functions[i]
		if fn.Class == "" {
			continue
		}
		s, ok := receivers[fn.Class]
		if !ok {
			s = &span{start: fn.StartLine, end: fn.EndLine}
			receivers[fn.Class] = s
			order = append(order, fn.Class)
		}
		s.count++
		if fn.StartLine < s.start {
			s.start = fn.StartLine
		}
		if fn.EndLine > s.end {
			s.end = fn.EndLine
		}
	}

	var issues []model.Issue
	for _, name := range order {
		s := receivers[name]
		if s.count <= opts.MaxClassMethods {
			continue
		}
		issues = append(issues, model.Issue{
			Type:           model.IssueGodClass,
			Severity:       severityForRatio(s.count, opts.MaxClassMethods),
			Confidence:     90,
			FilePath:       file.Path,
			ClassName:      name,
			LineStart:      s.start,
			LineEnd:        s.end,
			Description:    fmt.Sprintf("Type '%s' has %s (limit %d)", name, formatCount(s.count, "method"), opts.MaxClassMethods),
			Recommendation: "Split the type into smaller types with single responsibilities",
			CodeSnippet:    snippet(file.Source, s.start, s.start),
			Metrics: model.Metrics{
				Value:     float64(s.count),
				Threshold: float64(opts.MaxClassMethods),
			},
		})
	}
	return issues
}

// DeepNesting flags functions whose control structures nest deeper than the
// configured limit.
type DeepNesting struct{}

func (DeepNesting) Name() string { return "deep-nesting" }

func (DeepNesting) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
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
		depth, line := maxNestingDepth(fn.Node, rules.depthKinds)
		if depth <= opts.MaxNestingDepth {
			continue
		}
		issue := metricIssue(file, fn, model.IssueDeepNesting, 90,
			depth, opts.MaxNestingDepth,
			fmt.Sprintf("Function '%s' nests control structures %d levels deep (limit %d)",
				qualifiedName(fn), depth, opts.MaxNestingDepth),
			"Flatten the logic with early returns or extracted helpers")
		issue.LineStart = line
		issue.LineEnd = line
		issue.CodeSnippet = snippet(file.Source, line, line)
		issues = append(issues, issue)
	}
	return issues
}

// maxNestingDepth returns the deepest control-structure nesting in the
// subtree and the line where it is first reached.
func maxNestingDepth(n *parser.Node, depthKinds map[string]bool) (int, int) {
	maxDepth, atLine := 0, n.StartLine

	var walk func(node *parser.Node, depth int)
	walk = func(node *parser.Node, depth int) {
		if node.Err {
			return
		}
		if depthKinds[node.Kind] {
			depth++
			if depth > maxDepth {
				maxDepth = depth
				atLine = node.StartLine
			}
		}
		for _, c := range node.Children {
			walk(c, depth)
		}
	}
	walk(n, 0)

	return maxDepth, atLine
}

// LongParameterList flags functions taking more parameters than the
// configured limit.
type LongParameterList struct{}

func (LongParameterList) Name() string { return "long-parameter-list" }

func (LongParameterList) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	var issues []model.Issue
	for i := range file.Functions {
		fn := &file.Functions[i]
		count := len(fn.Parameters)
		if count <= opts.MaxParameters {
			continue
		}
		issue := metricIssue(file, fn, model.IssueLongParameterList, 90,
			count, opts.MaxParameters,
			fmt.Sprintf("Function '%s' takes %s (limit %d)",
				qualifiedName(fn), formatCount(count, "parameter"), opts.MaxParameters),
			"Group related parameters into a struct or options object")
		issue.LineEnd = fn.StartLine
		issues = append(issues, issue)
	}
	return issues
}
