package detect

import (
	"fmt"
	"sort"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

const (
	envyMinForeign = 5
	envyRatio      = 2
)

// FeatureEnvy flags methods that reach into one of their parameters far more
// often than into their own receiver. Only parameter objects are counted as
// foreign, which keeps package and module references out of the tally.
type FeatureEnvy struct{}

func (FeatureEnvy) Name() string { return "feature-envy" }

func (FeatureEnvy) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	var issues []model.Issue
	for i := range file.Functions {
		fn := &file.Functions[i]
		if fn.Class == "" || fn.Node == nil {
			continue
		}

		own, foreign := countAccesses(fn, file)
		name, count := dominantAccess(foreign)
		if count < envyMinForeign || count < envyRatio*own {
			continue
		}

		issues = append(issues, model.Issue{
			Type:         model.IssueFeatureEnvy,
			Severity:     model.SeverityMedium,
			Confidence:   75,
			FilePath:     file.Path,
			FunctionName: fn.Name,
			ClassName:    fn.Class,
			LineStart:    fn.StartLine,
			LineEnd:      fn.EndLine,
			Description: fmt.Sprintf("Method '%s' accesses '%s' %s but its own fields only %s",
				qualifiedName(fn), name, formatCount(count, "time"), formatCount(own, "time")),
			Recommendation: fmt.Sprintf("Consider moving this logic onto '%s' or passing less of it in", name),
			CodeSnippet:    snippet(file.Source, fn.StartLine, fn.EndLine),
			Metrics: model.Metrics{
				Value:     float64(count),
				Threshold: float64(envyMinForeign),
				Extra:     map[string]float64{"own_references": float64(own)},
			},
		})
	}
	return issues
}

// countAccesses tallies field accesses through the method's own receiver
// against accesses through each parameter.
func countAccesses(fn *parser.Function, file *parser.ParsedFile) (int, map[string]int) {
	params := make(map[string]bool, len(fn.Parameters))
	for _, p := range fn.Parameters {
		if p.Name != "" {
			params[p.Name] = true
		}
	}

	ownName := ""
	switch file.Language {
	case parser.LanguageGo:
		ownName = goReceiverName(fn.Node, file.Source)
	case parser.LanguagePython:
		ownName = "self"
	}

	own := 0
	foreign := make(map[string]int)

	fn.Node.Walk(func(n *parser.Node) {
		var object *parser.Node
		switch file.Language {
		case parser.LanguageGo:
			if n.Kind != "selector_expression" {
				return
			}
			object = firstChild(n)
		case parser.LanguagePython:
			if n.Kind != "attribute" {
				return
			}
			object = firstChild(n)
		case parser.LanguageJavaScript, parser.LanguageTypeScript:
			if n.Kind != "member_expression" {
				return
			}
			object = firstChild(n)
			if object != nil && object.Kind == "this" {
				own++
				return
			}
		default:
			return
		}

		if object == nil || object.Kind != "identifier" {
			return
		}
		name := object.Content(file.Source)
		switch {
		case name == ownName && ownName != "":
			own++
		case params[name]:
			foreign[name]++
		}
	})

	return own, foreign
}

func firstChild(n *parser.Node) *parser.Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// dominantAccess picks the most-referenced foreign object, breaking count
// ties by name so results stay stable.
func dominantAccess(foreign map[string]int) (string, int) {
	names := make([]string, 0, len(foreign))
	for name := range foreign {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestCount := "", 0
	for _, name := range names {
		if foreign[name] > bestCount {
			best, bestCount = name, foreign[name]
		}
	}
	return best, bestCount
}

// goReceiverName digs the receiver variable out of a method declaration. The
// receiver is the first parameter_list child, before the method name.
func goReceiverName(n *parser.Node, source []byte) string {
	if n == nil || n.Kind != "method_declaration" {
		return ""
	}
	recv := n.ChildOfKind("parameter_list")
	if recv == nil {
		return ""
	}
	decl := recv.ChildOfKind("parameter_declaration")
	if decl == nil {
		return ""
	}
	ident := decl.ChildOfKind("identifier")
	if ident == nil {
		return ""
	}
	return ident.Content(source)
}
