package detect

import (
	"fmt"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// DeadCode flags statements that follow an unconditional return, break,
// continue, raise or throw inside the same block.
type DeadCode struct{}

func (DeadCode) Name() string { return "dead-code" }

func (DeadCode) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
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
		fn.Node.Walk(func(n *parser.Node) {
			if !rules.blockKinds[n.Kind] {
				return
			}
			dead := unreachableIn(n, rules, file.Language)
			if dead == nil {
				return
			}
			issues = append(issues, model.Issue{
				Type:         model.IssueDeadCode,
				Severity:     model.SeverityMedium,
				Confidence:   90,
				FilePath:     file.Path,
				FunctionName: fn.Name,
				ClassName:    fn.Class,
				LineStart:    dead.StartLine,
				LineEnd:      dead.EndLine,
				Description: fmt.Sprintf("Unreachable code in '%s': statement at line %d follows an unconditional exit",
					qualifiedName(fn), dead.StartLine),
				Recommendation: "Remove the unreachable statements",
				CodeSnippet:    snippet(file.Source, dead.StartLine, dead.EndLine),
			})
		})
	}
	return issues
}

// unreachableIn scans one block for the first statement after a terminator.
// It returns a node spanning the unreachable region, or nil. Function
// declarations after a return are skipped for JavaScript since hoisting makes
// them reachable, and labeled statements are skipped as possible jump
// targets.
func unreachableIn(block *parser.Node, rules langRules, lang parser.Language) *parser.Node {
	terminated := false
	var first, last *parser.Node

	for _, child := range block.Children {
		if !child.Named || child.Err {
			continue
		}
		if !terminated {
			if rules.terminators[child.Kind] {
				terminated = true
			}
			continue
		}
		if child.Kind == "labeled_statement" {
			// A label can be jumped to, so everything from here on may run.
			break
		}
		if lang == parser.LanguageJavaScript || lang == parser.LanguageTypeScript {
			if child.Kind == "function_declaration" {
				continue
			}
		}
		if first == nil {
			first = child
		}
		last = child
	}

	if first == nil {
		return nil
	}
	return &parser.Node{StartLine: first.StartLine, EndLine: last.EndLine}
}
