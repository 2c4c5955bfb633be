package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

var logCalleeRe = regexp.MustCompile(`(\b(log|logger|logging|console)\.)|(^(print|println|fmt\.print[a-z]*)$)`)

// scanLogging walks the syntax tree for log calls whose arguments reference
// credentials. A variable assigned from a literal that matches a token rule
// is provably credential-derived and reported at high confidence; an
// identifier that merely has a credential-shaped name is reported lower.
func (s *Scanner) scanLogging(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	if file.Root == nil {
		return nil
	}

	credentialVars := s.collectCredentialVars(file, opts)

	var issues []model.Issue
	file.Root.Walk(func(n *parser.Node) {
		if n.Kind != "call_expression" && n.Kind != "call" {
			return
		}
		callee := firstNamedChild(n)
		if callee == nil {
			return
		}
		text := strings.ToLower(callee.Content(file.Source))
		if !logCalleeRe.MatchString(text) {
			return
		}

		args := argumentsOf(n)
		if args == nil {
			return
		}

		flagged := make(map[string]bool)
		args.Walk(func(arg *parser.Node) {
			switch arg.Kind {
			case "identifier", "field_identifier", "property_identifier":
			default:
				return
			}
			name := arg.Content(file.Source)
			if name == "" || flagged[name] {
				return
			}

			confidence := 0
			detail := ""
			assignedAt, assigned := credentialVars[name]
			switch {
			case assigned && assignedAt < n.StartLine:
				confidence = opts.RuleConfidence("unsafe-logging", 90)
				detail = fmt.Sprintf("Credential '%s' is written to a log", name)
			case credentialName(name):
				confidence = opts.RuleConfidence("unsafe-logging", 70)
				detail = fmt.Sprintf("Value named '%s' may be a credential written to a log", name)
			default:
				return
			}
			flagged[name] = true

			issues = append(issues, model.Issue{
				Type:           model.IssueUnsafeLogging,
				Severity:       model.SeverityHigh,
				Confidence:     confidence,
				FilePath:       file.Path,
				LineStart:      n.StartLine,
				LineEnd:        n.StartLine,
				Description:    detail,
				Recommendation: "Log a redacted form or drop the value from the log call",
				Metrics:        model.Metrics{RuleID: "unsafe-logging"},
			})
		})
	})

	return issues
}

// collectCredentialVars finds variables assigned from credential-shaped
// string literals, keyed to the line of their first such assignment. Only
// log calls after that line can have seen the value.
func (s *Scanner) collectCredentialVars(file *parser.ParsedFile, opts *analyzer.Options) map[string]int {
	vars := make(map[string]int)

	file.Root.Walk(func(n *parser.Node) {
		var name string
		switch n.Kind {
		case "short_var_declaration", "assignment_statement":
			name = firstIdentifier(n, file.Source)
		case "var_spec", "const_spec", "variable_declarator":
			name = n.Name
		case "assignment", "assignment_expression":
			name = firstIdentifier(n, file.Source)
		default:
			return
		}
		if name == "" {
			return
		}

		literal := firstStringLiteral(n)
		if literal == nil {
			return
		}
		value := unquote(literal.Content(file.Source))
		if value == "" {
			return
		}

		if s.tokenShaped(value) ||
			(credentialName(name) && shannonEntropy(value) >= opts.MinEntropy) {
			if line, ok := vars[name]; !ok || n.StartLine < line {
				vars[name] = n.StartLine
			}
		}
	})

	return vars
}

// tokenShaped reports whether a bare value matches one of the token rules.
func (s *Scanner) tokenShaped(value string) bool {
	for i := range s.rules {
		if tokenRuleIDs[s.rules[i].ID] && s.rules[i].re.MatchString(value) {
			return true
		}
	}
	return false
}

func firstNamedChild(n *parser.Node) *parser.Node {
	for _, c := range n.Children {
		if c.Named {
			return c
		}
	}
	return nil
}

func argumentsOf(call *parser.Node) *parser.Node {
	for _, c := range call.Children {
		if c.Kind == "argument_list" || c.Kind == "arguments" {
			return c
		}
	}
	return nil
}

// firstIdentifier returns the first identifier on the left-hand side of an
// assignment-shaped node.
func firstIdentifier(n *parser.Node, source []byte) string {
	if len(n.Children) == 0 {
		return ""
	}
	lhs := n.Children[0]
	if lhs.Kind == "identifier" {
		return lhs.Content(source)
	}
	var name string
	lhs.Walk(func(c *parser.Node) {
		if name == "" && c.Kind == "identifier" {
			name = c.Content(source)
		}
	})
	return name
}

var stringLiteralKinds = map[string]bool{
	"interpreted_string_literal": true,
	"raw_string_literal":         true,
	"string":                     true,
	"template_string":            true,
}

func firstStringLiteral(n *parser.Node) *parser.Node {
	var found *parser.Node
	n.Walk(func(c *parser.Node) {
		if found == nil && stringLiteralKinds[c.Kind] {
			found = c
		}
	})
	return found
}

func unquote(s string) string {
	for len(s) > 0 && s[0] != '"' && s[0] != '\'' && s[0] != '`' {
		s = s[1:]
	}
	if len(s) < 2 || s[len(s)-1] != s[0] {
		return s
	}
	return s[1 : len(s)-1]
}
