package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

const (
	maxMagicNumberIssues = 10
	hardcodedRepeats     = 3
	minHardcodedLength   = 4
)

// allowedNumbers never count as magic: loop seeds, parity checks and simple
// scale factors are idiomatic as bare literals.
var allowedNumbers = map[string]bool{
	"0": true, "1": true, "2": true, "10": true, "100": true,
	"0.0": true, "1.0": true,
}

// MagicNumbers flags numeric literals used outside constant declarations.
// Findings are capped per file so one dense table does not drown a report.
type MagicNumbers struct{}

func (MagicNumbers) Name() string { return "magic-numbers" }

func (MagicNumbers) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	rules, ok := rulesFor(file.Language)
	if !ok || file.Root == nil {
		return nil
	}

	var issues []model.Issue
	walkLiterals(file.Root, file.Source, file.Language, func(n *parser.Node, inConst bool) {
		if inConst || !rules.numberKinds[n.Kind] || len(issues) >= maxMagicNumberIssues {
			return
		}
		text := n.Content(file.Source)
		if allowedNumbers[text] {
			return
		}
		issues = append(issues, model.Issue{
			Type:           model.IssueMagicNumber,
			Severity:       model.SeverityLow,
			Confidence:     80,
			FilePath:       file.Path,
			LineStart:      n.StartLine,
			LineEnd:        n.StartLine,
			Description:    fmt.Sprintf("Magic number %s used without a named constant", text),
			Recommendation: "Replace the literal with a named constant",
			CodeSnippet:    snippet(file.Source, n.StartLine, n.StartLine),
		})
	})
	return issues
}

// HardcodedValues flags a non-trivial string literal repeated three or more
// times in one file.
type HardcodedValues struct{}

func (HardcodedValues) Name() string { return "hardcoded-values" }

func (HardcodedValues) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	rules, ok := rulesFor(file.Language)
	if !ok || file.Root == nil {
		return nil
	}

	type occurrence struct {
		count     int
		firstLine int
	}
	repeats := make(map[string]*occurrence)

	walkLiterals(file.Root, file.Source, file.Language, func(n *parser.Node, inConst bool) {
		if inConst || !rules.stringKinds[n.Kind] {
			return
		}
		value := stripQuotes(n.Content(file.Source))
		if len(value) < minHardcodedLength || strings.TrimSpace(value) == "" {
			return
		}
		occ, seen := repeats[value]
		if !seen {
			occ = &occurrence{firstLine: n.StartLine}
			repeats[value] = occ
		}
		occ.count++
	})

	values := make([]string, 0, len(repeats))
	for value, occ := range repeats {
		if occ.count >= hardcodedRepeats {
			values = append(values, value)
		}
	}
	sort.Slice(values, func(i, j int) bool {
		return repeats[values[i]].firstLine < repeats[values[j]].firstLine
	})

	var issues []model.Issue
	for _, value := range values {
		occ := repeats[value]
		issues = append(issues, model.Issue{
			Type:           model.IssueHardcodedValues,
			Severity:       model.SeverityLow,
			Confidence:     80,
			FilePath:       file.Path,
			LineStart:      occ.firstLine,
			LineEnd:        occ.firstLine,
			Description:    fmt.Sprintf("String %q repeated %s in this file", truncate(value, 30), formatCount(occ.count, "time")),
			Recommendation: "Extract the repeated literal into a named constant",
			CodeSnippet:    snippet(file.Source, occ.firstLine, occ.firstLine),
			Metrics: model.Metrics{
				Value:     float64(occ.count),
				Threshold: hardcodedRepeats,
			},
		})
	}
	return issues
}

// walkLiterals visits every node under root, tracking whether the node sits
// inside a constant declaration. Python has no const keyword, so ALL_CAPS
// assignment targets stand in for one.
func walkLiterals(root *parser.Node, source []byte, lang parser.Language, visit func(*parser.Node, bool)) {
	var walk func(n *parser.Node, inConst bool)
	walk = func(n *parser.Node, inConst bool) {
		if n.Err {
			return
		}
		if !inConst && constContext(n, source, lang) {
			inConst = true
		}
		visit(n, inConst)
		for _, c := range n.Children {
			walk(c, inConst)
		}
	}
	walk(root, false)
}

func constContext(n *parser.Node, source []byte, lang parser.Language) bool {
	switch lang {
	case parser.LanguageGo:
		return n.Kind == "const_declaration"
	case parser.LanguageJavaScript, parser.LanguageTypeScript:
		return n.Kind == "lexical_declaration" && n.ChildOfKind("const") != nil
	case parser.LanguagePython:
		if n.Kind != "assignment" {
			return false
		}
		target := firstChild(n)
		return target != nil && target.Kind == "identifier" && isUpperSnake(target.Content(source))
	default:
		return false
	}
}

func isUpperSnake(s string) bool {
	if len(s) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return hasLetter
}

// stripQuotes removes string delimiters and any prefix letters (Python raw
// and format strings).
func stripQuotes(s string) string {
	for len(s) > 0 && s[0] != '"' && s[0] != '\'' && s[0] != '`' {
		s = s[1:]
	}
	if len(s) < 2 {
		return s
	}
	quote := s[0]
	if s[len(s)-1] != quote {
		return s
	}
	// Python triple quotes
	if len(s) >= 6 && (strings.HasPrefix(s, `"""`) || strings.HasPrefix(s, "'''")) {
		return s[3 : len(s)-3]
	}
	return s[1 : len(s)-1]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
