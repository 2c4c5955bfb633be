package verify

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/refacto-hq/refacto/internal/detect"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// riskCheck is one named entry of the risk battery.
type riskCheck struct {
	name string
	run  func(original, refactored *parser.ParsedFile) (model.LayerStatus, string)
}

// battery returns the risk checks in run order. New checks slot in here
// without touching the syntax or diff stages.
func (v *Verifier) battery() []riskCheck {
	return []riskCheck{
		{layerSignatures, v.checkSignatures},
		{layerSecurity, v.checkSecurity},
		{layerComplexity, v.checkComplexity},
		{layerErrorHandling, v.checkErrorHandling},
	}
}

// classArity marks symbols without a parameter list.
const classArity = -1

// checkSignatures compares the exported symbol surface of both versions.
// A removed public symbol breaks callers outright; a changed arity is
// survivable but worth flagging.
func (v *Verifier) checkSignatures(original, refactored *parser.ParsedFile) (model.LayerStatus, string) {
	origSyms := exportedSymbols(original)
	refSyms := exportedSymbols(refactored)

	names := make([]string, 0, len(origSyms))
	for name := range origSyms {
		names = append(names, name)
	}
	sort.Strings(names)

	var removed, changed []string
	for _, name := range names {
		refArity, ok := refSyms[name]
		if !ok {
			removed = append(removed, name)
			continue
		}
		origArity := origSyms[name]
		if origArity != classArity && refArity != classArity && origArity != refArity {
			changed = append(changed, fmt.Sprintf("%s (%d -> %d params)", name, origArity, refArity))
		}
	}

	switch {
	case len(removed) > 0:
		return model.LayerFail, "removed exported symbols: " + strings.Join(removed, ", ")
	case len(changed) > 0:
		return model.LayerWarning, "signature changed: " + strings.Join(changed, ", ")
	default:
		return model.LayerPass, fmt.Sprintf("%d exported symbols preserved", len(origSyms))
	}
}

// exportedSymbols maps each exported function, method, and class to its
// arity. Methods are keyed Class.Name.
func exportedSymbols(pf *parser.ParsedFile) map[string]int {
	syms := make(map[string]int)
	for i := range pf.Functions {
		fn := &pf.Functions[i]
		if !fn.Exported {
			continue
		}
		name := fn.Name
		if fn.Class != "" {
			name = fn.Class + "." + fn.Name
		}
		syms[name] = len(fn.Parameters)
	}
	for _, cls := range pf.Classes {
		if !cls.Exported {
			continue
		}
		if _, ok := syms[cls.Name]; !ok {
			syms[cls.Name] = classArity
		}
	}
	return syms
}

// checkSecurity re-runs the security scanner on the refactored code and
// flags findings that were not present in the original. New Critical or
// High findings fail the candidate; lower severities warn.
func (v *Verifier) checkSecurity(original, refactored *parser.ParsedFile) (model.LayerStatus, string) {
	origCounts := make(map[string]int)
	for _, issue := range v.scanner.Detect(original, v.opts) {
		origCounts[findingKey(issue)]++
	}

	status := model.LayerPass
	seen := make(map[string]int)
	introduced := make(map[string]bool)
	for _, issue := range v.scanner.Detect(refactored, v.opts) {
		key := findingKey(issue)
		seen[key]++
		if seen[key] <= origCounts[key] {
			continue
		}
		introduced[key] = true
		switch issue.Severity {
		case model.SeverityCritical, model.SeverityHigh:
			status = model.LayerFail
		default:
			if status != model.LayerFail {
				status = model.LayerWarning
			}
		}
	}

	if len(introduced) == 0 {
		return model.LayerPass, "no new findings"
	}
	keys := make([]string, 0, len(introduced))
	for key := range introduced {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return status, "new findings: " + strings.Join(keys, ", ")
}

func findingKey(issue model.Issue) string {
	if issue.Metrics.RuleID != "" {
		return issue.Metrics.RuleID
	}
	return string(issue.Type)
}

// checkComplexity compares total cyclomatic complexity. Any increase warns;
// an increase beyond max(3, 25% of the original total) fails.
func (v *Verifier) checkComplexity(original, refactored *parser.ParsedFile) (model.LayerStatus, string) {
	origTotal := totalComplexity(original)
	refTotal := totalComplexity(refactored)
	detail := fmt.Sprintf("total cyclomatic complexity %d -> %d", origTotal, refTotal)

	delta := refTotal - origTotal
	if delta <= 0 {
		return model.LayerPass, detail
	}
	allowed := math.Max(3, 0.25*float64(origTotal))
	if float64(delta) > allowed {
		return model.LayerFail,
			fmt.Sprintf("%s (+%d, allowed +%s)", detail, delta, strconv.FormatFloat(allowed, 'f', -1, 64))
	}
	return model.LayerWarning, fmt.Sprintf("%s (+%d)", detail, delta)
}

func totalComplexity(pf *parser.ParsedFile) int {
	total := 0
	for i := range pf.Functions {
		if pf.Functions[i].Node == nil {
			continue
		}
		total += detect.CyclomaticComplexity(pf.Functions[i].Node, pf.Language)
	}
	return total
}

// checkErrorHandling counts the guard constructs each language uses and
// fails the candidate when the refactoring dropped some.
func (v *Verifier) checkErrorHandling(original, refactored *parser.ParsedFile) (model.LayerStatus, string) {
	origGuards := guardCount(original)
	refGuards := guardCount(refactored)
	detail := fmt.Sprintf("error-handling guards %d -> %d", origGuards, refGuards)
	if refGuards < origGuards {
		return model.LayerFail, detail
	}
	return model.LayerPass, detail
}

// guardCount counts error-handling constructs: nil-check branches and
// deferred recovers in Go, except clauses in Python, catch clauses in
// JavaScript and TypeScript.
func guardCount(pf *parser.ParsedFile) int {
	if pf.Root == nil {
		return 0
	}
	count := 0
	switch pf.Language {
	case parser.LanguageGo:
		pf.Root.Walk(func(n *parser.Node) {
			switch n.Kind {
			case "if_statement":
				if hasNilGuard(n) {
					count++
				}
			case "defer_statement":
				if callsRecover(n, pf.Source) {
					count++
				}
			}
		})
	case parser.LanguagePython:
		pf.Root.Walk(func(n *parser.Node) {
			if n.Kind == "except_clause" {
				count++
			}
		})
	default:
		pf.Root.Walk(func(n *parser.Node) {
			if n.Kind == "catch_clause" {
				count++
			}
		})
	}
	return count
}

// hasNilGuard reports whether the if condition compares against nil with !=.
// Only the children before the consequence block are examined, so nested ifs
// inside the body are counted on their own visit.
func hasNilGuard(ifNode *parser.Node) bool {
	for _, c := range ifNode.Children {
		if c.Kind == "block" {
			break
		}
		found := false
		c.Walk(func(n *parser.Node) {
			if found || n.Kind != "binary_expression" {
				return
			}
			var neq, nilLit bool
			for _, op := range n.Children {
				switch op.Kind {
				case "!=":
					neq = true
				case "nil":
					nilLit = true
				}
			}
			if neq && nilLit {
				found = true
			}
		})
		if found {
			return true
		}
	}
	return false
}

func callsRecover(deferNode *parser.Node, source []byte) bool {
	found := false
	deferNode.Walk(func(n *parser.Node) {
		if found || n.Kind != "call_expression" || len(n.Children) == 0 {
			return
		}
		callee := n.Children[0]
		if callee.Kind == "identifier" && callee.Content(source) == "recover" {
			found = true
		}
	})
	return found
}
