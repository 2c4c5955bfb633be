// Package verify checks candidate refactorings before they earn a badge.
// A verification run is a one-way state machine: the candidate is re-parsed,
// structurally diffed against the original, scored by a battery of risk
// checks, and badged. Every stage appends named validation layers, so the
// badge is always explainable from the layer record alone.
package verify

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/internal/security"
	"github.com/refacto-hq/refacto/pkg/model"
)

// state names one stage of the verification lifecycle.
type state string

const (
	stateReceived          state = "received"
	stateSyntaxChecked     state = "syntax_checked"
	stateStructureCompared state = "structure_compared"
	stateRiskScored        state = "risk_scored"
	stateBadged            state = "badged"
)

// Layer names in the order the verifier records them.
const (
	layerSyntax        = "syntax"
	layerDiffBudget    = "diff-budget"
	layerSignatures    = "signatures"
	layerSecurity      = "security"
	layerComplexity    = "complexity"
	layerErrorHandling = "error-handling"
)

// defaultDiffBudget bounds the structural diff when no budget is configured.
const defaultDiffBudget = 2000

// Request carries one candidate refactoring into the verifier.
type Request struct {
	IssueID        uuid.UUID
	IssueType      model.IssueType
	FilePath       string
	Language       parser.Language // detected from FilePath when empty
	OriginalCode   string
	RefactoredCode string
	Explanation    string
}

// Verifier runs the verification state machine. Safe for concurrent use; a
// run keeps all of its state on the stack.
type Verifier struct {
	parser  *parser.Parser
	scanner *security.Scanner
	opts    *analyzer.Options
}

// NewVerifier creates a verifier sharing the run's parser, security scanner,
// and options.
func NewVerifier(p *parser.Parser, scanner *security.Scanner, opts *analyzer.Options) *Verifier {
	if opts == nil {
		opts = analyzer.DefaultOptions()
	}
	return &Verifier{parser: p, scanner: scanner, opts: opts}
}

// verification is one in-flight run.
type verification struct {
	state   state
	layers  []model.ValidationLayer
	changes []model.Change
}

func (r *verification) record(name string, status model.LayerStatus, detail string) {
	r.layers = append(r.layers, model.ValidationLayer{Name: name, Status: status, Detail: detail})
}

// Verify runs the full state machine over one candidate and returns the
// badged suggestion. Verification never returns an error: anything that
// prevents a check from running fails closed into the badge.
func (v *Verifier) Verify(ctx context.Context, req Request) *model.RefactoringSuggestion {
	lang := req.Language
	if lang == "" {
		lang = parser.DetectLanguage(req.FilePath)
	}

	run := &verification{state: stateReceived}

	refactored, err := v.parser.ParseContent(ctx, req.FilePath, req.RefactoredCode, lang)
	if err != nil {
		run.record(layerSyntax, model.LayerFail, "refactored code failed to parse: "+err.Error())
		return v.finish(req, run)
	}
	if refactored.HasErrors() {
		pe := refactored.ParseErrors[0]
		run.record(layerSyntax, model.LayerFail, fmt.Sprintf("syntax error at line %d: %s", pe.Line, pe.Message))
		return v.finish(req, run)
	}

	// The original is trusted input from the analysis run, but a candidate
	// cannot be judged against something we cannot parse at all. Partial
	// parses of the original are tolerated; hard failures are not.
	original, err := v.parser.ParseContent(ctx, req.FilePath, req.OriginalCode, lang)
	if err != nil {
		run.record(layerSyntax, model.LayerFail, "original code failed to parse: "+err.Error())
		return v.finish(req, run)
	}

	run.record(layerSyntax, model.LayerPass, "no syntax errors")
	run.state = stateSyntaxChecked

	budget := v.opts.DiffBudgetLines
	if budget <= 0 {
		budget = defaultDiffBudget
	}
	if lines := max(original.LineCount(), refactored.LineCount()); lines > budget {
		run.record(layerDiffBudget, model.LayerFail,
			fmt.Sprintf("input exceeds diff budget: %d lines (max %d)", lines, budget))
		return v.finish(req, run)
	}
	run.record(layerDiffBudget, model.LayerPass, "")

	run.changes = diffChanges(original, refactored)
	run.state = stateStructureCompared

	for _, check := range v.battery() {
		status, detail := check.run(original, refactored)
		run.record(check.name, status, detail)
	}
	run.state = stateRiskScored

	return v.finish(req, run)
}

// finish badges the run and assembles the suggestion.
func (v *Verifier) finish(req Request, run *verification) *model.RefactoringSuggestion {
	badge := model.BadgeFor(run.layers)

	passed := 0
	for _, l := range run.layers {
		if l.Status == model.LayerPass {
			passed++
		}
	}
	confidence := 0
	if len(run.layers) > 0 {
		confidence = int(math.Round(100 * float64(passed) / float64(len(run.layers))))
	}

	changes := run.changes
	if changes == nil {
		changes = []model.Change{}
	}
	run.state = stateBadged

	sug := &model.RefactoringSuggestion{
		ID:             uuid.New(),
		IssueID:        req.IssueID,
		FilePath:       req.FilePath,
		OriginalCode:   req.OriginalCode,
		RefactoredCode: req.RefactoredCode,
		Explanation:    req.Explanation,
		Confidence:     confidence,
		Changes:        changes,
		Layers:         run.layers,
		Badge:          badge,
		IsVerified:     badge == model.BadgeVerified,
		Status:         model.SuggestionPending,
		CreatedAt:      time.Now(),
	}

	log.Debug().
		Str("file", req.FilePath).
		Str("state", string(run.state)).
		Str("badge", string(badge)).
		Int("layers", len(run.layers)).
		Int("changes", len(changes)).
		Msg("refactoring candidate badged")

	return sug
}
