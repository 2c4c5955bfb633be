// Package suggest produces candidate refactored code for detected issues.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/llm"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

var (
	// ErrGeneratorUnavailable indicates no completion provider could serve the request
	ErrGeneratorUnavailable = errors.New("generator unavailable")
	// ErrEmptyCandidate indicates the provider returned no usable code
	ErrEmptyCandidate = errors.New("generator returned no code")
	// ErrInputTooLarge indicates the flagged region exceeds the prompt size cap
	ErrInputTooLarge = errors.New("flagged region too large for generation")
)

// maxInputBytes caps the code region sent to the provider. Larger regions
// produce unreliable rewrites and blow the diff budget anyway.
const maxInputBytes = 32 * 1024

// Completer is the completion surface the generator needs. Both llm.Router
// and llm.CachedRouter satisfy it.
type Completer interface {
	Complete(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Generator turns an issue plus its original code into a candidate refactoring.
type Generator struct {
	completer Completer
}

// NewGenerator creates a generator over the given completion router
func NewGenerator(c Completer) *Generator {
	return &Generator{completer: c}
}

// Request describes one generation call
type Request struct {
	Issue        model.Issue
	OriginalCode string
	Language     parser.Language // detected from Issue.FilePath when empty
	Tier         llm.Tier        // zero means TierForIssue(Issue.Type)
	// Snippets carries the other occurrences for duplicate_code issues
	Snippets []string
}

// Candidate is the raw generator output, before verification
type Candidate struct {
	RefactoredCode string
	Explanation    string
	Model          string
	Provider       llm.Provider
	Cached         bool
}

// Generate produces a candidate refactoring for the request's issue. The
// output is NOT trusted: callers must run it through the verifier before
// persisting or showing it.
func (g *Generator) Generate(ctx context.Context, req Request) (*Candidate, error) {
	if g.completer == nil {
		return nil, ErrGeneratorUnavailable
	}
	if strings.TrimSpace(req.OriginalCode) == "" {
		return nil, fmt.Errorf("no original code for issue %s", req.Issue.ID)
	}
	if len(req.OriginalCode) > maxInputBytes {
		return nil, ErrInputTooLarge
	}

	lang := req.Language
	if lang == "" {
		lang = parser.DetectLanguage(req.Issue.FilePath)
	}

	tier := req.Tier
	if tier == 0 {
		tier = TierForIssue(req.Issue.Type)
	}

	prompt := g.buildPrompt(req, lang)

	log.Debug().
		Str("issue_id", req.Issue.ID.String()).
		Str("type", string(req.Issue.Type)).
		Int("tier", int(tier)).
		Int("input_bytes", len(req.OriginalCode)).
		Msg("generating refactoring candidate")

	resp, err := g.completer.Complete(ctx, &llm.Request{
		Tier:   tier,
		System: llm.SystemPromptRefactoring,
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2, // Low temperature for deterministic rewrites
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	code, explanation := llm.ParseCodeOutput(resp.Content)
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCandidate
	}

	return &Candidate{
		RefactoredCode: code,
		Explanation:    explanation,
		Model:          resp.Model,
		Provider:       resp.Provider,
		Cached:         resp.Cached,
	}, nil
}

// buildPrompt selects the prompt template for the issue type
func (g *Generator) buildPrompt(req Request, lang parser.Language) string {
	if req.Issue.Type == model.IssueDuplicateCode && len(req.Snippets) > 0 {
		snippets := append([]string{req.OriginalCode}, req.Snippets...)
		return llm.DeduplicationPrompt(string(lang), snippets, req.Issue.Description)
	}
	return llm.RefactoringPrompt(
		string(req.Issue.Type),
		req.Issue.Description,
		req.Issue.FilePath,
		string(lang),
		req.OriginalCode,
	)
}

// TierForIssue maps issue types to generation tiers. Security rewrites and
// cross-occurrence deduplication need the strongest model; mechanical
// extractions do not.
func TierForIssue(t model.IssueType) llm.Tier {
	switch t {
	case model.IssueHardcodedCredentials, model.IssueHardcodedSecrets,
		model.IssueWeakEncryption, model.IssueUnsafeLogging,
		model.IssueSensitiveFile:
		return llm.Tier3
	case model.IssueDuplicateCode, model.IssueGodClass, model.IssueFeatureEnvy:
		return llm.Tier2
	default:
		return llm.Tier1
	}
}

// ExtractRegion returns lines startLine..endLine (1-indexed, inclusive) of
// content, the region an issue flags.
func ExtractRegion(content string, startLine, endLine int) string {
	lines := strings.Split(content, "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
