package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/refacto-hq/refacto/pkg/model"
)

const toolURI = "https://github.com/refacto-hq/refacto"

// SARIFEmitter renders an analysis run as a SARIF 2.1.0 log
type SARIFEmitter struct{}

func (e *SARIFEmitter) Name() string          { return "sarif" }
func (e *SARIFEmitter) FileExtension() string { return ".sarif" }

// Emit writes the run as a single-run SARIF log. Every issue type becomes a
// rule; every issue becomes a result with a physical location.
func (e *SARIFEmitter) Emit(w io.Writer, in *Input) error {
	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("failed to create SARIF log: %w", err)
	}

	run := sarif.NewRunWithInformationURI("refacto", toolURI)

	seen := make(map[string]bool)
	for i := range in.Issues {
		issue := &in.Issues[i]
		ruleID := ruleIDFor(issue)

		if !seen[ruleID] {
			run.AddRule(ruleID).
				WithDescription(ruleDescription(issue.Type))
			seen[ruleID] = true
		}

		result := run.CreateResultForRule(ruleID).
			WithLevel(levelFor(issue.Severity)).
			WithMessage(sarif.NewTextMessage(issue.Description))

		result.AddLocation(
			sarif.NewLocationWithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewSimpleArtifactLocation(issue.FilePath)).
					WithRegion(sarif.NewRegion().
						WithStartLine(issue.LineStart).
						WithEndLine(issue.LineEnd)),
			),
		)
	}

	log.AddRun(run)
	return log.PrettyWrite(w)
}

// ruleIDFor prefers the scanner's rule id when the issue carries one
func ruleIDFor(issue *model.Issue) string {
	if issue.Metrics.RuleID != "" {
		return issue.Metrics.RuleID
	}
	return string(issue.Type)
}

// levelFor maps severities onto SARIF levels
func levelFor(sev model.Severity) string {
	switch sev {
	case model.SeverityCritical, model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func ruleDescription(t model.IssueType) string {
	switch t {
	case model.IssueLongMethod:
		return "Function exceeds the configured line budget"
	case model.IssueGodClass:
		return "Class exceeds the configured method budget"
	case model.IssueDeepNesting:
		return "Control structures nest beyond the configured depth"
	case model.IssueLongParameterList:
		return "Function takes more parameters than the configured budget"
	case model.IssueHighComplexity:
		return "Cyclomatic complexity exceeds the configured threshold"
	case model.IssueCognitiveComplexity:
		return "Cognitive complexity exceeds the configured threshold"
	case model.IssueDuplicateCode:
		return "Code fragment duplicated elsewhere in the project"
	case model.IssueMagicNumber:
		return "Unnamed numeric literal in logic"
	case model.IssueHardcodedCredentials:
		return "Credential assigned from a literal"
	case model.IssueHardcodedSecrets:
		return "High-entropy secret embedded in source"
	case model.IssueSensitiveFile:
		return "Sensitive file committed to the repository"
	case model.IssueUnsafeLogging:
		return "Sensitive value passed to a logging call"
	case model.IssueWeakEncryption:
		return "Weak cryptographic primitive in use"
	default:
		return string(t)
	}
}
