package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/astcache"
	"github.com/refacto-hq/refacto/internal/config"
	"github.com/refacto-hq/refacto/internal/db"
	"github.com/refacto-hq/refacto/internal/detect"
	"github.com/refacto-hq/refacto/internal/duplicates"
	"github.com/refacto-hq/refacto/internal/githost"
	"github.com/refacto-hq/refacto/internal/jobs"
	"github.com/refacto-hq/refacto/internal/llm"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/internal/security"
	"github.com/refacto-hq/refacto/internal/suggest"
	"github.com/refacto-hq/refacto/internal/verify"
	"github.com/refacto-hq/refacto/pkg/model"
)

// AnalysisWorker runs the full analysis pipeline for a project: check out the
// source, parse it, run the detectors and duplicate passes, persist the run.
type AnalysisWorker struct {
	*BaseWorker
	cfg    *config.Config
	store  *db.Store
	repos  *githost.RepoService
	parser *parser.Parser
	cache  *astcache.Store
	finder *duplicates.Finder
}

func NewAnalysisWorker(base *BaseWorker, cfg *config.Config, store *db.Store) (*AnalysisWorker, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	cache, err := astcache.New(cfg.ASTCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create AST cache: %w", err)
	}

	w := &AnalysisWorker{
		BaseWorker: base,
		cfg:        cfg,
		store:      store,
		repos:      githost.NewRepoService(cfg.WorkspaceDir, cfg.GitHubToken),
		parser:     parser.NewParser(),
		cache:      cache,
		finder:     duplicates.NewFinder(),
	}
	base.handler = w.handleJob
	return w, nil
}

func (w *AnalysisWorker) Name() string { return "analysis" }

func (w *AnalysisWorker) handleJob(ctx context.Context, job *jobs.Job) error {
	var payload jobs.AnalysisPayload
	if err := job.GetPayload(&payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	log.Info().
		Str("project_id", payload.ProjectID.String()).
		Str("repo_url", payload.RepositoryURL).
		Msg("starting analysis")

	project, err := w.store.GetProject(ctx, payload.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s not found", payload.ProjectID)
	}

	w.updateProjectStatus(ctx, project.ID, "analyzing", nil)

	root, commitSHA, err := w.checkout(ctx, project, &payload)
	if err != nil {
		w.updateProjectStatus(ctx, project.ID, "failed", nil)
		return err
	}

	projectCfg, err := config.LoadProjectConfig(root)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load project config, using defaults")
		projectCfg = config.DefaultProjectConfig()
	}

	files, err := githost.CollectSources(root, projectCfg)
	if err != nil {
		w.updateProjectStatus(ctx, project.ID, "failed", nil)
		return fmt.Errorf("failed to collect sources: %w", err)
	}

	run := &db.AnalysisRun{ProjectID: project.ID}
	if err := w.store.CreateAnalysisRun(ctx, run); err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}
	if err := w.store.UpdateAnalysisRunStatus(ctx, run.ID, "running"); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID.String()).Msg("failed to mark run as running")
	}

	detectors := append(detect.All(), security.NewScanner())
	engine := analyzer.NewEngine(w.parser, w.cache, detectors, w.finder,
		analyzer.OptionsFromConfig(projectCfg))

	res, err := engine.AnalyzeFiles(ctx, project.Name, files)
	if err != nil {
		w.failRun(ctx, run.ID, project.ID)
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := w.persist(ctx, project.ID, run.ID, res); err != nil {
		w.failRun(ctx, run.ID, project.ID)
		return err
	}

	var sha *string
	if commitSHA != "" {
		sha = &commitSHA
	}
	w.updateProjectStatus(ctx, project.ID, "analyzed", sha)

	result := jobs.AnalysisResult{
		RunID:            run.ID,
		FilesAnalyzed:    res.Summary.SupportedFiles,
		UnsupportedFiles: res.Summary.UnsupportedFiles,
		IssuesFound:      res.Summary.TotalIssues,
		DuplicateGroups:  res.Summary.DuplicateGroups,
		QualityScore:     res.Summary.QualityScore,
	}

	if err := w.Repository().Complete(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Int("issues", result.IssuesFound).
		Int("duplicate_groups", result.DuplicateGroups).
		Int("quality_score", result.QualityScore).
		Dur("duration", res.Duration).
		Msg("analysis completed")

	return nil
}

// checkout resolves the source tree for the job: an already-checked-out local
// path, or a fresh shallow clone.
func (w *AnalysisWorker) checkout(ctx context.Context, project *db.Project, payload *jobs.AnalysisPayload) (string, string, error) {
	if payload.LocalPath != "" {
		if _, err := os.Stat(payload.LocalPath); err != nil {
			return "", "", fmt.Errorf("local path unavailable: %w", err)
		}
		return payload.LocalPath, "", nil
	}

	url := payload.RepositoryURL
	if url == "" {
		url = project.URL
	}

	info, err := githost.ParseRepoURL(url)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse repo URL: %w", err)
	}
	if payload.Branch != "" {
		info.Branch = payload.Branch
	} else if project.DefaultBranch != "" {
		info.Branch = project.DefaultBranch
	}

	res, err := w.repos.Clone(ctx, info)
	if err != nil {
		return "", "", fmt.Errorf("failed to clone repository: %w", err)
	}
	return res.Path, res.CommitSHA, nil
}

// persist writes the run's records. Any store failure fails the job; the
// queue retries and a rerun overwrites nothing (new run ID).
func (w *AnalysisWorker) persist(ctx context.Context, projectID, runID uuid.UUID, res *analyzer.Result) error {
	if err := w.store.CreateIssues(ctx, projectID, runID, res.Issues); err != nil {
		return fmt.Errorf("failed to persist issues: %w", err)
	}
	if err := w.store.CreateDuplicateGroups(ctx, projectID, runID, res.Groups); err != nil {
		return fmt.Errorf("failed to persist duplicate groups: %w", err)
	}
	if err := w.store.UpdateAnalysisRunCounts(ctx, runID, res.Summary); err != nil {
		return fmt.Errorf("failed to update run counts: %w", err)
	}
	if err := w.store.UpdateAnalysisRunStatus(ctx, runID, "completed"); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

func (w *AnalysisWorker) failRun(ctx context.Context, runID, projectID uuid.UUID) {
	if err := w.store.UpdateAnalysisRunStatus(ctx, runID, "failed"); err != nil {
		log.Warn().Err(err).Str("run_id", runID.String()).Msg("failed to mark run as failed")
	}
	w.updateProjectStatus(ctx, projectID, "failed", nil)
}

func (w *AnalysisWorker) updateProjectStatus(ctx context.Context, projectID uuid.UUID, status string, commitSHA *string) {
	if err := w.store.UpdateProjectStatus(ctx, projectID, status, commitSHA); err != nil {
		log.Warn().Err(err).Str("project_id", projectID.String()).Msg("failed to update project status")
	}
}

// VerificationWorker generates a candidate refactoring for one issue, runs it
// through the verifier, and persists the badged suggestion.
type VerificationWorker struct {
	*BaseWorker
	cfg       *config.Config
	store     *db.Store
	repos     *githost.RepoService
	generator *suggest.Generator
	verifier  *verify.Verifier
}

// verifyCacheSize bounds the in-memory completion cache shared by one worker.
const verifyCacheSize = 256

func NewVerificationWorker(base *BaseWorker, cfg *config.Config, store *db.Store, router *llm.Router) (*VerificationWorker, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	p := parser.NewParser()

	var completer suggest.Completer
	if router != nil {
		cached := llm.NewCachedRouter(router, llm.NewMemoryCache(verifyCacheSize, time.Hour))
		tracker := llm.NewUsageTracker(llm.UsageTrackerConfig{
			Budget: llm.BudgetConfig{
				HourlyTokenLimit:  int64(cfg.LLM.HourlyTokenLimit),
				DailyTokenLimit:   int64(cfg.LLM.DailyTokenLimit),
				MonthlyBudgetUSD:  cfg.LLM.MonthlyBudgetUSD,
				RequestsPerMinute: cfg.LLM.RequestsPerMinute,
			},
		})
		completer = llm.NewTrackedRouter(cached, tracker)
	}

	w := &VerificationWorker{
		BaseWorker: base,
		cfg:        cfg,
		store:      store,
		repos:      githost.NewRepoService(cfg.WorkspaceDir, cfg.GitHubToken),
		generator:  suggest.NewGenerator(completer),
		verifier:   verify.NewVerifier(p, security.NewScanner(), nil),
	}
	base.handler = w.handleJob
	return w, nil
}

func (w *VerificationWorker) Name() string { return "verification" }

func (w *VerificationWorker) handleJob(ctx context.Context, job *jobs.Job) error {
	var payload jobs.VerificationPayload
	if err := job.GetPayload(&payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	issue, projectID, _, err := w.store.GetIssue(ctx, payload.IssueID)
	if err != nil {
		return fmt.Errorf("failed to load issue: %w", err)
	}
	if issue == nil {
		return fmt.Errorf("issue %s not found", payload.IssueID)
	}

	project, err := w.store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s not found", projectID)
	}

	log.Info().
		Str("issue_id", issue.ID.String()).
		Str("type", string(issue.Type)).
		Str("file", issue.FilePath).
		Msg("verifying refactoring candidate")

	root, err := w.checkout(ctx, project)
	if err != nil {
		return err
	}

	original, err := w.flaggedRegion(root, issue)
	if err != nil {
		return err
	}

	snippets, err := w.duplicateSnippets(ctx, root, projectID, issue)
	if err != nil {
		log.Warn().Err(err).Msg("failed to collect duplicate snippets, generating from one occurrence")
	}

	cand, err := w.generator.Generate(ctx, suggest.Request{
		Issue:        *issue,
		OriginalCode: original,
		Tier:         llm.Tier(payload.LLMTier),
		Snippets:     snippets,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	sug := w.verifier.Verify(ctx, verify.Request{
		IssueID:        issue.ID,
		IssueType:      issue.Type,
		FilePath:       issue.FilePath,
		OriginalCode:   original,
		RefactoredCode: cand.RefactoredCode,
		Explanation:    cand.Explanation,
	})

	if err := w.store.CreateSuggestion(ctx, projectID, sug); err != nil {
		return fmt.Errorf("failed to persist suggestion: %w", err)
	}

	result := jobs.VerificationResult{
		SuggestionID: sug.ID,
		Badge:        string(sug.Badge),
		IsVerified:   sug.IsVerified,
		ChangeCount:  len(sug.Changes),
	}

	if err := w.Repository().Complete(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	log.Info().
		Str("suggestion_id", sug.ID.String()).
		Str("badge", string(sug.Badge)).
		Bool("verified", sug.IsVerified).
		Msg("verification completed")

	return nil
}

func (w *VerificationWorker) checkout(ctx context.Context, project *db.Project) (string, error) {
	info, err := githost.ParseRepoURL(project.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse repo URL: %w", err)
	}
	if project.DefaultBranch != "" {
		info.Branch = project.DefaultBranch
	}

	res, err := w.repos.Clone(ctx, info)
	if err != nil {
		return "", fmt.Errorf("failed to clone repository: %w", err)
	}
	return res.Path, nil
}

// flaggedRegion reads the lines the issue flags from the checked-out tree.
func (w *VerificationWorker) flaggedRegion(root string, issue *model.Issue) (string, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(issue.FilePath)))
	if err != nil {
		return "", fmt.Errorf("failed to read flagged file: %w", err)
	}

	region := suggest.ExtractRegion(string(content), issue.LineStart, issue.LineEnd)
	if region == "" {
		return "", fmt.Errorf("flagged region %s:%d-%d is empty", issue.FilePath, issue.LineStart, issue.LineEnd)
	}
	return region, nil
}

// duplicateSnippets collects the other occurrences of a duplicate_code issue
// so the generator can extract one shared function instead of rewriting a
// single copy in isolation.
func (w *VerificationWorker) duplicateSnippets(ctx context.Context, root string, projectID uuid.UUID, issue *model.Issue) ([]string, error) {
	if issue.Type != model.IssueDuplicateCode {
		return nil, nil
	}

	groups, err := w.store.ListDuplicateGroupsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	group := findGroupForIssue(groups, issue)
	if group == nil {
		return nil, nil
	}

	var snippets []string
	for _, m := range group.Members {
		if m.FilePath == issue.FilePath && m.LineStart == issue.LineStart {
			continue // the flagged occurrence itself
		}
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(m.FilePath)))
		if err != nil {
			continue
		}
		if s := suggest.ExtractRegion(string(content), m.LineStart, m.LineEnd); s != "" {
			snippets = append(snippets, s)
		}
	}
	return snippets, nil
}

// findGroupForIssue matches an issue back to its duplicate group by the
// flagged occurrence's position.
func findGroupForIssue(groups []model.DuplicateGroup, issue *model.Issue) *model.DuplicateGroup {
	for i := range groups {
		for _, m := range groups[i].Members {
			if m.FilePath == issue.FilePath && m.LineStart == issue.LineStart {
				return &groups[i]
			}
		}
	}
	return nil
}
