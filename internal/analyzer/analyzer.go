// Package analyzer is the detector framework: it parses each file of a run,
// fans registered detectors out over the parsed files in parallel, isolates
// detector failures, and merges everything into one deduplicated issue list.
package analyzer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/refacto-hq/refacto/internal/astcache"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// Per-file parse budget. A pathological file fails closed instead of
// stalling the whole run.
const parseTimeout = 30 * time.Second

// Detector inspects one parsed file and reports issues. Implementations are
// pure: safe for concurrent use, no state between calls, and they never see
// another detector's output.
type Detector interface {
	Name() string
	Detect(file *parser.ParsedFile, opts *Options) []model.Issue
}

// TextDetector is a Detector that can also inspect files no parser adapter
// exists for. The security scanner implements this so config files are still
// checked for credentials.
type TextDetector interface {
	Detector
	DetectText(file parser.SourceFile, opts *Options) []model.Issue
}

// DuplicateFinder runs project-wide after every per-file pass has finished.
type DuplicateFinder interface {
	Find(files []*parser.ParsedFile, opts *Options) ([]model.DuplicateGroup, []model.Issue)
}

// Engine wires the parser, the AST cache, the detector set and the duplicate
// finder into one analysis pipeline.
type Engine struct {
	parser     *parser.Parser
	cache      *astcache.Store
	detectors  []Detector
	duplicates DuplicateFinder
	opts       *Options
}

// Result is the outcome of one analysis run.
type Result struct {
	Project   string
	Issues    []model.Issue
	Groups    []model.DuplicateGroup
	Summary   model.Summary
	StartedAt time.Time
	Duration  time.Duration
}

// NewEngine creates an analysis engine. cache and duplicates may be nil;
// parsing then always happens fresh and no duplicate pass runs.
func NewEngine(p *parser.Parser, cache *astcache.Store, detectors []Detector, duplicates DuplicateFinder, opts *Options) *Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Engine{
		parser:     p,
		cache:      cache,
		detectors:  detectors,
		duplicates: duplicates,
		opts:       opts,
	}
}

// AnalyzeFiles runs the full pipeline over the given files. File analyses
// run in parallel; the duplicate pass waits for all of them. On context
// cancellation, in-flight files finish, no new ones start, and the partial
// result is returned together with the context error.
func (e *Engine) AnalyzeFiles(ctx context.Context, project string, files []parser.SourceFile) (*Result, error) {
	start := time.Now()

	var (
		mu          sync.Mutex
		issues      []model.Issue
		parsedFiles []*parser.ParsedFile
		parseErrors int
	)

	g := new(errgroup.Group)
	g.SetLimit(e.opts.WorkerCount())

	supported, unsupported := 0, 0
	for i := range files {
		file := files[i]
		if !file.Supported {
			unsupported++
		} else {
			supported++
		}

		g.Go(func() error {
			// Cooperative cancellation: files that have not started yet
			// are skipped, running ones finish.
			if ctx.Err() != nil {
				return nil
			}

			found, parsed := e.analyzeFile(ctx, project, file)

			mu.Lock()
			issues = append(issues, found...)
			if parsed != nil {
				parsedFiles = append(parsedFiles, parsed)
				if parsed.HasErrors() {
					parseErrors++
				}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Project-wide duplicate pass: runs strictly after the per-file passes.
	var groups []model.DuplicateGroup
	if e.duplicates != nil && ctx.Err() == nil {
		sort.Slice(parsedFiles, func(i, j int) bool {
			return parsedFiles[i].Path < parsedFiles[j].Path
		})
		var dupIssues []model.Issue
		groups, dupIssues = e.duplicates.Find(parsedFiles, e.opts)
		issues = append(issues, dupIssues...)
	}

	issues = Finalize(issues)

	result := &Result{
		Project:   project,
		Issues:    issues,
		Groups:    groups,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	result.Summary = model.Summarize(issues, groups, e.opts.Weights)
	result.Summary.TotalFiles = len(files)
	result.Summary.SupportedFiles = supported
	result.Summary.UnsupportedFiles = unsupported
	result.Summary.ParseErrors = parseErrors

	log.Info().
		Str("project", project).
		Int("files", len(files)).
		Int("issues", len(issues)).
		Int("groups", len(groups)).
		Dur("duration", result.Duration).
		Msg("analysis complete")

	return result, ctx.Err()
}

// analyzeFile parses one file (through the cache when possible) and runs
// every detector over it. Unsupported files only see text detectors.
func (e *Engine) analyzeFile(ctx context.Context, project string, file parser.SourceFile) ([]model.Issue, *parser.ParsedFile) {
	if !file.Supported {
		var found []model.Issue
		for _, d := range e.detectors {
			td, ok := d.(TextDetector)
			if !ok {
				continue
			}
			found = append(found, e.runText(td, file)...)
		}
		return found, nil
	}

	parsed, err := e.parseFile(ctx, project, file)
	if err != nil {
		// A file the adapter cannot handle at all is recorded and skipped,
		// never fatal to the run.
		log.Warn().Err(err).Str("file", file.Path).Msg("skipping unparseable file")
		return nil, nil
	}

	var found []model.Issue
	for _, d := range e.detectors {
		found = append(found, e.run(d, parsed)...)
	}
	return found, parsed
}

func (e *Engine) parseFile(ctx context.Context, project string, file parser.SourceFile) (*parser.ParsedFile, error) {
	if e.cache != nil {
		if parsed, ok := e.cache.Get(project, file.Path, file.Content); ok {
			return parsed, nil
		}
	}

	// In-flight parses finish even when the run is cancelled, but never
	// beyond the per-file budget.
	parseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), parseTimeout)
	defer cancel()

	parsed, err := e.parser.ParseContent(parseCtx, file.Path, file.Content, file.Language)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Put(project, file.Path, file.Content, parsed)
	}
	return parsed, nil
}

// run executes one detector with panic isolation: one bad detector must not
// abort the run.
func (e *Engine) run(d Detector, file *parser.ParsedFile) (found []model.Issue) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("detector", d.Name()).
				Str("file", file.Path).
				Interface("panic", r).
				Msg("detector failed, continuing without it")
			found = nil
		}
	}()
	return d.Detect(file, e.opts)
}

func (e *Engine) runText(d TextDetector, file parser.SourceFile) (found []model.Issue) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("detector", d.Name()).
				Str("file", file.Path).
				Interface("panic", r).
				Msg("detector failed, continuing without it")
			found = nil
		}
	}()
	return d.DetectText(file, e.opts)
}

// Finalize deduplicates, orders and stamps a merged issue list. Identical
// (type, file, line range) findings collapse to the highest-confidence one,
// and the result is independent of detector execution order.
func Finalize(issues []model.Issue) []model.Issue {
	byKey := make(map[string]model.Issue, len(issues))
	for i := range issues {
		issue := issues[i]
		key := issue.Key()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = issue
			continue
		}
		if issue.Confidence > existing.Confidence ||
			(issue.Confidence == existing.Confidence && issue.Description < existing.Description) {
			byKey[key] = issue
		}
	}

	merged := make([]model.Issue, 0, len(byKey))
	now := time.Now().UTC()
	for _, issue := range byKey {
		if issue.ID == uuid.Nil {
			issue.ID = uuid.New()
		}
		if issue.Status == "" {
			issue.Status = model.IssuePending
		}
		if issue.CreatedAt.IsZero() {
			issue.CreatedAt = now
		}
		merged = append(merged, issue)
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := &merged[i], &merged[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineStart != b.LineStart {
			return a.LineStart < b.LineStart
		}
		if a.LineEnd != b.LineEnd {
			return a.LineEnd < b.LineEnd
		}
		return a.Type < b.Type
	})

	return merged
}
