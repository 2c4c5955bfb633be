package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refacto-hq/refacto/pkg/model"
)

// Store provides database operations. The analysis core never touches it:
// it persists the plain records the core produces.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new store
func NewStore(db *DB) *Store {
	return &Store{pool: db.Pool()}
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Project represents an analyzed repository
type Project struct {
	ID            uuid.UUID `json:"id"`
	URL           string    `json:"url"`
	Name          string    `json:"name"`
	DefaultBranch string    `json:"default_branch"`
	Language      *string   `json:"language,omitempty"`
	LastCommitSHA *string   `json:"last_commit_sha,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AnalysisRun represents one analysis pass over a project
type AnalysisRun struct {
	ID               uuid.UUID  `json:"id"`
	ProjectID        uuid.UUID  `json:"project_id"`
	Status           string     `json:"status"`
	TotalFiles       int        `json:"total_files"`
	SupportedFiles   int        `json:"supported_files"`
	UnsupportedFiles int        `json:"unsupported_files"`
	ParseErrors      int        `json:"parse_errors"`
	IssueCount       int        `json:"issue_count"`
	GroupCount       int        `json:"group_count"`
	QualityScore     int        `json:"quality_score"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CreateProject creates a new project
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	p.ID = uuid.New()
	p.Status = "pending"
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (id, url, name, default_branch, language, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.URL, p.Name, p.DefaultBranch, p.Language, p.Status, p.CreatedAt, p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetProject gets a project by ID
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	p := &Project{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, url, name, default_branch, language, last_commit_sha, status, created_at, updated_at
		FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.URL, &p.Name, &p.DefaultBranch, &p.Language,
		&p.LastCommitSHA, &p.Status, &p.CreatedAt, &p.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// GetProjectByURL gets a project by repository URL
func (s *Store) GetProjectByURL(ctx context.Context, url string) (*Project, error) {
	p := &Project{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, url, name, default_branch, language, last_commit_sha, status, created_at, updated_at
		FROM projects WHERE url = $1
	`, url).Scan(&p.ID, &p.URL, &p.Name, &p.DefaultBranch, &p.Language,
		&p.LastCommitSHA, &p.Status, &p.CreatedAt, &p.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// ListProjects lists all projects
func (s *Store) ListProjects(ctx context.Context, limit, offset int) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, name, default_branch, language, last_commit_sha, status, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.URL, &p.Name, &p.DefaultBranch,
			&p.Language, &p.LastCommitSHA, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, nil
}

// UpdateProjectStatus updates project status
func (s *Store) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status string, commitSHA *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE projects SET status = $2, last_commit_sha = $3, updated_at = $4
		WHERE id = $1
	`, id, status, commitSHA, time.Now())
	return err
}

// DeleteProject deletes a project and all related data (cascading)
func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	// The database schema has ON DELETE CASCADE, so this removes runs,
	// issues, groups and suggestions too.
	result, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("project not found")
	}

	return nil
}

// CreateAnalysisRun creates a new analysis run
func (s *Store) CreateAnalysisRun(ctx context.Context, run *AnalysisRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = "pending"
	}
	run.CreatedAt = time.Now()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_runs (id, project_id, status, created_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.ProjectID, run.Status, run.CreatedAt)

	return err
}

// GetAnalysisRun gets an analysis run by ID
func (s *Store) GetAnalysisRun(ctx context.Context, id uuid.UUID) (*AnalysisRun, error) {
	run := &AnalysisRun{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, status, total_files, supported_files, unsupported_files,
		       parse_errors, issue_count, group_count, quality_score,
		       started_at, completed_at, created_at
		FROM analysis_runs WHERE id = $1
	`, id).Scan(&run.ID, &run.ProjectID, &run.Status, &run.TotalFiles, &run.SupportedFiles,
		&run.UnsupportedFiles, &run.ParseErrors, &run.IssueCount, &run.GroupCount,
		&run.QualityScore, &run.StartedAt, &run.CompletedAt, &run.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// UpdateAnalysisRunStatus updates a run's status
func (s *Store) UpdateAnalysisRunStatus(ctx context.Context, id uuid.UUID, status string) error {
	now := time.Now()
	var startedAt, completedAt *time.Time

	if status == "running" {
		startedAt = &now
	}
	if status == "completed" || status == "failed" {
		completedAt = &now
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE analysis_runs
		SET status = $2,
		    started_at = COALESCE($3, started_at),
		    completed_at = COALESCE($4, completed_at)
		WHERE id = $1
	`, id, status, startedAt, completedAt)

	return err
}

// UpdateAnalysisRunCounts records a completed run's summary counts
func (s *Store) UpdateAnalysisRunCounts(ctx context.Context, id uuid.UUID, summary model.Summary) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE analysis_runs
		SET total_files = $2, supported_files = $3, unsupported_files = $4,
		    parse_errors = $5, issue_count = $6, group_count = $7, quality_score = $8
		WHERE id = $1
	`, id, summary.TotalFiles, summary.SupportedFiles, summary.UnsupportedFiles,
		summary.ParseErrors, summary.TotalIssues, summary.DuplicateGroups, summary.QualityScore)

	if err != nil {
		return fmt.Errorf("failed to update run counts: %w", err)
	}

	return nil
}

// ListRunsByProject lists all analysis runs for a project
func (s *Store) ListRunsByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]AnalysisRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, status, total_files, supported_files, unsupported_files,
		       parse_errors, issue_count, group_count, quality_score,
		       started_at, completed_at, created_at
		FROM analysis_runs
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]AnalysisRun, 0)
	for rows.Next() {
		var run AnalysisRun
		if err := rows.Scan(&run.ID, &run.ProjectID, &run.Status, &run.TotalFiles, &run.SupportedFiles,
			&run.UnsupportedFiles, &run.ParseErrors, &run.IssueCount, &run.GroupCount,
			&run.QualityScore, &run.StartedAt, &run.CompletedAt, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// CreateIssues bulk-inserts the issues of a run in one batch
func (s *Store) CreateIssues(ctx context.Context, projectID, runID uuid.UUID, issues []model.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range issues {
		issue := &issues[i]
		metrics, err := json.Marshal(issue.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		batch.Queue(`
			INSERT INTO issues (id, project_id, run_id, type, severity, confidence,
				file_path, function_name, class_name, line_start, line_end,
				description, recommendation, code_snippet, duplicate_group_id,
				metrics, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`, issue.ID, projectID, runID, issue.Type, issue.Severity, issue.Confidence,
			issue.FilePath, nullable(issue.FunctionName), nullable(issue.ClassName),
			issue.LineStart, issue.LineEnd, issue.Description, nullable(issue.Recommendation),
			nullable(issue.CodeSnippet), issue.DuplicateGroupID, metrics, issue.Status, issue.CreatedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range issues {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
	}

	return nil
}

// GetIssue gets an issue by ID, together with its owning project and run
func (s *Store) GetIssue(ctx context.Context, id uuid.UUID) (*model.Issue, uuid.UUID, uuid.UUID, error) {
	var (
		issue          model.Issue
		projectID      uuid.UUID
		runID          uuid.UUID
		functionName   *string
		className      *string
		recommendation *string
		snippet        *string
		metrics        []byte
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, run_id, type, severity, confidence,
		       file_path, function_name, class_name, line_start, line_end,
		       description, recommendation, code_snippet, duplicate_group_id,
		       metrics, status, created_at
		FROM issues WHERE id = $1
	`, id).Scan(&issue.ID, &projectID, &runID, &issue.Type, &issue.Severity, &issue.Confidence,
		&issue.FilePath, &functionName, &className, &issue.LineStart, &issue.LineEnd,
		&issue.Description, &recommendation, &snippet, &issue.DuplicateGroupID,
		&metrics, &issue.Status, &issue.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, uuid.Nil, uuid.Nil, nil
	}
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, fmt.Errorf("failed to get issue: %w", err)
	}

	issue.FunctionName = deref(functionName)
	issue.ClassName = deref(className)
	issue.Recommendation = deref(recommendation)
	issue.CodeSnippet = deref(snippet)
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &issue.Metrics); err != nil {
			return nil, uuid.Nil, uuid.Nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}

	return &issue, projectID, runID, nil
}

// IssueFilter narrows an issue listing
type IssueFilter struct {
	Type     model.IssueType
	Severity model.Severity
	Limit    int
	Offset   int
}

// ListIssuesByProject lists issues for a project with optional filters
func (s *Store) ListIssuesByProject(ctx context.Context, projectID uuid.UUID, filter IssueFilter) ([]model.Issue, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, type, severity, confidence, file_path, function_name, class_name,
		       line_start, line_end, description, recommendation, code_snippet,
		       duplicate_group_id, metrics, status, created_at
		FROM issues
		WHERE project_id = $1
	`
	args := []interface{}{projectID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}

	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY file_path, line_start LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	issues := make([]model.Issue, 0)
	for rows.Next() {
		var (
			issue          model.Issue
			functionName   *string
			className      *string
			recommendation *string
			snippet        *string
			metrics        []byte
		)
		if err := rows.Scan(&issue.ID, &issue.Type, &issue.Severity, &issue.Confidence,
			&issue.FilePath, &functionName, &className, &issue.LineStart, &issue.LineEnd,
			&issue.Description, &recommendation, &snippet, &issue.DuplicateGroupID,
			&metrics, &issue.Status, &issue.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.FunctionName = deref(functionName)
		issue.ClassName = deref(className)
		issue.Recommendation = deref(recommendation)
		issue.CodeSnippet = deref(snippet)
		if len(metrics) > 0 {
			if err := json.Unmarshal(metrics, &issue.Metrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
			}
		}
		issues = append(issues, issue)
	}

	return issues, nil
}

// UpdateIssueStatus records the review decision on an issue
func (s *Store) UpdateIssueStatus(ctx context.Context, id uuid.UUID, status model.IssueStatus) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE issues SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update issue status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("issue not found")
	}
	return nil
}

// CreateDuplicateGroups persists a run's duplicate groups
func (s *Store) CreateDuplicateGroups(ctx context.Context, projectID, runID uuid.UUID, groups []model.DuplicateGroup) error {
	if len(groups) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range groups {
		g := &groups[i]
		members, err := json.Marshal(g.Members)
		if err != nil {
			return fmt.Errorf("failed to marshal members: %w", err)
		}
		batch.Queue(`
			INSERT INTO duplicate_groups (id, project_id, run_id, pass, similarity, members)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, g.ID, projectID, runID, g.Pass, g.Similarity, members)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range groups {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert duplicate group: %w", err)
		}
	}

	return nil
}

// ListDuplicateGroupsByProject lists duplicate groups for a project
func (s *Store) ListDuplicateGroupsByProject(ctx context.Context, projectID uuid.UUID) ([]model.DuplicateGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pass, similarity, members
		FROM duplicate_groups
		WHERE project_id = $1
		ORDER BY similarity DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate groups: %w", err)
	}
	defer rows.Close()

	groups := make([]model.DuplicateGroup, 0)
	for rows.Next() {
		var (
			g       model.DuplicateGroup
			members []byte
		)
		if err := rows.Scan(&g.ID, &g.Pass, &g.Similarity, &members); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate group: %w", err)
		}
		if len(members) > 0 {
			if err := json.Unmarshal(members, &g.Members); err != nil {
				return nil, fmt.Errorf("failed to unmarshal members: %w", err)
			}
		}
		groups = append(groups, g)
	}

	return groups, nil
}

// CreateSuggestion persists a verified refactoring suggestion
func (s *Store) CreateSuggestion(ctx context.Context, projectID uuid.UUID, sug *model.RefactoringSuggestion) error {
	changes, err := json.Marshal(sug.Changes)
	if err != nil {
		return fmt.Errorf("failed to marshal changes: %w", err)
	}
	layers, err := json.Marshal(sug.Layers)
	if err != nil {
		return fmt.Errorf("failed to marshal layers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO suggestions (id, project_id, issue_id, file_path, original_code,
			refactored_code, explanation, confidence, changes, validation_layers,
			badge, is_verified, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, sug.ID, projectID, sug.IssueID, sug.FilePath, sug.OriginalCode,
		sug.RefactoredCode, nullable(sug.Explanation), sug.Confidence, changes, layers,
		sug.Badge, sug.IsVerified, sug.Status, sug.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}

	return nil
}

// GetSuggestion gets a suggestion by ID
func (s *Store) GetSuggestion(ctx context.Context, id uuid.UUID) (*model.RefactoringSuggestion, uuid.UUID, error) {
	var (
		sug         model.RefactoringSuggestion
		projectID   uuid.UUID
		explanation *string
		changes     []byte
		layers      []byte
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, issue_id, file_path, original_code, refactored_code,
		       explanation, confidence, changes, validation_layers, badge,
		       is_verified, status, created_at
		FROM suggestions WHERE id = $1
	`, id).Scan(&sug.ID, &projectID, &sug.IssueID, &sug.FilePath, &sug.OriginalCode,
		&sug.RefactoredCode, &explanation, &sug.Confidence, &changes, &layers,
		&sug.Badge, &sug.IsVerified, &sug.Status, &sug.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, uuid.Nil, nil
	}
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("failed to get suggestion: %w", err)
	}

	sug.Explanation = deref(explanation)
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &sug.Changes); err != nil {
			return nil, uuid.Nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
	}
	if len(layers) > 0 {
		if err := json.Unmarshal(layers, &sug.Layers); err != nil {
			return nil, uuid.Nil, fmt.Errorf("failed to unmarshal layers: %w", err)
		}
	}

	return &sug, projectID, nil
}

// UpdateSuggestionStatus records the review decision on a suggestion
func (s *Store) UpdateSuggestionStatus(ctx context.Context, id uuid.UUID, status model.SuggestionStatus) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE suggestions SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update suggestion status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("suggestion not found")
	}
	return nil
}

// ListSuggestionsByIssue lists suggestions generated for an issue
func (s *Store) ListSuggestionsByIssue(ctx context.Context, issueID uuid.UUID) ([]model.RefactoringSuggestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, issue_id, file_path, original_code, refactored_code,
		       explanation, confidence, changes, validation_layers, badge,
		       is_verified, status, created_at
		FROM suggestions
		WHERE issue_id = $1
		ORDER BY created_at DESC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]model.RefactoringSuggestion, 0)
	for rows.Next() {
		var (
			sug         model.RefactoringSuggestion
			explanation *string
			changes     []byte
			layers      []byte
		)
		if err := rows.Scan(&sug.ID, &sug.IssueID, &sug.FilePath, &sug.OriginalCode,
			&sug.RefactoredCode, &explanation, &sug.Confidence, &changes, &layers,
			&sug.Badge, &sug.IsVerified, &sug.Status, &sug.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		sug.Explanation = deref(explanation)
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &sug.Changes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
			}
		}
		if len(layers) > 0 {
			if err := json.Unmarshal(layers, &sug.Layers); err != nil {
				return nil, fmt.Errorf("failed to unmarshal layers: %w", err)
			}
		}
		suggestions = append(suggestions, sug)
	}

	return suggestions, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
