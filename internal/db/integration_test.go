//go:build integration
// +build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/refacto-hq/refacto/internal/testutil"
	"github.com/refacto-hq/refacto/pkg/model"
)

func TestIntegration_CreateAndGetProject(t *testing.T) {
	testDB := testutil.RequireDB(t)

	db := &DB{pool: testDB.Pool}
	store := NewStore(db)
	ctx := context.Background()

	lang := "go"
	p := &Project{
		URL:           "https://github.com/test/integration-test-repo",
		Name:          "integration-test-repo",
		DefaultBranch: "main",
		Language:      &lang,
	}

	err := store.CreateProject(ctx, p)
	if err != nil {
		t.Fatalf("CreateProject() error: %v", err)
	}

	if p.ID == uuid.Nil {
		t.Error("CreateProject() should set ID")
	}
	if p.Status != "pending" {
		t.Errorf("CreateProject() status = %s, want pending", p.Status)
	}

	fetched, err := store.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject() error: %v", err)
	}
	if fetched == nil {
		t.Fatal("GetProject() returned nil")
	}
	if fetched.URL != p.URL {
		t.Errorf("URL = %s, want %s", fetched.URL, p.URL)
	}

	byURL, err := store.GetProjectByURL(ctx, p.URL)
	if err != nil {
		t.Fatalf("GetProjectByURL() error: %v", err)
	}
	if byURL == nil || byURL.ID != p.ID {
		t.Error("GetProjectByURL() should find the created project")
	}
}

func TestIntegration_AnalysisRunLifecycle(t *testing.T) {
	testDB := testutil.RequireDB(t)

	db := &DB{pool: testDB.Pool}
	store := NewStore(db)
	ctx := context.Background()

	p := &Project{URL: "https://github.com/test/run-lifecycle", Name: "run-lifecycle", DefaultBranch: "main"}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject() error: %v", err)
	}

	run := &AnalysisRun{ProjectID: p.ID}
	if err := store.CreateAnalysisRun(ctx, run); err != nil {
		t.Fatalf("CreateAnalysisRun() error: %v", err)
	}
	if run.Status != "pending" {
		t.Errorf("status = %s, want pending", run.Status)
	}

	if err := store.UpdateAnalysisRunStatus(ctx, run.ID, "running"); err != nil {
		t.Fatalf("UpdateAnalysisRunStatus(running) error: %v", err)
	}

	summary := model.Summary{
		TotalFiles:      5,
		SupportedFiles:  4,
		TotalIssues:     3,
		DuplicateGroups: 1,
		QualityScore:    92,
	}
	if err := store.UpdateAnalysisRunCounts(ctx, run.ID, summary); err != nil {
		t.Fatalf("UpdateAnalysisRunCounts() error: %v", err)
	}
	if err := store.UpdateAnalysisRunStatus(ctx, run.ID, "completed"); err != nil {
		t.Fatalf("UpdateAnalysisRunStatus(completed) error: %v", err)
	}

	fetched, err := store.GetAnalysisRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAnalysisRun() error: %v", err)
	}
	if fetched.Status != "completed" {
		t.Errorf("status = %s, want completed", fetched.Status)
	}
	if fetched.IssueCount != 3 {
		t.Errorf("IssueCount = %d, want 3", fetched.IssueCount)
	}
	if fetched.QualityScore != 92 {
		t.Errorf("QualityScore = %d, want 92", fetched.QualityScore)
	}
	if fetched.CompletedAt == nil {
		t.Error("CompletedAt should be set for completed run")
	}
}

func TestIntegration_IssuesBulkInsertAndFilter(t *testing.T) {
	testDB := testutil.RequireDB(t)

	db := &DB{pool: testDB.Pool}
	store := NewStore(db)
	ctx := context.Background()

	p := &Project{URL: "https://github.com/test/issues-repo", Name: "issues-repo", DefaultBranch: "main"}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject() error: %v", err)
	}
	run := &AnalysisRun{ProjectID: p.ID}
	if err := store.CreateAnalysisRun(ctx, run); err != nil {
		t.Fatalf("CreateAnalysisRun() error: %v", err)
	}

	issues := []model.Issue{
		{
			ID: uuid.New(), Type: model.IssueHardcodedCredentials, Severity: model.SeverityCritical,
			Confidence: 95, FilePath: "config.py", LineStart: 2, LineEnd: 2,
			Description: "hardcoded password", Status: model.IssuePending, CreatedAt: time.Now(),
			Metrics: model.Metrics{RuleID: "password-assignment"},
		},
		{
			ID: uuid.New(), Type: model.IssueLongMethod, Severity: model.SeverityMedium,
			Confidence: 90, FilePath: "main.go", FunctionName: "process",
			LineStart: 10, LineEnd: 80, Description: "long method",
			Status: model.IssuePending, CreatedAt: time.Now(),
			Metrics: model.Metrics{Value: 71, Threshold: 50},
		},
	}

	if err := store.CreateIssues(ctx, p.ID, run.ID, issues); err != nil {
		t.Fatalf("CreateIssues() error: %v", err)
	}

	all, err := store.ListIssuesByProject(ctx, p.ID, IssueFilter{})
	if err != nil {
		t.Fatalf("ListIssuesByProject() error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(issues) = %d, want 2", len(all))
	}

	critical, err := store.ListIssuesByProject(ctx, p.ID, IssueFilter{Severity: model.SeverityCritical})
	if err != nil {
		t.Fatalf("ListIssuesByProject(critical) error: %v", err)
	}
	if len(critical) != 1 {
		t.Fatalf("len(critical) = %d, want 1", len(critical))
	}
	if critical[0].Type != model.IssueHardcodedCredentials {
		t.Errorf("type = %s, want hardcoded_credentials", critical[0].Type)
	}
	if critical[0].Metrics.RuleID != "password-assignment" {
		t.Errorf("RuleID = %s, want password-assignment", critical[0].Metrics.RuleID)
	}

	got, projectID, runID, err := store.GetIssue(ctx, issues[1].ID)
	if err != nil {
		t.Fatalf("GetIssue() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetIssue() returned nil")
	}
	if projectID != p.ID || runID != run.ID {
		t.Error("GetIssue() should return owning project and run")
	}
	if got.Metrics.Value != 71 {
		t.Errorf("Metrics.Value = %v, want 71", got.Metrics.Value)
	}

	if err := store.UpdateIssueStatus(ctx, got.ID, model.IssueAccepted); err != nil {
		t.Fatalf("UpdateIssueStatus() error: %v", err)
	}
}

func TestIntegration_SuggestionRoundTrip(t *testing.T) {
	testDB := testutil.RequireDB(t)

	db := &DB{pool: testDB.Pool}
	store := NewStore(db)
	ctx := context.Background()

	p := &Project{URL: "https://github.com/test/suggestion-repo", Name: "suggestion-repo", DefaultBranch: "main"}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject() error: %v", err)
	}
	run := &AnalysisRun{ProjectID: p.ID}
	if err := store.CreateAnalysisRun(ctx, run); err != nil {
		t.Fatalf("CreateAnalysisRun() error: %v", err)
	}

	issue := model.Issue{
		ID: uuid.New(), Type: model.IssueHighComplexity, Severity: model.SeverityHigh,
		Confidence: 90, FilePath: "main.go", LineStart: 1, LineEnd: 30,
		Description: "too complex", Status: model.IssuePending, CreatedAt: time.Now(),
	}
	if err := store.CreateIssues(ctx, p.ID, run.ID, []model.Issue{issue}); err != nil {
		t.Fatalf("CreateIssues() error: %v", err)
	}

	sug := &model.RefactoringSuggestion{
		ID:             uuid.New(),
		IssueID:        issue.ID,
		FilePath:       "main.go",
		OriginalCode:   "func a() {}",
		RefactoredCode: "func b() {}",
		Explanation:    "rename for clarity",
		Confidence:     100,
		Changes:        []model.Change{{Line: 1, Type: model.ChangeModify}},
		Layers: []model.ValidationLayer{
			{Name: "syntax", Status: model.LayerPass},
		},
		Badge:      model.BadgeVerified,
		IsVerified: true,
		Status:     model.SuggestionPending,
		CreatedAt:  time.Now(),
	}

	if err := store.CreateSuggestion(ctx, p.ID, sug); err != nil {
		t.Fatalf("CreateSuggestion() error: %v", err)
	}

	fetched, projectID, err := store.GetSuggestion(ctx, sug.ID)
	if err != nil {
		t.Fatalf("GetSuggestion() error: %v", err)
	}
	if fetched == nil {
		t.Fatal("GetSuggestion() returned nil")
	}
	if projectID != p.ID {
		t.Error("GetSuggestion() should return owning project")
	}
	if fetched.Badge != model.BadgeVerified {
		t.Errorf("Badge = %s, want verified", fetched.Badge)
	}
	if len(fetched.Changes) != 1 || fetched.Changes[0].Type != model.ChangeModify {
		t.Error("Changes should round-trip")
	}
	if len(fetched.Layers) != 1 || fetched.Layers[0].Name != "syntax" {
		t.Error("Layers should round-trip")
	}

	byIssue, err := store.ListSuggestionsByIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("ListSuggestionsByIssue() error: %v", err)
	}
	if len(byIssue) != 1 {
		t.Fatalf("len(suggestions) = %d, want 1", len(byIssue))
	}

	if err := store.UpdateSuggestionStatus(ctx, sug.ID, model.SuggestionAccepted); err != nil {
		t.Fatalf("UpdateSuggestionStatus() error: %v", err)
	}
}

func TestIntegration_DuplicateGroups(t *testing.T) {
	testDB := testutil.RequireDB(t)

	db := &DB{pool: testDB.Pool}
	store := NewStore(db)
	ctx := context.Background()

	p := &Project{URL: "https://github.com/test/dup-repo", Name: "dup-repo", DefaultBranch: "main"}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject() error: %v", err)
	}
	run := &AnalysisRun{ProjectID: p.ID}
	if err := store.CreateAnalysisRun(ctx, run); err != nil {
		t.Fatalf("CreateAnalysisRun() error: %v", err)
	}

	groups := []model.DuplicateGroup{
		{
			ID:         uuid.New(),
			Pass:       model.PassExact,
			Similarity: 1.0,
			Members: []model.DuplicateMember{
				{FilePath: "a.go", FunctionName: "copyA", LineStart: 1, LineEnd: 12},
				{FilePath: "b.go", FunctionName: "copyB", LineStart: 5, LineEnd: 16},
			},
		},
	}

	if err := store.CreateDuplicateGroups(ctx, p.ID, run.ID, groups); err != nil {
		t.Fatalf("CreateDuplicateGroups() error: %v", err)
	}

	fetched, err := store.ListDuplicateGroupsByProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListDuplicateGroupsByProject() error: %v", err)
	}
	if len(fetched) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(fetched))
	}
	if fetched[0].Pass != model.PassExact {
		t.Errorf("Pass = %s, want exact", fetched[0].Pass)
	}
	if len(fetched[0].Members) != 2 {
		t.Errorf("len(Members) = %d, want 2", len(fetched[0].Members))
	}
}
