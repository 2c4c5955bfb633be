package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/refacto-hq/refacto/internal/jobs"
)

func TestJobToResponse(t *testing.T) {
	now := time.Now()
	startedAt := now.Add(-time.Minute)
	completedAt := now
	result := json.RawMessage(`{"issues_found": 7}`)

	job := &jobs.Job{
		ID:          uuid.New(),
		Type:        jobs.JobTypeAnalysis,
		Status:      jobs.StatusCompleted,
		Priority:    5,
		ProjectID:   ptr(uuid.New()),
		RunID:       ptr(uuid.New()),
		Payload:     json.RawMessage(`{"key": "value"}`),
		Result:      &result,
		RetryCount:  1,
		MaxRetries:  3,
		CreatedAt:   now.Add(-5 * time.Minute),
		UpdatedAt:   now,
		StartedAt:   &startedAt,
		CompletedAt: &completedAt,
		WorkerID:    strPtr("analysis-1"),
	}

	resp := jobToResponse(job)

	if resp.ID != job.ID {
		t.Errorf("ID mismatch")
	}
	if resp.Type != "analysis" {
		t.Errorf("Type = %s, want analysis", resp.Type)
	}
	if resp.Status != "completed" {
		t.Errorf("Status = %s, want completed", resp.Status)
	}
	if resp.Priority != 5 {
		t.Errorf("Priority = %d, want 5", resp.Priority)
	}
	if resp.ProjectID == nil || *resp.ProjectID != *job.ProjectID {
		t.Error("ProjectID mismatch")
	}
	if resp.RunID == nil || *resp.RunID != *job.RunID {
		t.Error("RunID mismatch")
	}
	if string(resp.Result) != `{"issues_found": 7}` {
		t.Errorf("Result = %s", resp.Result)
	}
	if resp.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", resp.RetryCount)
	}
	if resp.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", resp.MaxRetries)
	}
	if resp.StartedAt == nil {
		t.Error("StartedAt should not be nil")
	}
	if resp.CompletedAt == nil {
		t.Error("CompletedAt should not be nil")
	}
	if resp.WorkerID == nil || *resp.WorkerID != "analysis-1" {
		t.Errorf("WorkerID = %v, want analysis-1", resp.WorkerID)
	}
}

func TestJobToResponse_NilJob(t *testing.T) {
	resp := jobToResponse(nil)
	if resp != nil {
		t.Error("expected nil response for nil job")
	}
}

func TestJobToResponse_MinimalJob(t *testing.T) {
	job := &jobs.Job{
		ID:        uuid.New(),
		Type:      jobs.JobTypeVerification,
		Status:    jobs.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	resp := jobToResponse(job)

	if resp.Type != "verification" {
		t.Errorf("Type = %s, want verification", resp.Type)
	}
	if resp.Status != "pending" {
		t.Errorf("Status = %s, want pending", resp.Status)
	}
	if resp.StartedAt != nil {
		t.Error("StartedAt should be nil")
	}
	if resp.CompletedAt != nil {
		t.Error("CompletedAt should be nil")
	}
	if resp.ProjectID != nil {
		t.Error("ProjectID should be nil")
	}
	if resp.Result != nil {
		t.Error("Result should be nil")
	}
}

func TestCreateJobRequest_Valid(t *testing.T) {
	req := CreateJobRequest{
		Type:     "analysis",
		Priority: 10,
		Payload: map[string]interface{}{
			"repository_url": "https://github.com/acme/widgets",
			"branch":         "main",
		},
	}

	if req.Type != "analysis" {
		t.Errorf("Type = %s, want analysis", req.Type)
	}
	if req.Priority != 10 {
		t.Errorf("Priority = %d, want 10", req.Priority)
	}
	if req.Payload["repository_url"] != "https://github.com/acme/widgets" {
		t.Error("Payload mismatch")
	}
}

func TestJobStatusResponse_Structure(t *testing.T) {
	parent := &JobResponse{
		ID:     uuid.New(),
		Type:   "analysis",
		Status: "completed",
	}

	children := []*JobResponse{
		{ID: uuid.New(), Type: "verification", Status: "completed"},
		{ID: uuid.New(), Type: "verification", Status: "running"},
	}

	resp := &JobStatusResponse{
		Job:      parent,
		Children: children,
	}

	if resp.Job == nil {
		t.Error("Job should not be nil")
	}
	if len(resp.Children) != 2 {
		t.Errorf("len(Children) = %d, want 2", len(resp.Children))
	}
}

func TestJobResponse_JSON(t *testing.T) {
	resp := &JobResponse{
		ID:         uuid.New(),
		Type:       "verification",
		Status:     "pending",
		Priority:   5,
		RetryCount: 0,
		MaxRetries: 3,
		CreatedAt:  "2026-01-01T00:00:00Z",
		UpdatedAt:  "2026-01-01T00:00:00Z",
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var parsed JobResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if parsed.ID != resp.ID {
		t.Errorf("ID mismatch after JSON roundtrip")
	}
	if parsed.Type != resp.Type {
		t.Errorf("Type mismatch after JSON roundtrip")
	}
}

// Helper functions
func ptr(u uuid.UUID) *uuid.UUID {
	return &u
}

func strPtr(s string) *string {
	return &s
}
