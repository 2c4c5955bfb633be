package jobs

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewPipeline(t *testing.T) {
	// NewPipeline with nil dependencies (acceptable for unit testing)
	pipeline := NewPipeline(nil, nil)
	if pipeline == nil {
		t.Fatal("NewPipeline returned nil")
	}
}

func TestJobStatusReport_Fields(t *testing.T) {
	parentJob := &Job{
		ID:     uuid.New(),
		Type:   JobTypeAnalysis,
		Status: StatusCompleted,
	}

	childJobs := []*Job{
		{ID: uuid.New(), Type: JobTypeVerification, Status: StatusRunning},
		{ID: uuid.New(), Type: JobTypeVerification, Status: StatusPending},
	}

	report := JobStatusReport{
		Job:      parentJob,
		Children: childJobs,
	}

	if report.Job != parentJob {
		t.Error("Job should reference parent job")
	}
	if len(report.Children) != 2 {
		t.Errorf("len(Children) = %d, want 2", len(report.Children))
	}
	if report.Children[0].Type != JobTypeVerification {
		t.Errorf("Children[0].Type = %s, want verification", report.Children[0].Type)
	}
}

func TestJobStatusReport_EmptyChildren(t *testing.T) {
	job := &Job{
		ID:     uuid.New(),
		Type:   JobTypeVerification,
		Status: StatusPending,
	}

	report := JobStatusReport{
		Job:      job,
		Children: nil,
	}

	if report.Job == nil {
		t.Error("Job should not be nil")
	}
	if report.Children != nil {
		t.Error("Children should be nil")
	}
}

func TestJobStatusReport_Defaults(t *testing.T) {
	report := JobStatusReport{}

	if report.Job != nil {
		t.Error("default Job should be nil")
	}
	if report.Children != nil {
		t.Error("default Children should be nil")
	}
}
