// Package jobs provides pipeline orchestration for analysis workflows
package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	refactonats "github.com/refacto-hq/refacto/internal/nats"
)

// Pipeline orchestrates analysis and verification job flows
type Pipeline struct {
	repo *Repository
	nats *refactonats.Client
}

// NewPipeline creates a new pipeline manager
func NewPipeline(repo *Repository, nats *refactonats.Client) *Pipeline {
	return &Pipeline{
		repo: repo,
		nats: nats,
	}
}

// StartAnalysis enqueues an analysis job for a project
func (p *Pipeline) StartAnalysis(ctx context.Context, payload AnalysisPayload) (*Job, error) {
	job, err := NewJob(JobTypeAnalysis, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	job.ProjectID = &payload.ProjectID

	if err := p.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := p.publishJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to publish job")
		// Job is in DB, worker can poll for it
	}

	log.Info().
		Str("job_id", job.ID.String()).
		Str("project_id", payload.ProjectID.String()).
		Str("repo_url", payload.RepositoryURL).
		Msg("started analysis pipeline")

	return job, nil
}

// StartVerification enqueues a verification job for one issue
func (p *Pipeline) StartVerification(ctx context.Context, payload VerificationPayload) (*Job, error) {
	job, err := NewJob(JobTypeVerification, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	job.ProjectID = &payload.ProjectID

	if err := p.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := p.publishJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to publish job")
	}

	log.Info().
		Str("job_id", job.ID.String()).
		Str("issue_id", payload.IssueID.String()).
		Msg("started verification")

	return job, nil
}

// ChainJob creates a child job linked to a parent
func (p *Pipeline) ChainJob(ctx context.Context, parentID uuid.UUID, jobType JobType, payload interface{}) (*Job, error) {
	job, err := NewJob(jobType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	job.ParentJobID = &parentID

	// Inherit project/run from parent if not set
	parent, err := p.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parent job: %w", err)
	}
	if parent != nil && parent.ProjectID != nil {
		job.ProjectID = parent.ProjectID
	}
	if parent != nil && parent.RunID != nil {
		job.RunID = parent.RunID
	}

	if err := p.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := p.publishJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to publish job")
	}

	log.Debug().
		Str("job_id", job.ID.String()).
		Str("parent_id", parentID.String()).
		Str("type", string(jobType)).
		Msg("created chained job")

	return job, nil
}

// publishJob publishes a job notification to NATS
func (p *Pipeline) publishJob(ctx context.Context, job *Job) error {
	if p.nats == nil {
		return nil // NATS not configured, workers will poll DB
	}

	msg := &JobMessage{
		JobID:    job.ID,
		Type:     job.Type,
		Priority: job.Priority,
	}

	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	subject := refactonats.SubjectForJobType(string(job.Type))
	if subject == "" {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	_, err = p.nats.Publish(ctx, subject, data)
	return err
}

// GetJobStatus returns the current status of a job and its children
func (p *Pipeline) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*JobStatusReport, error) {
	job, err := p.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job not found")
	}

	children, err := p.repo.GetChildJobs(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &JobStatusReport{
		Job:      job,
		Children: children,
	}, nil
}

// JobStatusReport contains a job and its child jobs
type JobStatusReport struct {
	Job      *Job   `json:"job"`
	Children []*Job `json:"children,omitempty"`
}

// RetryFailedJobs requeues all jobs in retrying status
func (p *Pipeline) RetryFailedJobs(ctx context.Context) (int, error) {
	jobs, err := p.repo.ListByStatus(ctx, StatusRetrying, 100)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, job := range jobs {
		if err := p.repo.Retry(ctx, job.ID); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("failed to retry job")
			continue
		}

		// Republish to NATS
		job.Status = StatusPending
		if err := p.publishJob(ctx, job); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("failed to republish job")
		}

		count++
	}

	return count, nil
}
