package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	JobRunning           = "running"
	JobAwaitingConflicts = "awaiting_conflicts"
	JobCompleted         = "completed"
	JobFailed            = "failed"
)

// StepResult is the outcome of one entity-kind pass inside a job.
type StepResult struct {
	Kind      EntityKind `json:"kind"`
	OwnerType string     `json:"owner_type,omitempty"`
	Results   []Outcome  `json:"results"`
	Summary   Summary    `json:"summary"`
	Error     string     `json:"error,omitempty"`
}

// Job represents an async migration run.
type Job struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"` // "migration", "dry-run"
	ConnectionID string       `json:"connection_id"`
	Status       string       `json:"status"`
	State        string       `json:"state,omitempty"` // runner state of the current step
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	Error        string       `json:"error,omitempty"`
	Output       []string     `json:"output"`
	Steps        []StepResult `json:"steps"`
	Summary      Summary      `json:"summary"`
	mu           sync.Mutex
	cancel       context.CancelFunc
}

// AppendLog adds a log line to the job output.
func (j *Job) AppendLog(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Output = append(j.Output, line)
}

// LogsSince returns log lines starting from the given index.
func (j *Job) LogsSince(offset int) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if offset >= len(j.Output) {
		return nil
	}
	lines := make([]string, len(j.Output)-offset)
	copy(lines, j.Output[offset:])
	return lines
}

// SetState records the runner state of the step in progress.
func (j *Job) SetState(state string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.State = state
}

// SetStatus changes the job status while it is still active.
func (j *Job) SetStatus(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.FinishedAt == nil {
		j.Status = status
	}
}

// AddStep appends a finished step and folds its summary into the job total.
func (j *Job) AddStep(step StepResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Steps = append(j.Steps, step)
	j.Summary.Add(step.Summary)
}

// Complete marks the job as completed.
func (j *Job) Complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobCompleted
	now := time.Now()
	j.FinishedAt = &now
}

// Fail marks the job as failed with an error message.
func (j *Job) Fail(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobFailed
	j.Error = err
	now := time.Now()
	j.FinishedAt = &now
}

// Done reports whether the job has finished.
func (j *Job) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.FinishedAt != nil
}

// SetCancel registers the function that stops the job's context.
func (j *Job) SetCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// Cancel stops dispatching further items. In-flight writes still complete.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Snapshot returns a copy that can be serialized without holding the lock.
func (j *Job) Snapshot() Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Job{
		ID:           j.ID,
		Type:         j.Type,
		ConnectionID: j.ConnectionID,
		Status:       j.Status,
		State:        j.State,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		Error:        j.Error,
		Output:       append([]string(nil), j.Output...),
		Steps:        append([]StepResult(nil), j.Steps...),
		Summary:      j.Summary,
	}
}

// JobStore is an in-memory thread-safe store for jobs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create adds a new job, assigning it a UUID.
func (s *JobStore) Create(jobType, connectionID string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &Job{
		ID:           uuid.New().String(),
		Type:         jobType,
		ConnectionID: connectionID,
		Status:       JobRunning,
		StartedAt:    time.Now(),
		Output:       []string{},
		Steps:        []StepResult{},
	}
	s.jobs[j.ID] = j
	return j
}

// Get returns a job by ID.
func (s *JobStore) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// ActiveFor returns an unfinished job writing to the given connection, if any.
func (s *JobStore) ActiveFor(connectionID string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.ConnectionID == connectionID && !j.Done() {
			return j
		}
	}
	return nil
}

// List returns all jobs, most recent first.
func (s *JobStore) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, j)
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].StartedAt.After(result[b].StartedAt)
	})
	return result
}
