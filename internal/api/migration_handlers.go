package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rflorenc/shop-migration-workbench/internal/history"
	"github.com/rflorenc/shop-migration-workbench/internal/migration"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// migrateStep selects the items of one entity kind.
type migrateStep struct {
	Kind      models.EntityKind `json:"kind"`
	ItemIDs   []string          `json:"item_ids"`
	OwnerType string            `json:"owner_type,omitempty"`
}

type migrateRequest struct {
	SourceID       string                `json:"source_id"`
	DestinationID  string                `json:"destination_id"`
	ConflictPolicy models.ConflictPolicy `json:"conflict_policy"`
	DryRun         bool                  `json:"dry_run"`
	Steps          []migrateStep         `json:"steps"`
}

// ListKinds returns the migratable entity kinds in migration order.
func (s *Server) ListKinds(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]any, len(models.AllKinds))
	for i, k := range models.AllKinds {
		out[i] = map[string]any{"kind": k, "label": k.Label(), "composite": k.Composite()}
	}
	writeJSON(w, http.StatusOK, out)
}

// StartMigration starts an async job that runs the steps one after another.
func (s *Server) StartMigration(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	src := s.Connections.Get(req.SourceID)
	if src == nil {
		writeError(w, http.StatusNotFound, "source connection not found")
		return
	}
	dst := s.Connections.Get(req.DestinationID)
	if dst == nil {
		writeError(w, http.StatusNotFound, "destination connection not found")
		return
	}
	if len(req.Steps) == 0 {
		writeError(w, http.StatusBadRequest, "at least one step is required")
		return
	}
	policy, err := models.ParsePolicy(string(req.ConflictPolicy))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ConflictPolicy = policy
	for _, step := range req.Steps {
		if _, err := models.ParseKind(string(step.Kind)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if active := s.Jobs.ActiveFor(dst.ID); active != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "a migration into this shop is already running",
			"job_id": active.ID,
		})
		return
	}

	jobType := "migration"
	if req.DryRun {
		jobType = "dry-run"
	}
	job := s.Jobs.Create(jobType, dst.ID)
	ctx, cancel := context.WithCancel(context.Background())
	job.SetCancel(cancel)

	go func() {
		defer cancel()
		s.runJob(ctx, job, src.Shop(), dst.Shop(), req)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// runJob runs every step and folds the step summaries into the job. A step
// that cannot run at all fails the job.
func (s *Server) runJob(ctx context.Context, job *models.Job, src, dst models.Shop, req migrateRequest) {
	defer s.Conflicts.Delete(job.ID)

	for i, step := range req.Steps {
		if ctx.Err() != nil {
			job.AppendLog(fmt.Sprintf("CANCELLED: %d remaining steps skipped", len(req.Steps)-i))
			break
		}
		if i > 0 {
			job.AppendLog("")
		}

		mreq := models.MigrationRequest{
			Source:    src,
			Target:    dst,
			Kind:      step.Kind,
			ItemIDs:   step.ItemIDs,
			Policy:    req.ConflictPolicy,
			DryRun:    req.DryRun,
			OwnerType: step.OwnerType,
		}
		started := time.Now()
		res, err := s.Runner.Migrate(ctx, mreq, migration.RunOptions{
			Logger:    job.AppendLog,
			Conflicts: s.conflictHandler(job),
			OnState: func(st migration.State) {
				job.SetState(string(st))
				if st == migration.StateWriting {
					job.SetStatus(models.JobRunning)
				}
			},
		})
		s.Conflicts.Delete(job.ID)

		result := models.StepResult{Kind: step.Kind, OwnerType: step.OwnerType}
		if err != nil {
			result.Error = err.Error()
			job.AddStep(result)
			s.archive(job, mreq, started, result)
			job.AppendLog("ERROR: " + err.Error())
			job.Fail(err.Error())
			return
		}
		result.Results, result.Summary = res.Results, res.Summary
		job.AddStep(result)
		s.archive(job, mreq, started, result)
	}

	sum := job.Snapshot().Summary
	job.AppendLog("")
	job.AppendLog(fmt.Sprintf("Fertig: %d erstellt, %d aktualisiert, %d übersprungen, %d Fehler",
		sum.Created, sum.Updated, sum.Skipped, sum.Errors))
	job.Complete()
}

// conflictHandler parks pending conflicts until a client resolves or
// cancels them through the API.
func (s *Server) conflictHandler(job *models.Job) migration.ConflictHandler {
	return migration.ConflictHandlerFunc(func(b *migration.ConflictBatch) {
		job.SetStatus(models.JobAwaitingConflicts)
		job.AppendLog(fmt.Sprintf("  %d conflicts in %s need a decision", len(b.Conflicts), b.Label))
		s.Conflicts.Store(job.ID, b)
	})
}

func (s *Server) archive(job *models.Job, req models.MigrationRequest, started time.Time, step models.StepResult) {
	if s.History == nil {
		return
	}
	run := &history.Run{
		JobID:      job.ID,
		Kind:       req.Kind,
		OwnerType:  req.OwnerType,
		Policy:     req.Policy,
		DryRun:     req.DryRun,
		SourceShop: req.Source.URL,
		TargetShop: req.Target.URL,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Summary:    step.Summary,
		Error:      step.Error,
		Results:    step.Results,
	}
	if err := s.History.Save(context.Background(), run); err != nil {
		log.Printf("archiving %s step of job %s: %v", req.Kind, job.ID, err)
	}
}
