package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/shop-migration-workbench/internal/migration"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// ConflictStore provides thread-safe storage for the conflict batch a job
// is waiting on.
type ConflictStore struct {
	mu      sync.RWMutex
	batches map[string]*migration.ConflictBatch
}

func NewConflictStore() *ConflictStore {
	return &ConflictStore{batches: make(map[string]*migration.ConflictBatch)}
}

func (cs *ConflictStore) Store(jobID string, b *migration.ConflictBatch) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.batches[jobID] = b
}

// Get returns the open batch of a job, or nil.
func (cs *ConflictStore) Get(jobID string) *migration.ConflictBatch {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	b := cs.batches[jobID]
	if b == nil || b.Closed() {
		return nil
	}
	return b
}

func (cs *ConflictStore) Delete(jobID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.batches, jobID)
}

// Remove deletes the job's batch only if it is still b. A later step may
// already have stored its own batch.
func (cs *ConflictStore) Remove(jobID string, b *migration.ConflictBatch) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.batches[jobID] == b {
		delete(cs.batches, jobID)
	}
}

type conflictItem struct {
	models.Outcome
	Diff string `json:"diff,omitempty"`
}

// GetConflicts returns the conflicts a job is waiting on.
func (s *Server) GetConflicts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.Jobs.Get(id) == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	b := s.Conflicts.Get(id)
	if b == nil {
		writeError(w, http.StatusNotFound, "no pending conflicts")
		return
	}
	items := make([]conflictItem, len(b.Conflicts))
	for i, c := range b.Conflicts {
		items[i] = conflictItem{Outcome: c, Diff: migration.Diff(c)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":      b.Kind,
		"label":     b.Label,
		"conflicts": items,
	})
}

// ResolveConflicts answers a job's pending conflicts. Conflicts without a
// decision are skipped.
func (s *Server) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decisions models.ConflictDecision `json:"decisions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s.answerConflicts(w, r, "resolved", func(b *migration.ConflictBatch) error {
		return b.Resolve(req.Decisions)
	})
}

// CancelConflicts skips all of a job's pending conflicts.
func (s *Server) CancelConflicts(w http.ResponseWriter, r *http.Request) {
	s.answerConflicts(w, r, "cancelled", (*migration.ConflictBatch).Cancel)
}

func (s *Server) answerConflicts(w http.ResponseWriter, r *http.Request, status string, answer func(*migration.ConflictBatch) error) {
	id := chi.URLParam(r, "id")
	job := s.Jobs.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	b := s.Conflicts.Get(id)
	if b == nil {
		writeError(w, http.StatusNotFound, "no pending conflicts")
		return
	}
	if err := answer(b); err != nil {
		switch {
		case errors.Is(err, migration.ErrConflictBatchClosed):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, models.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.Conflicts.Remove(id, b)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
