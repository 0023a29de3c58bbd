package models

import (
	"testing"
	"time"
)

func TestJob_LogsSince(t *testing.T) {
	j := NewJobStore().Create("migration", "dst")
	j.AppendLog("one")
	j.AppendLog("two")
	j.AppendLog("three")

	tests := []struct {
		offset int
		want   int
	}{
		{0, 3},
		{2, 1},
		{3, 0},
		{10, 0},
	}
	for _, tc := range tests {
		if got := len(j.LogsSince(tc.offset)); got != tc.want {
			t.Errorf("LogsSince(%d) returned %d lines, want %d", tc.offset, got, tc.want)
		}
	}
}

func TestJob_StatusAfterFinish(t *testing.T) {
	j := NewJobStore().Create("migration", "dst")
	j.SetStatus(JobAwaitingConflicts)
	if j.Snapshot().Status != JobAwaitingConflicts {
		t.Fatalf("status = %q, want %q", j.Snapshot().Status, JobAwaitingConflicts)
	}

	j.Complete()
	j.SetStatus(JobRunning)
	snap := j.Snapshot()
	if snap.Status != JobCompleted {
		t.Errorf("SetStatus after Complete changed status to %q", snap.Status)
	}
	if !j.Done() || snap.FinishedAt == nil {
		t.Error("completed job should be done")
	}
}

func TestJob_AddStepFoldsSummary(t *testing.T) {
	j := NewJobStore().Create("migration", "dst")
	j.AddStep(StepResult{Kind: KindPages, Summary: Summary{Total: 2, Created: 1, Skipped: 1}})
	j.AddStep(StepResult{Kind: KindBlogs, Summary: Summary{Total: 3, Updated: 2, Errors: 1}})

	got := j.Snapshot().Summary
	want := Summary{Total: 5, Created: 1, Updated: 2, Skipped: 1, Errors: 1}
	if got != want {
		t.Errorf("Summary = %+v, want %+v", got, want)
	}
	if len(j.Snapshot().Steps) != 2 {
		t.Errorf("Steps = %d, want 2", len(j.Snapshot().Steps))
	}
}

func TestJob_Cancel(t *testing.T) {
	j := NewJobStore().Create("migration", "dst")
	j.Cancel() // no cancel func registered yet

	called := false
	j.SetCancel(func() { called = true })
	j.Cancel()
	if !called {
		t.Error("Cancel did not call the registered cancel func")
	}
}

func TestJobStore_ActiveForAndList(t *testing.T) {
	store := NewJobStore()
	first := store.Create("migration", "dst")
	time.Sleep(time.Millisecond)
	second := store.Create("dry-run", "other")

	if store.ActiveFor("dst") != first {
		t.Error("ActiveFor(dst) should return the running job")
	}
	first.Fail("boom")
	if store.ActiveFor("dst") != nil {
		t.Error("ActiveFor should ignore finished jobs")
	}

	list := store.List()
	if len(list) != 2 || list[0] != second {
		t.Errorf("List() should return the most recent job first")
	}
	if store.Get(first.ID).Snapshot().Error != "boom" {
		t.Error("Fail did not record the error")
	}
}
