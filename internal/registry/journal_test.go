package registry

import (
	"context"
	"testing"
	"time"

	"subburn/internal/job"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	journal, err := OpenJournal(t.TempDir())
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })
	return journal
}

func TestJournalRoundTrip(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	submitted := time.Now().UTC().Truncate(time.Millisecond)
	jb := &job.Job{
		ID:          "j1",
		Spec:        job.Spec{InputPath: "/videos/in.mp4", LanguageHint: "zh", Text: "hello"},
		State:       job.StateQueued,
		SubmittedAt: submitted,
	}
	if err := journal.RecordSubmission(ctx, jb); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}

	jb.State = job.StateRunning
	jb.StartedAt = submitted.Add(time.Second)
	if err := journal.RecordTransition(ctx, jb); err != nil {
		t.Fatalf("RecordTransition running: %v", err)
	}

	jb.State = job.StateFailed
	jb.FinishedAt = submitted.Add(5 * time.Second)
	jb.Failure = job.NewFailure(job.KindRendererError, "renderer exited").WithExit(187, "stderr tail")
	if err := journal.RecordTransition(ctx, jb); err != nil {
		t.Fatalf("RecordTransition failed: %v", err)
	}

	records, err := journal.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("History returned %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.ID != "j1" || rec.State != job.StateFailed {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.InputPath != "/videos/in.mp4" || rec.LanguageHint != "zh" {
		t.Fatalf("spec fields lost: %+v", rec)
	}
	if !rec.SubmittedAt.Equal(submitted) {
		t.Fatalf("SubmittedAt = %v, want %v", rec.SubmittedAt, submitted)
	}
	if rec.StartedAt == nil || rec.FinishedAt == nil {
		t.Fatalf("timestamps missing: %+v", rec)
	}
	if rec.ErrorKind != string(job.KindRendererError) || rec.ExitCode != 187 {
		t.Fatalf("failure detail lost: %+v", rec)
	}
}

func TestJournalHistoryOrderAndLimit(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		jb := &job.Job{
			ID:          id,
			State:       job.StateQueued,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := journal.RecordSubmission(ctx, jb); err != nil {
			t.Fatalf("RecordSubmission %s: %v", id, err)
		}
	}

	records, err := journal.History(ctx, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("History returned %d records, want 2", len(records))
	}
	if records[0].ID != "new" || records[1].ID != "mid" {
		t.Fatalf("unexpected order: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestJournalStats(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		jb := &job.Job{ID: id, State: job.StateQueued, SubmittedAt: time.Now().UTC()}
		if err := journal.RecordSubmission(ctx, jb); err != nil {
			t.Fatalf("RecordSubmission: %v", err)
		}
	}
	jb := &job.Job{ID: "a", State: job.StateSucceeded, SubmittedAt: time.Now().UTC(), FinishedAt: time.Now().UTC()}
	if err := journal.RecordTransition(ctx, jb); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}

	stats, err := journal.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[job.StateQueued] != 1 || stats[job.StateSucceeded] != 1 {
		t.Fatalf("Stats = %v", stats)
	}
}
