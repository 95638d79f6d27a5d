package db

import (
	"context"
	"testing"
	"time"
)

func sampleRecord(recordID, jobID string, finished time.Time) JobRecord {
	return JobRecord{
		RecordID:       recordID,
		JobID:          jobID,
		SourceKind:     "url",
		SourceRef:      "https://example.com/a.png",
		TargetLanguage: "en",
		Phase:          "completed",
		Status:         "completed",
		RecognizedText: "Hola",
		TranslatedText: "Hello",
		DurationMS:     6000,
		SubmittedAt:    finished.Add(-6 * time.Second),
		FinishedAt:     finished,
	}
}

func TestRepositoryInsertAndQuery(t *testing.T) {
	repo := NewRepository(openTestDatabase(t), nil)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		rowID, err := repo.InsertJobRecord(ctx, sampleRecord(id, "job-"+id, base.Add(time.Duration(i)*time.Minute)))
		if err != nil {
			t.Fatalf("InsertJobRecord(%s) error = %v", id, err)
		}
		if rowID == 0 {
			t.Errorf("InsertJobRecord(%s) returned row id 0 for a synchronous write", id)
		}
	}

	recent, err := repo.QueryRecent(ctx, 2)
	if err != nil {
		t.Fatalf("QueryRecent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].RecordID != "r3" || recent[1].RecordID != "r2" {
		t.Fatalf("QueryRecent(2) = %+v", recent)
	}

	got := recent[0]
	if got.JobID != "job-r3" || got.TranslatedText != "Hello" || got.DurationMS != 6000 {
		t.Errorf("record = %+v", got)
	}
	if !got.FinishedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}

	count, err := repo.Count(ctx)
	if err != nil || count != 3 {
		t.Errorf("Count() = %d, %v; want 3", count, err)
	}
}

func TestRepositoryFailedSubmissionRecord(t *testing.T) {
	repo := NewRepository(openTestDatabase(t), nil)
	ctx := context.Background()

	rec := JobRecord{
		RecordID:     "sub-fail",
		SourceKind:   "upload",
		SourceRef:    "scan.png",
		Phase:        "submission_failed",
		ErrorMessage: "Invalid image",
		StatusCode:   400,
		SubmittedAt:  time.Now(),
		FinishedAt:   time.Now(),
	}
	if _, err := repo.InsertJobRecord(ctx, rec); err != nil {
		t.Fatalf("InsertJobRecord() error = %v", err)
	}

	recent, err := repo.QueryRecent(ctx, 0)
	if err != nil || len(recent) != 1 {
		t.Fatalf("QueryRecent() = %v, %v", recent, err)
	}
	got := recent[0]
	if got.JobID != "" || got.Status != "" || got.RecognizedText != "" {
		t.Errorf("nullable columns not empty: %+v", got)
	}
	if got.ErrorMessage != "Invalid image" || got.StatusCode != 400 {
		t.Errorf("record = %+v", got)
	}
}

func TestRepositoryRejectsMissingRecordID(t *testing.T) {
	repo := NewRepository(openTestDatabase(t), nil)
	if _, err := repo.InsertJobRecord(context.Background(), JobRecord{}); err == nil {
		t.Error("InsertJobRecord without record id error = nil")
	}
}

func TestRepositoryAsyncInsert(t *testing.T) {
	repo := NewRepository(openTestDatabase(t), nil)
	writer := NewAsyncWriter(repo.AsyncWriteHandler(), DefaultAsyncWriterConfig())
	repo.SetAsyncWriter(writer)
	writer.Start()

	rowID, err := repo.InsertJobRecord(context.Background(), sampleRecord("async", "J", time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if rowID != 0 {
		t.Errorf("queued insert returned row id %d, want 0", rowID)
	}

	if !writer.Close(5 * time.Second) {
		t.Fatal("writer did not drain")
	}

	count, err := repo.Count(context.Background())
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v; want 1", count, err)
	}
}
