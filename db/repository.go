package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is how submitted_at and finished_at are stored: fixed width
// UTC so that text ordering is time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// JobRecord is one row of job_history: the final state of one submission.
type JobRecord struct {
	ID             int64     `json:"id" yaml:"id"`
	RecordID       string    `json:"recordId" yaml:"recordId"`
	JobID          string    `json:"jobId,omitempty" yaml:"jobId,omitempty"` // empty for failed submissions
	SourceKind     string    `json:"sourceKind" yaml:"sourceKind"`
	SourceRef      string    `json:"sourceRef" yaml:"sourceRef"`
	TargetLanguage string    `json:"targetLanguage" yaml:"targetLanguage"`
	Phase          string    `json:"phase" yaml:"phase"`
	Status         string    `json:"status,omitempty" yaml:"status,omitempty"`
	RecognizedText string    `json:"recognizedText,omitempty" yaml:"recognizedText,omitempty"`
	TranslatedText string    `json:"translatedText,omitempty" yaml:"translatedText,omitempty"`
	FailureReason  string    `json:"failureReason,omitempty" yaml:"failureReason,omitempty"`
	ErrorMessage   string    `json:"error,omitempty" yaml:"error,omitempty"`
	StatusCode     int       `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	DurationMS     int64     `json:"durationMs" yaml:"durationMs"`
	SubmittedAt    time.Time `json:"submittedAt" yaml:"submittedAt"`
	FinishedAt     time.Time `json:"finishedAt" yaml:"finishedAt"`
}

// Repository reads and writes job_history. With a started AsyncWriter,
// inserts are queued; otherwise they run synchronously.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a Repository. asyncWriter may be nil.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{db: db, asyncWriter: asyncWriter}
}

// SetAsyncWriter routes later inserts through w. The writer's handler is
// usually r.AsyncWriteHandler(), so it is attached after construction.
func (r *Repository) SetAsyncWriter(w *AsyncWriter) {
	r.asyncWriter = w
}

const insertJobRecord = `
	INSERT INTO job_history (
		record_id, job_id, source_kind, source_ref, target_language,
		phase, status, recognized_text, translated_text, failure_reason,
		error_message, status_code, duration_ms, submitted_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertJobRecord stores rec. It returns the row id, or 0 when the write
// was queued.
func (r *Repository) InsertJobRecord(ctx context.Context, rec JobRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	if rec.RecordID == "" {
		return 0, errors.New("record id is required")
	}

	if r.asyncWriter != nil && r.asyncWriter.IsStarted() {
		if r.asyncWriter.Write(rec) {
			return 0, nil
		}
		// Queue full: write synchronously.
	}
	return r.insert(ctx, rec)
}

func (r *Repository) insert(ctx context.Context, rec JobRecord) (int64, error) {
	result, err := r.db.ExecContext(ctx, insertJobRecord,
		rec.RecordID,
		nullString(rec.JobID),
		rec.SourceKind,
		rec.SourceRef,
		rec.TargetLanguage,
		rec.Phase,
		nullString(rec.Status),
		nullString(rec.RecognizedText),
		nullString(rec.TranslatedText),
		nullString(rec.FailureReason),
		nullString(rec.ErrorMessage),
		rec.StatusCode,
		rec.DurationMS,
		rec.SubmittedAt.UTC().Format(timeLayout),
		rec.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// AsyncWriteHandler returns the WriteHandler that performs queued inserts.
func (r *Repository) AsyncWriteHandler() WriteHandler {
	return func(ctx context.Context, op WriteOperation) error {
		rec, ok := op.Data.(JobRecord)
		if !ok {
			return fmt.Errorf("invalid operation type %T: expected JobRecord", op.Data)
		}
		_, err := r.insert(ctx, rec)
		return err
	}
}

const selectJobRecord = `
	SELECT id, record_id, COALESCE(job_id, ''), source_kind, source_ref, target_language,
	       phase, COALESCE(status, ''), COALESCE(recognized_text, ''), COALESCE(translated_text, ''),
	       COALESCE(failure_reason, ''), COALESCE(error_message, ''), status_code, duration_ms,
	       submitted_at, finished_at
	FROM job_history`

// QueryRecent returns up to limit records, most recently finished first.
func (r *Repository) QueryRecent(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.query(ctx, selectJobRecord+` ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
}

// Count returns the number of stored records.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT COUNT(*) FROM job_history`)
	if err != nil {
		return 0, fmt.Errorf("failed to count job records: %w", err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan job record count: %w", err)
		}
	}
	return count, rows.Err()
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]JobRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var (
			rec                     JobRecord
			submittedAt, finishedAt string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.RecordID,
			&rec.JobID,
			&rec.SourceKind,
			&rec.SourceRef,
			&rec.TargetLanguage,
			&rec.Phase,
			&rec.Status,
			&rec.RecognizedText,
			&rec.TranslatedText,
			&rec.FailureReason,
			&rec.ErrorMessage,
			&rec.StatusCode,
			&rec.DurationMS,
			&submittedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		rec.SubmittedAt, _ = time.Parse(timeLayout, submittedAt)
		rec.FinishedAt, _ = time.Parse(timeLayout, finishedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job history rows: %w", err)
	}
	return records, nil
}

func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}
	return s
}
