package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"digitizer/digitize"
	"digitizer/logging"
)

// Recorder writes one JobRecord per finished submission. Register Observe
// with digitize.Tracker.Observe.
type Recorder struct {
	repo   *Repository
	logger *logging.Logger
}

// NewRecorder creates a Recorder writing through repo.
func NewRecorder(repo *Repository, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{repo: repo, logger: logger.Named("history")}
}

// Observe records v if its phase is terminal and ignores it otherwise.
// The session reports each terminal phase once, so each submission yields
// at most one record.
func (r *Recorder) Observe(v digitize.View) {
	if !v.Phase.IsTerminal() {
		return
	}

	rec := RecordFromView(v)
	if _, err := r.repo.InsertJobRecord(context.Background(), rec); err != nil {
		r.logger.Warn("failed to record job history",
			zap.String("job_id", rec.JobID),
			zap.Error(err))
		return
	}
	r.logger.Debug("job history recorded",
		zap.String("record_id", rec.RecordID),
		zap.String("job_id", rec.JobID),
		zap.String("phase", rec.Phase))
}

// RecordFromView converts a terminal view into a JobRecord with a fresh
// record id.
func RecordFromView(v digitize.View) JobRecord {
	rec := JobRecord{
		RecordID:       uuid.NewString(),
		JobID:          v.ActiveJobID,
		SourceKind:     string(v.Source.Kind),
		SourceRef:      v.Source.Ref,
		TargetLanguage: v.Source.TargetLanguage,
		Phase:          string(v.Phase),
		ErrorMessage:   v.Error,
		StatusCode:     v.StatusCode(),
		DurationMS:     v.Duration().Milliseconds(),
		SubmittedAt:    v.SubmittedAt,
		FinishedAt:     v.FinishedAt,
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	if job := v.LastSnapshot; job != nil {
		rec.Status = string(job.Status)
		rec.RecognizedText = deref(job.RecognizedText)
		rec.TranslatedText = deref(job.TranslatedText)
		rec.FailureReason = deref(job.FailureReason)
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
