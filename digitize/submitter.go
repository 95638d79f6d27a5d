package digitize

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"digitizer/logging"
)

// SubmitAPI creates digitization jobs. Implementations return the
// server-assigned job id, or an error (a *ResponseError when the server
// answered).
type SubmitAPI interface {
	SubmitURL(ctx context.Context, imageURL, targetLanguage string) (string, error)
	SubmitUpload(ctx context.Context, file File, targetLanguage string) (string, error)
}

// Stopper is the part of the Poller a Submitter needs.
type Stopper interface {
	Stop()
}

// Submitter validates a Source, cancels any running poll, and creates the
// job on the server. It never polls.
type Submitter struct {
	api           SubmitAPI
	session       *Session
	poller        Stopper
	maxUploadSize int64
	logger        *logging.Logger
}

// NewSubmitter creates a Submitter. maxUploadSize <= 0 disables the upload
// size check.
func NewSubmitter(api SubmitAPI, session *Session, poller Stopper, maxUploadSize int64, logger *logging.Logger) (*Submitter, error) {
	if api == nil {
		return nil, ErrNilAPI
	}
	if session == nil {
		return nil, ErrNilSession
	}
	if poller == nil {
		return nil, ErrNilPoller
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Submitter{
		api:           api,
		session:       session,
		poller:        poller,
		maxUploadSize: maxUploadSize,
		logger:        logger.Named("submitter"),
	}, nil
}

// Submit creates a job for src.
//
// Validation failures return a *ValidationError with no state change.
// Otherwise the session is reset to Submitting (invalidating every earlier
// submission), the active poll is stopped, and exactly one API call is made.
// On failure the classified *SubmissionError is recorded and returned. On
// success the session moves to Polling and the pending Job is returned with
// its ticket; the caller starts polling.
//
// If another Submit began while this one was in flight, the job id is
// dropped and ErrSuperseded is returned.
func (s *Submitter) Submit(ctx context.Context, src Source) (Job, Ticket, error) {
	if err := src.Validate(s.maxUploadSize); err != nil {
		return Job{}, 0, err
	}

	info := src.Info()
	ticket := s.session.Begin(info)
	s.poller.Stop()

	s.logger.Info("submitting digitization job",
		zap.String("source_kind", string(info.Kind)),
		zap.String("source", info.Ref),
		zap.String("target_language", info.TargetLanguage))

	var (
		jobID string
		err   error
	)
	switch info.Kind {
	case SourceUpload:
		jobID, err = s.api.SubmitUpload(ctx, *src.File, src.TargetLanguage)
	default:
		jobID, err = s.api.SubmitURL(ctx, info.Ref, src.TargetLanguage)
	}
	if err == nil && jobID == "" {
		err = errors.New("digitize: server returned an empty job id")
	}

	if err != nil {
		subErr := ClassifySubmission(err)
		if !s.session.FailSubmission(ticket, subErr) {
			s.logger.Debug("dropping failure of superseded submission", zap.Error(err))
		}
		s.logger.Warn("submission failed",
			zap.Int("status_code", subErr.StatusCode),
			zap.String("message", subErr.Message),
			zap.Error(err))
		return Job{}, 0, subErr
	}

	job := Job{ID: jobID, Status: StatusPending}
	if !s.session.Track(ticket, job) {
		s.logger.Info("dropping job id of superseded submission", zap.String("job_id", jobID))
		return Job{}, 0, ErrSuperseded
	}

	s.logger.Info("job accepted", zap.String("job_id", jobID))
	return job, ticket, nil
}
