package digitize

import (
	"context"
	"time"

	"digitizer/logging"
)

// API is the transport the Tracker needs.
type API interface {
	SubmitAPI
	ResultAPI
}

// TrackerConfig controls polling cadence and upload limits.
type TrackerConfig struct {
	PollInterval  time.Duration // <= 0 means 3s
	MaxUploadSize int64 // <= 0 disables the check
}

// Tracker owns one Session, one Submitter and one Poller, so at most one
// job is tracked at a time.
//
// Example:
//
//	tracker, err := digitize.NewTracker(client, digitize.TrackerConfig{PollInterval: 3 * time.Second}, logger)
//	if err != nil {
//	    return err
//	}
//	id, err := tracker.Submit(ctx, digitize.URLSource("https://example.com/note.png", "en"))
//	if err != nil {
//	    return err
//	}
//	view, err := tracker.Wait(ctx)
type Tracker struct {
	session   *Session
	submitter *Submitter
	poller    *Poller
}

// NewTracker wires a Tracker around api.
func NewTracker(api API, cfg TrackerConfig, logger *logging.Logger) (*Tracker, error) {
	if api == nil {
		return nil, ErrNilAPI
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	session := NewSession()
	poller, err := NewPoller(api, session, cfg.PollInterval, logger)
	if err != nil {
		return nil, err
	}
	submitter, err := NewSubmitter(api, session, poller, cfg.MaxUploadSize, logger)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		session:   session,
		submitter: submitter,
		poller:    poller,
	}, nil
}

// Submit creates a job for src and starts polling it. It returns the job
// id once the server accepted the submission. ctx bounds both the
// submission and the polling that follows.
func (t *Tracker) Submit(ctx context.Context, src Source) (string, error) {
	job, ticket, err := t.submitter.Submit(ctx, src)
	if err != nil {
		return "", err
	}
	if !t.poller.Start(ctx, ticket, job.ID) {
		return "", ErrSuperseded
	}
	return job.ID, nil
}

// Stop cancels polling. The session keeps its last state and no later
// result is applied to it.
func (t *Tracker) Stop() {
	t.poller.Stop()
}

// View returns the current session state.
func (t *Tracker) View() View {
	return t.session.View()
}

// Observe registers fn for every session change.
func (t *Tracker) Observe(fn Observer) {
	t.session.Observe(fn)
}

// Wait blocks until the active poll run ends or ctx is done, then returns
// the session state.
func (t *Tracker) Wait(ctx context.Context) (View, error) {
	select {
	case <-t.poller.Done():
		return t.session.View(), nil
	case <-ctx.Done():
		return t.session.View(), ctx.Err()
	}
}
