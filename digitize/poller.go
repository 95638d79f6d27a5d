package digitize

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"digitizer/logging"
)

// ResultAPI fetches the current status of a job.
type ResultAPI interface {
	Result(ctx context.Context, jobID string) (Job, error)
}

// Poller follows exactly one job id at a time. Each run waits one interval,
// fetches the job, applies the result to the session, and repeats until a
// terminal status, a failed fetch, or Stop. Failed fetches are never
// retried.
type Poller struct {
	api      ResultAPI
	session  *Session
	interval time.Duration
	logger   *logging.Logger

	// mu serializes Start, Stop and result application so that no result
	// is applied after Stop returns. Lock order: mu, then session.mu.
	mu  sync.Mutex
	run *pollRun
}

type pollRun struct {
	ticket  Ticket
	jobID   string
	stop    chan struct{}
	done    chan struct{}
	stopped bool // guarded by Poller.mu
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewPoller creates a Poller that waits interval between fetches.
func NewPoller(api ResultAPI, session *Session, interval time.Duration, logger *logging.Logger) (*Poller, error) {
	if api == nil {
		return nil, ErrNilAPI
	}
	if session == nil {
		return nil, ErrNilSession
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}

	return &Poller{
		api:      api,
		session:  session,
		interval: interval,
		logger:   logger.Named("poller"),
	}, nil
}

// Start begins polling jobID for the submission identified by t, replacing
// any previous run. When t is no longer current Start returns false and
// leaves the active run alone: it belongs to a newer submission.
//
// ctx bounds the whole run, including in-flight fetches.
func (p *Poller) Start(ctx context.Context, t Ticket, jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if jobID == "" || !p.session.IsCurrent(t) {
		return false
	}
	p.stopLocked()

	run := &pollRun{
		ticket: t,
		jobID:  jobID,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.run = run

	p.logger.Debug("polling started",
		zap.String("job_id", jobID),
		zap.Duration("interval", p.interval))

	go p.loop(ctx, run)
	return true
}

// Stop cancels the scheduled fetch of the active run. A fetch already in
// flight is not aborted, but its result is discarded. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	run := p.run
	if run == nil {
		return
	}
	p.run = nil
	if !run.stopped {
		run.stopped = true
		close(run.stop)
		p.logger.Debug("polling stopped", zap.String("job_id", run.jobID))
	}
}

// active reports whether a run is in progress.
func (p *Poller) active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run != nil
}

// Done returns a channel closed when the active run ends. With no active
// run the channel is already closed.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == nil {
		return closedChan
	}
	return p.run.done
}

func (p *Poller) loop(ctx context.Context, run *pollRun) {
	defer close(run.done)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-run.stop:
			return
		case <-ctx.Done():
			p.end(run)
			return
		case <-timer.C:
		}
		if !p.live(run) {
			return
		}

		job, err := p.api.Result(ctx, run.jobID)
		if !p.apply(ctx, run, job, err) {
			return
		}
		timer.Reset(p.interval)
	}
}

// apply folds one fetch into the session and reports whether the run
// continues.
func (p *Poller) apply(ctx context.Context, run *pollRun, job Job, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := p.logger.With(zap.String("job_id", run.jobID))

	if run.stopped {
		log.Debug("discarding result of stopped poll")
		return false
	}
	if ctx.Err() != nil {
		log.Debug("poll context done", zap.Error(ctx.Err()))
		p.endLocked(run)
		return false
	}

	if err != nil {
		pollErr := ClassifyPoll(run.jobID, err)
		if p.session.FailPoll(run.ticket, pollErr) {
			log.Warn("status fetch failed, polling stopped",
				zap.Int("status_code", pollErr.StatusCode),
				zap.String("message", pollErr.Message),
				zap.Error(err))
		}
		p.endLocked(run)
		return false
	}

	job.ID = run.jobID
	if !p.session.Apply(run.ticket, job) {
		log.Debug("discarding stale result", zap.String("status", string(job.Status)))
		p.endLocked(run)
		return false
	}

	log.Debug("status fetched", zap.String("status", string(job.Status)))
	if job.Status.IsTerminal() {
		log.Info("job finished", zap.String("status", string(job.Status)))
		p.endLocked(run)
		return false
	}
	return true
}

func (p *Poller) live(run *pollRun) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !run.stopped
}

func (p *Poller) end(run *pollRun) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLocked(run)
}

func (p *Poller) endLocked(run *pollRun) {
	run.stopped = true
	if p.run == run {
		p.run = nil
	}
}
