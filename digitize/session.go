package digitize

import (
	"errors"
	"sync"
	"time"
)

// Phase is the tracker's position in the submission state machine.
//
//	Idle ─submit→ Submitting ─ok→ Polling ─terminal→ Completed | Failed
//	                    └─error→ SubmissionFailed   └─poll error→ Failed
//
// Any phase returns to Submitting on a new submit.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseSubmitting       Phase = "submitting"
	PhasePolling          Phase = "polling"
	PhaseCompleted        Phase = "completed"
	PhaseFailed           Phase = "failed"
	PhaseSubmissionFailed Phase = "submission_failed"
)

// IsTerminal reports whether the phase ends a submission.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseSubmissionFailed
}

// Ticket identifies one submission. Every Begin issues a new ticket and
// invalidates all earlier ones; mutations carrying a stale ticket are
// dropped.
type Ticket uint64

// View is an immutable copy of the session state.
type View struct {
	Phase        Phase      `json:"phase" yaml:"phase"`
	ActiveJobID  string     `json:"activeJobId,omitempty" yaml:"activeJobId,omitempty"`
	LastSnapshot *Job       `json:"lastSnapshot,omitempty" yaml:"lastSnapshot,omitempty"`
	Progress     int        `json:"progress" yaml:"progress"`
	Busy         bool       `json:"busy" yaml:"busy"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`
	Err          error      `json:"-" yaml:"-"`
	Source       SourceInfo `json:"source" yaml:"source"`
	SubmittedAt  time.Time  `json:"submittedAt,omitempty" yaml:"submittedAt,omitempty"`
	FinishedAt   time.Time  `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
}

// Duration is the time from submission to the terminal phase, or zero
// while the job is still running.
func (v View) Duration() time.Duration {
	if v.SubmittedAt.IsZero() || v.FinishedAt.IsZero() {
		return 0
	}
	return v.FinishedAt.Sub(v.SubmittedAt)
}

// StatusCode returns the HTTP status attached to the view's error, if any.
func (v View) StatusCode() int {
	var subErr *SubmissionError
	if errors.As(v.Err, &subErr) {
		return subErr.StatusCode
	}
	var pollErr *PollError
	if errors.As(v.Err, &pollErr) {
		return pollErr.StatusCode
	}
	return 0
}

// Observer receives a View after every accepted mutation, in mutation
// order. Observers run on the mutating goroutine and must not mutate the
// session.
type Observer func(View)

// Session is the single source of truth for the tracked job. All mutations
// go through a ticket so that results belonging to a superseded submission
// or a stale job id are discarded.
type Session struct {
	mu         sync.Mutex
	generation Ticket
	state      View

	// notifyMu keeps observer calls in mutation order.
	notifyMu  sync.Mutex
	observers []Observer

	now func() time.Time
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{
		state: View{Phase: PhaseIdle},
		now:   time.Now,
	}
}

// Observe registers fn for all future mutations.
func (s *Session) Observe(fn Observer) {
	if fn == nil {
		return
	}
	s.notifyMu.Lock()
	s.observers = append(s.observers, fn)
	s.notifyMu.Unlock()
}

// View returns a copy of the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// IsCurrent reports whether t is the latest ticket.
func (s *Session) IsCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t == s.generation
}

// Begin starts a new submission: the error and snapshot are cleared, the
// session is busy at SubmittingProgress, and every earlier ticket becomes
// stale.
func (s *Session) Begin(source SourceInfo) Ticket {
	s.mu.Lock()
	s.generation++
	t := s.generation
	s.state = View{
		Phase:       PhaseSubmitting,
		Progress:    SubmittingProgress,
		Busy:        true,
		Source:      source,
		SubmittedAt: s.now(),
	}
	s.commit()
	return t
}

// Track records the id the server assigned to the submission and moves to
// polling. It returns false if t is stale.
func (s *Session) Track(t Ticket, job Job) bool {
	s.mu.Lock()
	if t != s.generation || s.state.Phase != PhaseSubmitting {
		s.mu.Unlock()
		return false
	}

	if job.Status == "" {
		job.Status = StatusPending
	}
	s.state.ActiveJobID = job.ID
	s.state.LastSnapshot = &job
	s.state.Progress = max(s.state.Progress, Estimate(job.Status))
	s.state.Phase = PhasePolling
	s.commit()
	return true
}

// FailSubmission records a failed job creation. It returns false if t is
// stale.
func (s *Session) FailSubmission(t Ticket, err *SubmissionError) bool {
	s.mu.Lock()
	if t != s.generation || s.state.Phase != PhaseSubmitting {
		s.mu.Unlock()
		return false
	}

	s.state.Phase = PhaseSubmissionFailed
	s.state.Busy = false
	s.state.Error = err.Message
	s.state.Err = err
	s.state.FinishedAt = s.now()
	s.commit()
	return true
}

// Apply folds a poll result into the session. The result is dropped unless
// t is current, the session is polling, and job.ID is the active job id.
// Progress never decreases; a terminal status sets it to 100 and releases
// the busy flag.
func (s *Session) Apply(t Ticket, job Job) bool {
	s.mu.Lock()
	if !s.acceptsPoll(t, job.ID) {
		s.mu.Unlock()
		return false
	}

	s.state.LastSnapshot = &job
	s.state.Progress = max(s.state.Progress, Estimate(job.Status))
	switch job.Status {
	case StatusCompleted:
		s.finish(PhaseCompleted)
	case StatusFailed:
		s.finish(PhaseFailed)
	}
	s.commit()
	return true
}

// FailPoll records a failed status fetch for the active job. The last
// snapshot and progress are kept. It returns false if the failure is stale.
func (s *Session) FailPoll(t Ticket, err *PollError) bool {
	s.mu.Lock()
	if !s.acceptsPoll(t, err.JobID) {
		s.mu.Unlock()
		return false
	}

	s.state.Error = err.Message
	s.state.Err = err
	s.halt(PhaseFailed)
	s.commit()
	return true
}

// acceptsPoll must be called with mu held.
func (s *Session) acceptsPoll(t Ticket, jobID string) bool {
	return t == s.generation &&
		s.state.Phase == PhasePolling &&
		jobID != "" &&
		jobID == s.state.ActiveJobID
}

// finish ends the job on a terminal status. It must be called with mu held.
func (s *Session) finish(phase Phase) {
	s.halt(phase)
	s.state.Progress = 100
}

// halt ends the job without touching progress. It must be called with mu held.
func (s *Session) halt(phase Phase) {
	s.state.Phase = phase
	s.state.Busy = false
	s.state.FinishedAt = s.now()
}

// snapshot must be called with mu held.
func (s *Session) snapshot() View {
	v := s.state
	if v.LastSnapshot != nil {
		job := *v.LastSnapshot
		v.LastSnapshot = &job
	}
	return v
}

// commit must be called with mu held; it releases mu and notifies the
// observers with the committed view.
func (s *Session) commit() {
	v := s.snapshot()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range s.observers {
		fn(v)
	}
}
