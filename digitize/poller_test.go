package digitize

import (
	"context"
	"errors"
	"testing"
	"time"

	"digitizer/logging"
)

const testInterval = 5 * time.Millisecond

func newPolling(t *testing.T, api ResultAPI, jobID string) (*Poller, *Session, Ticket) {
	t.Helper()
	session := NewSession()
	p, err := NewPoller(api, session, testInterval, logging.NewNop())
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}
	ticket := session.Begin(urlInfo)
	session.Track(ticket, Job{ID: jobID})
	return p, session, ticket
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll run to end")
	}
}

func TestNewPollerValidation(t *testing.T) {
	if _, err := NewPoller(nil, NewSession(), time.Second, logging.NewNop()); !errors.Is(err, ErrNilAPI) {
		t.Errorf("nil api: %v", err)
	}
	if _, err := NewPoller(newFakeAPI(), nil, time.Second, logging.NewNop()); !errors.Is(err, ErrNilSession) {
		t.Errorf("nil session: %v", err)
	}
	if _, err := NewPoller(newFakeAPI(), NewSession(), time.Second, nil); !errors.Is(err, ErrNilLogger) {
		t.Errorf("nil logger: %v", err)
	}

	p, err := NewPoller(newFakeAPI(), NewSession(), 0, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != 3*time.Second {
		t.Errorf("default interval = %v, want 3s", p.interval)
	}
}

func TestPollerRunsToCompletion(t *testing.T) {
	api := newFakeAPI().on("job123",
		resultStep{job: Job{Status: StatusProcessing}},
		resultStep{job: Job{Status: StatusCompleted, RecognizedText: strPtr("Hola"), TranslatedText: strPtr("Hello")}},
	)
	p, session, ticket := newPolling(t, api, "job123")

	if !p.Start(context.Background(), ticket, "job123") {
		t.Fatal("Start() = false")
	}
	waitDone(t, p.Done())

	v := session.View()
	if v.Phase != PhaseCompleted || v.Progress != 100 || v.Busy {
		t.Errorf("view = %+v", v)
	}
	if p.active() {
		t.Error("poller still active after terminal status")
	}

	time.Sleep(5 * testInterval)
	if calls := api.calls(); len(calls) != 2 {
		t.Errorf("Result called %d times, want exactly 2 (no requests after terminal)", len(calls))
	}
}

func TestPollerFirstFetchWaitsOneInterval(t *testing.T) {
	api := newFakeAPI()
	session := NewSession()
	p, err := NewPoller(api, session, time.Hour, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ticket := session.Begin(urlInfo)
	session.Track(ticket, Job{ID: "A"})

	p.Start(context.Background(), ticket, "A")
	defer p.Stop()

	time.Sleep(20 * time.Millisecond)
	if n := len(api.calls()); n != 0 {
		t.Errorf("Result called %d times before the first interval elapsed", n)
	}
}

func TestPollerFetchErrorIsNotRetried(t *testing.T) {
	api := newFakeAPI().on("A",
		resultStep{job: Job{Status: StatusProcessing}},
		resultStep{err: &ResponseError{StatusCode: 500, Body: []byte(`{"message":"Database unavailable"}`)}},
	)
	p, session, ticket := newPolling(t, api, "A")

	p.Start(context.Background(), ticket, "A")
	waitDone(t, p.Done())

	v := session.View()
	if v.Phase != PhaseFailed || v.Busy || v.Error != "Database unavailable" {
		t.Errorf("view = %+v", v)
	}
	if v.LastSnapshot == nil || v.LastSnapshot.Status != StatusProcessing {
		t.Errorf("LastSnapshot = %+v, want processing", v.LastSnapshot)
	}
	if want := Estimate(StatusProcessing); v.Progress != want {
		t.Errorf("Progress = %d, want %d after a failed fetch", v.Progress, want)
	}

	time.Sleep(5 * testInterval)
	if n := len(api.calls()); n != 2 {
		t.Errorf("Result called %d times, want 2", n)
	}
}

func TestPollerStopHaltsRequests(t *testing.T) {
	api := newFakeAPI() // always pending
	p, session, ticket := newPolling(t, api, "A")

	p.Start(context.Background(), ticket, "A")
	time.Sleep(4 * testInterval)
	p.Stop()
	p.Stop() // idempotent

	before := len(api.calls())
	time.Sleep(5 * testInterval)
	if after := len(api.calls()); after != before {
		t.Errorf("Result called %d more times after Stop", after-before)
	}

	v := session.View()
	if v.Phase != PhasePolling || v.ActiveJobID != "A" {
		t.Errorf("Stop should leave session state as is: %+v", v)
	}
}

func TestPollerDiscardsInFlightResultAfterStop(t *testing.T) {
	api := newFakeAPI().on("A", resultStep{job: Job{Status: StatusCompleted}})
	gate := api.gate("A")
	p, session, ticket := newPolling(t, api, "A")

	p.Start(context.Background(), ticket, "A")
	done := p.Done()

	deadline := time.Now().Add(2 * time.Second)
	for len(api.calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	p.Stop()
	close(gate)
	waitDone(t, done)

	if v := session.View(); v.Phase != PhasePolling || v.Progress != 5 {
		t.Errorf("result applied after Stop: %+v", v)
	}
}

func TestPollerStaleTicketEndsRun(t *testing.T) {
	api := newFakeAPI().on("A", resultStep{job: Job{Status: StatusCompleted}})
	gate := api.gate("A")
	p, session, ticket := newPolling(t, api, "A")

	p.Start(context.Background(), ticket, "A")
	done := p.Done()

	for len(api.calls()) == 0 {
		time.Sleep(time.Millisecond)
	}

	// A newer submission begins without stopping this poller.
	session.Begin(urlInfo)
	close(gate)
	waitDone(t, done)

	if v := session.View(); v.Phase != PhaseSubmitting || v.LastSnapshot != nil {
		t.Errorf("stale result applied: %+v", v)
	}
}

func TestPollerStartRejectsStaleTicket(t *testing.T) {
	api := newFakeAPI()
	p, session, old := newPolling(t, api, "A")
	session.Begin(urlInfo)

	if p.Start(context.Background(), old, "A") {
		t.Error("Start() with stale ticket = true")
	}
	if p.active() {
		t.Error("poller active after rejected Start")
	}
	if p.Start(context.Background(), session.generation, "") {
		t.Error("Start() with empty job id = true")
	}
}

func TestPollerStaleStartKeepsCurrentRun(t *testing.T) {
	api := newFakeAPI().on("B",
		resultStep{job: Job{Status: StatusProcessing}},
		resultStep{job: Job{Status: StatusCompleted}},
	)
	p, session, stale := newPolling(t, api, "A")

	current := session.Begin(urlInfo)
	session.Track(current, Job{ID: "B"})
	if !p.Start(context.Background(), current, "B") {
		t.Fatal("Start() for the current job = false")
	}
	done := p.Done()

	// A late Start for the superseded submission must not touch B's run.
	if p.Start(context.Background(), stale, "A") {
		t.Error("Start() with stale ticket = true")
	}
	waitDone(t, done)

	v := session.View()
	if v.Phase != PhaseCompleted || v.Busy || v.ActiveJobID != "B" {
		t.Errorf("view = %+v, want B completed", v)
	}
	for _, id := range api.calls() {
		if id != "B" {
			t.Errorf("request for %q: %v", id, api.calls())
		}
	}
}

func TestPollerStartReplacesRun(t *testing.T) {
	api := newFakeAPI()
	p, session, first := newPolling(t, api, "A")

	p.Start(context.Background(), first, "A")
	firstDone := p.Done()

	second := session.Begin(urlInfo)
	session.Track(second, Job{ID: "B"})
	p.Start(context.Background(), second, "B")
	defer p.Stop()

	waitDone(t, firstDone)
	settled := len(api.calls())

	time.Sleep(5 * testInterval)
	calls := api.calls()
	for _, id := range calls[settled:] {
		if id != "B" {
			t.Fatalf("request for %q after the run for A ended: %v", id, calls)
		}
	}
	if len(calls) == settled {
		t.Errorf("no requests for B: %v", calls)
	}
}

func TestPollerContextCancelEndsRun(t *testing.T) {
	api := newFakeAPI()
	p, session, ticket := newPolling(t, api, "A")

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, ticket, "A")
	done := p.Done()
	cancel()
	waitDone(t, done)

	if p.active() {
		t.Error("poller active after context cancel")
	}
	if v := session.View(); v.Phase != PhasePolling {
		t.Errorf("context cancel should not fail the job: %+v", v)
	}
}

func TestPollerDoneWithoutRun(t *testing.T) {
	p, _, _ := newPolling(t, newFakeAPI(), "A")
	select {
	case <-p.Done():
	default:
		t.Error("Done() without a run should be closed")
	}
}
