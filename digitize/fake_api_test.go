package digitize

import (
	"context"
	"sync"
)

type resultStep struct {
	job Job
	err error
}

// fakeAPI is an in-memory digitization service. Result steps are consumed
// per job id; the last step repeats once the queue is exhausted.
type fakeAPI struct {
	mu sync.Mutex

	submitIDs   []string
	submitErr   error
	submitCalls int
	uploads     []File
	urls        []string

	results     map[string][]resultStep
	resultCalls []string
	gates       map[string]chan struct{}
}

func newFakeAPI(ids ...string) *fakeAPI {
	return &fakeAPI{
		submitIDs: ids,
		results:   make(map[string][]resultStep),
		gates:     make(map[string]chan struct{}),
	}
}

func (f *fakeAPI) on(id string, steps ...resultStep) *fakeAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = append(f.results[id], steps...)
	return f
}

// gate makes Result for id block until the returned channel is closed.
func (f *fakeAPI) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

func (f *fakeAPI) nextID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if len(f.submitIDs) == 0 {
		return "", nil
	}
	id := f.submitIDs[0]
	f.submitIDs = f.submitIDs[1:]
	return id, nil
}

func (f *fakeAPI) SubmitURL(_ context.Context, imageURL, _ string) (string, error) {
	f.mu.Lock()
	f.urls = append(f.urls, imageURL)
	f.mu.Unlock()
	return f.nextID()
}

func (f *fakeAPI) SubmitUpload(_ context.Context, file File, _ string) (string, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, file)
	f.mu.Unlock()
	return f.nextID()
}

func (f *fakeAPI) Result(ctx context.Context, jobID string) (Job, error) {
	f.mu.Lock()
	f.resultCalls = append(f.resultCalls, jobID)
	gate := f.gates[jobID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	steps := f.results[jobID]
	if len(steps) == 0 {
		return Job{ID: jobID, Status: StatusPending}, nil
	}
	step := steps[0]
	if len(steps) > 1 {
		f.results[jobID] = steps[1:]
	}
	step.job.ID = jobID
	return step.job, step.err
}

func (f *fakeAPI) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resultCalls...)
}

func (f *fakeAPI) submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func strPtr(s string) *string {
	return &s
}
