package shutdown

import (
	"os"
	"syscall"
	"testing"
)

func TestSignalCounter(t *testing.T) {
	var forced os.Signal
	counter := NewSignalCounter(2, func(first os.Signal) { forced = first })

	if counter.First() != nil {
		t.Error("First() before any signal should be nil")
	}

	if got := counter.Record(syscall.SIGTERM); got != 1 {
		t.Errorf("Record() = %d, want 1", got)
	}
	if forced != nil {
		t.Error("onForce called after first signal")
	}

	if got := counter.Record(os.Interrupt); got != 2 {
		t.Errorf("Record() = %d, want 2", got)
	}
	if forced != syscall.SIGTERM {
		t.Errorf("onForce got %v, want the first signal SIGTERM", forced)
	}
	if counter.First() != syscall.SIGTERM {
		t.Errorf("First() = %v", counter.First())
	}
}

func TestSignalCounterNilCallback(t *testing.T) {
	counter := NewSignalCounter(1, nil)
	if got := counter.Record(os.Interrupt); got != 1 {
		t.Errorf("Record() = %d, want 1", got)
	}
}
