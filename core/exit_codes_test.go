package core

import (
	"os"
	"syscall"
	"testing"
)

func TestExitCodeValues(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		value int
	}{
		{"ExitCodeSuccess", ExitCodeSuccess, 0},
		{"ExitCodeError", ExitCodeError, 1},
		{"ExitCodeUsage", ExitCodeUsage, 2},
		{"ExitCodeJobFailed", ExitCodeJobFailed, 3},
		{"ExitCodeSIGINT", ExitCodeSIGINT, 130},
		{"ExitCodeSIGTERM", ExitCodeSIGTERM, 143},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.value {
				t.Errorf("%s = %d, want %d", tt.name, tt.code, tt.value)
			}
		})
	}
}

func TestExitCodeName(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{ExitCodeSuccess, "success"},
		{ExitCodeUsage, "usage"},
		{ExitCodeJobFailed, "job failed"},
		{ExitCodeSIGINT, "interrupted (SIGINT)"},
		{42, "unknown"},
	}

	for _, tt := range tests {
		if got := ExitCodeName(tt.code); got != tt.want {
			t.Errorf("ExitCodeName(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestExitCodeForSignal(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want int
	}{
		{os.Interrupt, ExitCodeSIGINT},
		{syscall.SIGINT, ExitCodeSIGINT},
		{syscall.SIGTERM, ExitCodeSIGTERM},
		{syscall.SIGHUP, ExitCodeError},
	}

	for _, tt := range tests {
		if got := ExitCodeForSignal(tt.sig); got != tt.want {
			t.Errorf("ExitCodeForSignal(%v) = %d, want %d", tt.sig, got, tt.want)
		}
	}
}
