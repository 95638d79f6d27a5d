// Package validation implements the preflight checks behind
// "digitizer -check": configuration, history storage and API reachability,
// printed as a colored checklist.
package validation

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// StepStatus is the outcome of one check.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the lower-case status name.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is what a check reports.
type Outcome struct {
	Status  StepStatus
	Message string
	Err     error
}

// Passed, Warned, Failed and Skipped build Outcomes.
func Passed(format string, args ...any) Outcome {
	return Outcome{Status: StepPassed, Message: fmt.Sprintf(format, args...)}
}

func Warned(message string, err error) Outcome {
	return Outcome{Status: StepWarning, Message: message, Err: err}
}

func Failed(message string, err error) Outcome {
	return Outcome{Status: StepFailed, Message: message, Err: err}
}

func Skipped(message string) Outcome {
	return Outcome{Status: StepSkipped, Message: message}
}

// Check is one named preflight step. A check with NeedsPrevious is skipped
// when any earlier check failed.
type Check struct {
	Name          string
	NeedsPrevious bool
	Run           func(ctx context.Context) Outcome
}

// Step is a finished check.
type Step struct {
	Name    string
	Status  StepStatus
	Message string
	Err     error
	Latency time.Duration
}

// Result summarizes a suite run.
type Result struct {
	Steps    []Step
	Passed   int
	Failed   int
	Warnings int
	Skipped  int
	Duration time.Duration
}

// Success reports whether no check failed. Warnings do not fail the suite.
func (r Result) Success() bool {
	return r.Failed == 0
}

// FirstError returns the error of the first failed step, or nil.
func (r Result) FirstError() error {
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Err != nil {
			return step.Err
		}
	}
	return nil
}

// Summary returns e.g. "Preflight passed: 4/5 checks passed, 1 warnings (took 12ms)".
func (r Result) Summary() string {
	var sb strings.Builder
	if r.Success() {
		sb.WriteString("Preflight passed: ")
	} else {
		sb.WriteString("Preflight failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.Passed, len(r.Steps))
	if r.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.Failed)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	fmt.Fprintf(&sb, " (took %v)", r.Duration.Round(time.Millisecond))
	return sb.String()
}

// Suite runs checks in order and prints each result as it completes.
type Suite struct {
	output io.Writer
	title  string
}

// NewSuite creates a Suite printing to output. A nil output prints nothing.
func NewSuite(output io.Writer, title string) *Suite {
	if output == nil {
		output = io.Discard
	}
	return &Suite{output: output, title: title}
}

// Run executes checks and returns the collected result.
func (s *Suite) Run(ctx context.Context, checks []Check) Result {
	start := time.Now()
	s.printHeader()

	result := Result{Steps: make([]Step, 0, len(checks))}
	for _, check := range checks {
		var step Step
		switch {
		case check.NeedsPrevious && result.Failed > 0:
			step = Step{Name: check.Name, Status: StepSkipped, Message: "skipped after earlier failure"}
		case ctx.Err() != nil:
			step = Step{Name: check.Name, Status: StepSkipped, Message: "cancelled"}
		default:
			step = runCheck(ctx, check)
		}

		switch step.Status {
		case StepPassed:
			result.Passed++
		case StepFailed:
			result.Failed++
		case StepWarning:
			result.Warnings++
		case StepSkipped:
			result.Skipped++
		}
		result.Steps = append(result.Steps, step)
		s.printStep(step)
	}

	result.Duration = time.Since(start)
	s.printSummary(result)
	return result
}

func runCheck(ctx context.Context, check Check) Step {
	start := time.Now()
	out := check.Run(ctx)
	return Step{
		Name:    check.Name,
		Status:  out.Status,
		Message: out.Message,
		Err:     out.Err,
		Latency: time.Since(start),
	}
}

func (s *Suite) printHeader() {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", s.title)
	fmt.Fprintln(s.output)
}

func (s *Suite) printStep(step Step) {
	var icon string
	var clr *color.Color
	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status != StepPassed && step.Status != StepSkipped && step.Err != nil {
		clr.Fprintf(s.output, "    └─ %s\n", step.Err.Error())
	}
}

func (s *Suite) printSummary(r Result) {
	fmt.Fprintln(s.output)
	clr := color.New(color.FgGreen, color.Bold)
	if !r.Success() {
		clr = color.New(color.FgRed, color.Bold)
	}
	clr.Fprintf(s.output, "━━━ %s ━━━\n", r.Summary())
	fmt.Fprintln(s.output)
}
