package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"digitizer/core"
	"digitizer/db"
	"digitizer/digitize"
)

// Output formats accepted by -output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// Status line colors.
var (
	colorSubmitting = color.New(color.FgCyan)
	colorPolling    = color.New(color.FgYellow)
	colorCompleted  = color.New(color.FgGreen, color.Bold)
	colorFailed     = color.New(color.FgRed, color.Bold)
	colorDim        = color.New(color.FgHiBlack)
	colorHeader     = color.New(color.FgCyan, color.Bold)
)

// progressRenderer prints one line per visible change of the session.
// The session calls observers serially, so no locking is needed.
type progressRenderer struct {
	w io.Writer

	printed  bool
	phase    digitize.Phase
	progress int
	status   digitize.Status
}

func newProgressRenderer(w io.Writer) *progressRenderer {
	return &progressRenderer{w: w}
}

// Observe is a digitize.Observer.
func (r *progressRenderer) Observe(v digitize.View) {
	var status digitize.Status
	if v.LastSnapshot != nil {
		status = v.LastSnapshot.Status
	}
	if r.printed && v.Phase == r.phase && v.Progress == r.progress && status == r.status {
		return
	}
	r.printed = true
	r.phase, r.progress, r.status = v.Phase, v.Progress, status

	prefix := fmt.Sprintf("[%3d%%]", v.Progress)

	switch v.Phase {
	case digitize.PhaseSubmitting:
		colorSubmitting.Fprintf(r.w, "%s submitting %s %s", prefix, v.Source.Kind, v.Source.Ref)
		colorDim.Fprintf(r.w, " -> %s\n", v.Source.TargetLanguage)
	case digitize.PhasePolling:
		colorPolling.Fprintf(r.w, "%s %-10s %s\n", prefix, status, v.ActiveJobID)
	case digitize.PhaseCompleted:
		colorCompleted.Fprintf(r.w, "%s ✓ completed %s", prefix, v.ActiveJobID)
		colorDim.Fprintf(r.w, " in %s\n", v.Duration().Round(time.Millisecond))
	case digitize.PhaseFailed:
		colorFailed.Fprintf(r.w, "%s ✗ failed %s: %s\n", prefix, v.ActiveJobID, failureText(v))
	case digitize.PhaseSubmissionFailed:
		colorFailed.Fprintf(r.w, "%s ✗ submission failed: %s\n", prefix, v.Error)
	}
}

// failureText explains a failed phase: the server's reason for a failed
// job, or the poll error.
func failureText(v digitize.View) string {
	if v.Error != "" {
		return v.Error
	}
	if v.LastSnapshot != nil && v.LastSnapshot.FailureReason != nil {
		return *v.LastSnapshot.FailureReason
	}
	return "no reason given"
}

// jobResult is the machine-readable outcome of one run.
type jobResult struct {
	JobID          string              `json:"jobId,omitempty" yaml:"jobId,omitempty"`
	Phase          digitize.Phase      `json:"phase" yaml:"phase"`
	Status         digitize.Status     `json:"status,omitempty" yaml:"status,omitempty"`
	RecognizedText string              `json:"recognizedText,omitempty" yaml:"recognizedText,omitempty"`
	TranslatedText string              `json:"translatedText,omitempty" yaml:"translatedText,omitempty"`
	FailureReason  string              `json:"failureReason,omitempty" yaml:"failureReason,omitempty"`
	Error          string              `json:"error,omitempty" yaml:"error,omitempty"`
	StatusCode     int                 `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Source         digitize.SourceInfo `json:"source" yaml:"source"`
	DurationMS     int64               `json:"durationMs" yaml:"durationMs"`
}

func newJobResult(v digitize.View) jobResult {
	res := jobResult{
		JobID:      v.ActiveJobID,
		Phase:      v.Phase,
		Error:      v.Error,
		StatusCode: v.StatusCode(),
		Source:     v.Source,
		DurationMS: v.Duration().Milliseconds(),
	}
	if job := v.LastSnapshot; job != nil {
		res.Status = job.Status
		res.RecognizedText = deref(job.RecognizedText)
		res.TranslatedText = deref(job.TranslatedText)
		res.FailureReason = deref(job.FailureReason)
	}
	return res
}

type textField struct {
	label, value string
}

func writeResult(w io.Writer, format string, v digitize.View) error {
	res := newJobResult(v)

	switch format {
	case outputJSON:
		return writeJSON(w, res)
	case outputYAML:
		return writeYAML(w, res)
	}

	fields := []textField{
		{"Job", res.JobID},
		{"Phase", string(res.Phase)},
		{"Status", string(res.Status)},
		{"Source", fmt.Sprintf("%s %s", res.Source.Kind, res.Source.Ref)},
		{"Language", res.Source.TargetLanguage},
	}
	if res.DurationMS > 0 {
		fields = append(fields, textField{"Duration", v.Duration().Round(time.Millisecond).String()})
	}
	if res.FailureReason != "" {
		fields = append(fields, textField{"Reason", res.FailureReason})
	}
	if res.Error != "" {
		fields = append(fields, textField{"Error", res.Error})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", f.label, f.value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if res.RecognizedText != "" {
		colorHeader.Fprintln(w, "\nRecognized text:")
		fmt.Fprintln(w, strings.TrimRight(res.RecognizedText, "\n"))
	}
	if res.TranslatedText != "" {
		colorHeader.Fprintf(w, "\nTranslated text (%s):\n", res.Source.TargetLanguage)
		fmt.Fprintln(w, strings.TrimRight(res.TranslatedText, "\n"))
	}
	return nil
}

// writeHistory prints records. Text output notes when the store holds more
// than total shown.
func writeHistory(w io.Writer, format string, records []db.JobRecord, total int64) error {
	switch format {
	case outputJSON:
		if records == nil {
			records = []db.JobRecord{}
		}
		return writeJSON(w, records)
	case outputYAML:
		return writeYAML(w, records)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No jobs recorded yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tJOB\tPHASE\tSTATUS\tLANG\tDURATION\tSOURCE")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.FinishedAt.Local().Format(time.DateTime),
			orDash(rec.JobID),
			rec.Phase,
			orDash(rec.Status),
			rec.TargetLanguage,
			(time.Duration(rec.DurationMS) * time.Millisecond).String(),
			rec.SourceRef)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if total > int64(len(records)) {
		_, err := colorDim.Fprintf(w, "Showing %d of %d jobs.\n", len(records), total)
		return err
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

// describeUpload is shown before a file upload starts.
func describeUpload(name string, size int) string {
	return fmt.Sprintf("uploading %s (%s)", name, core.FormatBytes(int64(size)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
