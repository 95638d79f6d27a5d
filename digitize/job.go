// Package digitize implements the client-side job tracking core for the
// image digitization service: submitting a job, correlating it by id,
// polling its status on a fixed interval and folding every result into a
// single Session.
//
// Components (leaves first):
//   - Estimate: status to progress mapping
//   - ClassifySubmission / ClassifyPoll: failure to display message
//   - Session: the single source of truth for one tracked job
//   - Submitter: validates a Source and creates the job
//   - Poller: the one timer that follows the active job id
//   - Tracker: wires one Submitter and one Poller to one Session
package digitize

import (
	"fmt"
	"strings"

	"digitizer/core"
)

// Status is the server-side state of a job. Statuses progress
// pending → processing → {completed | failed} and never regress.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValid reports whether s is one of the four known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions can follow s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// Job is the client's projection of a server job. Optional texts are nil
// until the server provides them.
type Job struct {
	ID             string  `json:"id" yaml:"id"`
	Status         Status  `json:"status" yaml:"status"`
	RecognizedText *string `json:"recognizedText" yaml:"recognizedText"`
	TranslatedText *string `json:"translatedText" yaml:"translatedText"`
	FailureReason  *string `json:"failureReason" yaml:"failureReason"`
}

// SourceKind distinguishes the two submission endpoints.
type SourceKind string

const (
	SourceURL    SourceKind = "url"
	SourceUpload SourceKind = "upload"
)

// File is an image selected for upload.
type File struct {
	Name string
	Data []byte
}

// Source is what the user asks to digitize: either an image URL or a file,
// plus the language the recognized text is translated into.
type Source struct {
	ImageURL       string
	File           *File
	TargetLanguage string
}

// URLSource builds a Source for the URL endpoint.
func URLSource(imageURL, targetLanguage string) Source {
	return Source{ImageURL: imageURL, TargetLanguage: targetLanguage}
}

// FileSource builds a Source for the upload endpoint.
func FileSource(name string, data []byte, targetLanguage string) Source {
	return Source{File: &File{Name: name, Data: data}, TargetLanguage: targetLanguage}
}

// Kind returns SourceUpload when a file is attached, SourceURL otherwise.
func (s Source) Kind() SourceKind {
	if s.File != nil {
		return SourceUpload
	}
	return SourceURL
}

// Validate checks client-side preconditions. It never touches the network.
// maxUploadSize <= 0 disables the size check.
func (s Source) Validate(maxUploadSize int64) error {
	if s.File != nil && strings.TrimSpace(s.ImageURL) != "" {
		return &ValidationError{Field: "source", Message: "provide either an image URL or a file, not both"}
	}

	switch s.Kind() {
	case SourceUpload:
		if len(s.File.Data) == 0 {
			return &ValidationError{Field: "file", Message: "an image file is required"}
		}
		if maxUploadSize > 0 && int64(len(s.File.Data)) > maxUploadSize {
			return &ValidationError{
				Field:   "file",
				Message: fmt.Sprintf("image is %d bytes, the limit is %d", len(s.File.Data), maxUploadSize),
			}
		}
	default:
		if strings.TrimSpace(s.ImageURL) == "" {
			return &ValidationError{Field: "imageUrl", Message: "an image URL is required"}
		}
		if err := core.ValidateHTTPURL(s.ImageURL); err != nil {
			return &ValidationError{Field: "imageUrl", Message: err.Error()}
		}
	}
	return nil
}

// SourceInfo describes a submitted Source without carrying file contents.
type SourceInfo struct {
	Kind           SourceKind `json:"kind" yaml:"kind"`
	Ref            string     `json:"ref" yaml:"ref"` // image URL or file name
	TargetLanguage string     `json:"targetLanguage" yaml:"targetLanguage"`
}

// Info returns the descriptor recorded in the session and job history.
func (s Source) Info() SourceInfo {
	info := SourceInfo{Kind: s.Kind(), TargetLanguage: s.TargetLanguage}
	if s.File != nil {
		info.Ref = s.File.Name
	} else {
		info.Ref = strings.TrimSpace(s.ImageURL)
	}
	return info
}
