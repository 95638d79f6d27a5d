package digitize

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifySubmission(t *testing.T) {
	netErr := errors.New("dial tcp: connection refused")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "server message used verbatim",
			err:        &ResponseError{StatusCode: 400, Body: []byte(`{"message":"Invalid image URL"}`)},
			wantStatus: 400,
			wantMsg:    "Invalid image URL",
		},
		{
			name:       "message inside wrapped error",
			err:        fmt.Errorf("submit: %w", &ResponseError{StatusCode: 422, Body: []byte(`{"message":"Unsupported format"}`)}),
			wantStatus: 422,
			wantMsg:    "Unsupported format",
		},
		{
			name:       "empty message falls back",
			err:        &ResponseError{StatusCode: 500, Body: []byte(`{"message":""}`)},
			wantStatus: 500,
			wantMsg:    FallbackSubmissionMessage,
		},
		{
			name:       "non-string message falls back",
			err:        &ResponseError{StatusCode: 500, Body: []byte(`{"message":{"code":7}}`)},
			wantStatus: 500,
			wantMsg:    FallbackSubmissionMessage,
		},
		{
			name:       "unparseable body falls back",
			err:        &ResponseError{StatusCode: 502, Body: []byte(`<html>Bad Gateway</html>`)},
			wantStatus: 502,
			wantMsg:    FallbackSubmissionMessage,
		},
		{
			name:       "empty body falls back",
			err:        &ResponseError{StatusCode: 503},
			wantStatus: 503,
			wantMsg:    FallbackSubmissionMessage,
		},
		{
			name:       "decode failure on success status ignores message",
			err:        &ResponseError{StatusCode: 200, Body: []byte(`{"message":"Digitization started"}`), Err: errors.New("missing data")},
			wantStatus: 200,
			wantMsg:    FallbackSubmissionMessage,
		},
		{
			name:    "network failure falls back",
			err:     netErr,
			wantMsg: FallbackSubmissionMessage,
		},
		{
			name:    "timeout falls back",
			err:     context.DeadlineExceeded,
			wantMsg: FallbackSubmissionMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySubmission(tt.err)
			if got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
			if got.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.wantStatus)
			}
			if !errors.Is(got, tt.err) && !errors.Is(got.Err, tt.err) {
				t.Errorf("classified error does not wrap original %v", tt.err)
			}
			if got.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got.Error(), tt.wantMsg)
			}
		})
	}
}

func TestClassifySubmissionKeepsPayload(t *testing.T) {
	body := []byte(`{"message":"nope","detail":"x"}`)
	got := ClassifySubmission(&ResponseError{StatusCode: 400, Body: body})
	if string(got.RawPayload) != string(body) {
		t.Errorf("RawPayload = %q, want %q", got.RawPayload, body)
	}
}

func TestClassifySubmissionIdempotent(t *testing.T) {
	first := ClassifySubmission(&ResponseError{StatusCode: 400, Body: []byte(`{"message":"bad"}`)})
	if again := ClassifySubmission(first); again != first {
		t.Error("classifying a SubmissionError should return it unchanged")
	}
	if ClassifySubmission(nil) != nil {
		t.Error("ClassifySubmission(nil) should be nil")
	}
}

func TestClassifyPoll(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"server message", &ResponseError{StatusCode: 404, Body: []byte(`{"message":"Job not found"}`)}, "Job not found"},
		{"no message", &ResponseError{StatusCode: 500, Body: []byte(`{}`)}, FallbackPollMessage},
		{"network", errors.New("connection reset"), FallbackPollMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyPoll("job123", tt.err)
			if got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
			if got.JobID != "job123" {
				t.Errorf("JobID = %q, want job123", got.JobID)
			}
		})
	}

	if ClassifyPoll("x", nil) != nil {
		t.Error("ClassifyPoll(nil) should be nil")
	}
}

func TestServerMessage(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"message":"Quota exceeded"}`, "Quota exceeded"},
		{`{"message":"   "}`, ""},
		{`{"message":null}`, ""},
		{`{"message":42}`, ""},
		{`{"error":"x"}`, ""},
		{`["message"]`, ""},
		{`not json`, ""},
		{``, ""},
	}

	for _, tt := range tests {
		if got := ServerMessage([]byte(tt.payload)); got != tt.want {
			t.Errorf("ServerMessage(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
