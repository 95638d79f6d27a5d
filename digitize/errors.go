package digitize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Display messages used when a failure carries no usable server message.
const (
	FallbackSubmissionMessage = "An unknown error occurred during submission"
	FallbackPollMessage       = "An unknown error occurred while fetching results"
)

var (
	// ErrSuperseded is returned by Submit when a newer submission began
	// before this one was accepted by the server.
	ErrSuperseded = errors.New("digitize: superseded by a newer submission")

	ErrNilAPI     = errors.New("digitize: api cannot be nil")
	ErrNilSession = errors.New("digitize: session cannot be nil")
	ErrNilPoller  = errors.New("digitize: poller cannot be nil")
	ErrNilLogger  = errors.New("digitize: logger cannot be nil")
)

// ValidationError is a client-side precondition failure. It is returned
// before any network call and leaves the Session untouched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ResponseError is returned by the transport when the server answered but
// the answer cannot be used: a non-2xx status, or a 2xx body that does not
// decode (Err is then set).
type ResponseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("digitize api: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("digitize api: status %d", e.StatusCode)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// IsHTTPError reports whether the server answered with a non-2xx status.
func (e *ResponseError) IsHTTPError() bool {
	return e.StatusCode < 200 || e.StatusCode > 299
}

// SubmissionError is a failed job creation. Message is what the user sees.
type SubmissionError struct {
	StatusCode int    // 0 when no response was received
	Message    string // display message
	RawPayload []byte // response body, kept for diagnostics
	Err        error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// PollError is a failed status fetch for JobID. It ends polling.
type PollError struct {
	JobID      string
	StatusCode int
	Message    string
	RawPayload []byte
	Err        error
}

func (e *PollError) Error() string {
	return e.Message
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// ClassifySubmission turns any submission failure into a SubmissionError.
//
// When the server answered with a non-2xx status and a JSON body whose
// "message" is a non-empty string, that message is used verbatim. Anything
// else (network failure, timeout, unparseable body) gets
// FallbackSubmissionMessage.
func ClassifySubmission(err error) *SubmissionError {
	if err == nil {
		return nil
	}
	var already *SubmissionError
	if errors.As(err, &already) {
		return already
	}

	statusCode, payload, message := inspect(err)
	if message == "" {
		message = FallbackSubmissionMessage
	}
	return &SubmissionError{
		StatusCode: statusCode,
		Message:    message,
		RawPayload: payload,
		Err:        err,
	}
}

// ClassifyPoll is ClassifySubmission for status fetches of jobID.
func ClassifyPoll(jobID string, err error) *PollError {
	if err == nil {
		return nil
	}
	var already *PollError
	if errors.As(err, &already) {
		return already
	}

	statusCode, payload, message := inspect(err)
	if message == "" {
		message = FallbackPollMessage
	}
	return &PollError{
		JobID:      jobID,
		StatusCode: statusCode,
		Message:    message,
		RawPayload: payload,
		Err:        err,
	}
}

func inspect(err error) (statusCode int, payload []byte, message string) {
	var respErr *ResponseError
	if !errors.As(err, &respErr) {
		return 0, nil, ""
	}
	if respErr.IsHTTPError() {
		message = ServerMessage(respErr.Body)
	}
	return respErr.StatusCode, respErr.Body, message
}

// ServerMessage extracts a non-empty string "message" field from a JSON
// object payload. It returns "" for anything else.
func ServerMessage(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}

	var body struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Message) == 0 {
		return ""
	}

	var message string
	if err := json.Unmarshal(body.Message, &message); err != nil {
		return ""
	}
	if strings.TrimSpace(message) == "" {
		return ""
	}
	return message
}
