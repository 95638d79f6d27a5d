// Package digitizeapi is the HTTP transport for the image digitization
// service. It implements digitize.API.
//
// Endpoints, relative to the versioned base URL:
//   - POST digitize/url     JSON {imageUrl, targetLanguage}
//   - POST digitize/upload  multipart form {image, targetLanguage}
//   - GET  digitize/result/{id}
//
// Every response is an envelope {"data": ..., "message": "..."}.
package digitizeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"digitizer/digitize"
	"digitizer/logging"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

var (
	ErrNilClient    = errors.New("digitizeapi: HTTP client cannot be nil")
	ErrNilLogger    = errors.New("digitizeapi: logger cannot be nil")
	ErrMissingData  = errors.New("digitizeapi: response has no data")
	ErrMissingJobID = errors.New("digitizeapi: response has no digitizationId")
	ErrUnknownState = errors.New("digitizeapi: unknown job status")
)

// Client talks to the digitization service.
//
// Thread-Safety:
//   - Client is safe for concurrent use
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientConfig holds connection settings.
type ClientConfig struct {
	// BaseURL is the versioned API root, e.g. http://localhost:3000/api/v1/
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string
}

// envelope is the common response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type submitURLRequest struct {
	ImageURL       string `json:"imageUrl"`
	TargetLanguage string `json:"targetLanguage"`
}

type submitData struct {
	DigitizationID string `json:"digitizationId"`
}

type resultData struct {
	Status         digitize.Status `json:"status"`
	RecognizedText *string         `json:"recognizedText"`
	TranslatedText *string         `json:"translatedText"`
	FailureReason  *string         `json:"failureReason"`
}

// NewClient creates a Client. httpClient should come from
// core.GetHTTPClient so the request timeout applies.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *logging.Logger) (*Client, error) {
	if httpClient == nil {
		return nil, ErrNilClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	base := strings.TrimSpace(cfg.BaseURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	parsed, err := url.Parse(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("digitizeapi: invalid base URL %q", cfg.BaseURL)
	}

	return &Client{
		baseURL:    parsed,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger.Named("api-client"),
	}, nil
}

// SubmitURL creates a job for an image reachable at imageURL.
func (c *Client) SubmitURL(ctx context.Context, imageURL, targetLanguage string) (string, error) {
	body, err := json.Marshal(submitURLRequest{ImageURL: imageURL, TargetLanguage: targetLanguage})
	if err != nil {
		return "", fmt.Errorf("digitizeapi: failed to marshal request: %w", err)
	}

	env, status, raw, err := c.do(ctx, http.MethodPost, "digitize/url", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return decodeSubmit(env, status, raw)
}

// SubmitUpload creates a job for an uploaded image file.
func (c *Client) SubmitUpload(ctx context.Context, file digitize.File, targetLanguage string) (string, error) {
	body, contentType, err := buildUploadForm(file, targetLanguage)
	if err != nil {
		return "", err
	}

	env, status, raw, err := c.do(ctx, http.MethodPost, "digitize/upload", contentType, body)
	if err != nil {
		return "", err
	}
	return decodeSubmit(env, status, raw)
}

// Result fetches the current state of job id.
func (c *Client) Result(ctx context.Context, id string) (digitize.Job, error) {
	env, status, raw, err := c.do(ctx, http.MethodGet, "digitize/result/"+url.PathEscape(id), "", nil)
	if err != nil {
		return digitize.Job{}, err
	}

	if isNull(env.Data) {
		return digitize.Job{}, &digitize.ResponseError{StatusCode: status, Body: raw, Err: ErrMissingData}
	}
	var data resultData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return digitize.Job{}, &digitize.ResponseError{StatusCode: status, Body: raw, Err: fmt.Errorf("decode result: %w", err)}
	}
	if !data.Status.IsValid() {
		return digitize.Job{}, &digitize.ResponseError{
			StatusCode: status,
			Body:       raw,
			Err:        fmt.Errorf("%w: %q", ErrUnknownState, data.Status),
		}
	}

	return digitize.Job{
		ID:             id,
		Status:         data.Status,
		RecognizedText: data.RecognizedText,
		TranslatedText: data.TranslatedText,
		FailureReason:  data.FailureReason,
	}, nil
}

// do sends one request and decodes the envelope. Non-2xx responses and
// undecodable bodies come back as *digitize.ResponseError.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (envelope, int, []byte, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return envelope{}, 0, nil, fmt.Errorf("digitizeapi: invalid path %q: %w", path, err)
	}
	endpoint := c.baseURL.ResolveReference(ref)
	requestID := uuid.NewString()

	log := c.logger.With(
		zap.String("method", method),
		zap.String("endpoint", endpoint.Path),
		zap.String("request_id", requestID),
	)

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return envelope{}, 0, nil, fmt.Errorf("digitizeapi: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return envelope{}, 0, nil, fmt.Errorf("digitizeapi: %s %s: %w", method, endpoint.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, resp.StatusCode, nil, fmt.Errorf("digitizeapi: failed to read response: %w", err)
	}

	log.Debug("response received",
		zap.Int("status_code", resp.StatusCode),
		zap.Int("body_bytes", len(raw)),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, resp.StatusCode, raw, &digitize.ResponseError{StatusCode: resp.StatusCode, Body: raw}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, resp.StatusCode, raw, &digitize.ResponseError{
			StatusCode: resp.StatusCode,
			Body:       raw,
			Err:        fmt.Errorf("decode envelope: %w", err),
		}
	}
	return env, resp.StatusCode, raw, nil
}

func decodeSubmit(env envelope, status int, raw []byte) (string, error) {
	if isNull(env.Data) {
		return "", &digitize.ResponseError{StatusCode: status, Body: raw, Err: ErrMissingData}
	}
	var data submitData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", &digitize.ResponseError{StatusCode: status, Body: raw, Err: fmt.Errorf("decode submission: %w", err)}
	}
	if strings.TrimSpace(data.DigitizationID) == "" {
		return "", &digitize.ResponseError{StatusCode: status, Body: raw, Err: ErrMissingJobID}
	}
	return data.DigitizationID, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
