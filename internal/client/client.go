// Package client talks to the try-on HTTP API: submission, status polling and
// multi-step chains.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"virtual-tryon/internal/domain"
)

// Input is one image for a submission: raw bytes or a reference returned by an
// earlier job.
type Input struct {
	Data     []byte
	Filename string
	Ref      string
}

type SubmitRequest struct {
	Person  Input
	Garment Input
	Style   string
}

// JobStatus is the status document returned by GET /v1/jobs/{id}.
type JobStatus struct {
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	Style      string    `json:"style"`
	Provider   string    `json:"provider,omitempty"`
	ResultRef  string    `json:"result_ref,omitempty"`
	ResultURL  string    `json:"result_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// APIError is a non-2xx answer. It unwraps to the matching domain sentinel so
// callers can use errors.Is(err, domain.ErrInsufficientCredits) and friends.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

var codeErrors = map[string]error{
	"insufficient_credits": domain.ErrInsufficientCredits,
	"missing_input":        domain.ErrMissingInput,
	"invalid_image":        domain.ErrInvalidImage,
	"invalid_reference":    domain.ErrInvalidReference,
	"invalid_style":        domain.ErrInvalidStyle,
	"invalid_argument":     domain.ErrInvalidArgument,
	"rate_limited":         domain.ErrRateLimited,
	"not_found":            domain.ErrNotFound,
}

func (e *APIError) Unwrap() error { return codeErrors[e.Code] }

type Client struct {
	baseURL string
	token   string
	owner   string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithDevOwner sends X-Owner-ID instead of a bearer token; dev servers only.
func WithDevOwner(owner string) Option { return func(c *Client) { c.owner = owner } }

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit creates a job and returns its id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := writeInput(mw, "person", req.Person); err != nil {
		return "", err
	}
	if err := writeInput(mw, "garment", req.Garment); err != nil {
		return "", err
	}
	if err := mw.WriteField("style", req.Style); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/v1/jobs", &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(httpReq, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", errors.New("api: submit response has no job_id")
	}
	return out.JobID, nil
}

func writeInput(mw *multipart.Writer, name string, in Input) error {
	if len(in.Data) == 0 {
		return mw.WriteField(name+"_ref", in.Ref)
	}
	filename := in.Filename
	if filename == "" {
		filename = name
	}
	fw, err := mw.CreateFormFile(name, filename)
	if err != nil {
		return err
	}
	_, err = fw.Write(in.Data)
	return err
}

// Status reads the current status of jobID.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	var st JobStatus
	if err := c.do(req, http.StatusOK, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Credits returns the caller's balance.
func (c *Client) Credits(ctx context.Context) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/credits", nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Balance int `json:"balance"`
	}
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// Download fetches a signed result URL. The URL carries its own authorization.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.owner != "":
		req.Header.Set("X-Owner-ID", c.owner)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
