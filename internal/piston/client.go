// Package piston is a client for the Piston remote code execution API.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Piston instance.
	DefaultBaseURL = "https://emkc.org"
	// DefaultVersion asks Piston for the latest installed version.
	DefaultVersion = "*"
	// DefaultTimeout bounds a single execute call.
	DefaultTimeout = 30 * time.Second
)

// ErrService wraps every non-2xx answer from the execution service.
var ErrService = errors.New("execution service error")

// Request is one program to run.
type Request struct {
	Language string
	Version  string
	Code     string
	Stdin    string
}

// File is one source file in an execute request.
type File struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type executeBody struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []File `json:"files"`
	Stdin    string `json:"stdin"`
}

// Stage is the result of the compile or run step.
type Stage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
	Output string  `json:"output"`
}

// Response is the execute answer. A Response decoded by Execute marshals
// back to the service's body byte for byte, fields not declared here included.
type Response struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Run      Stage  `json:"run"`
	Compile  *Stage `json:"compile,omitempty"`

	raw json.RawMessage
}

type responseFields Response

// MarshalJSON returns the service's original body when there is one.
func (r Response) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(responseFields(r))
}

// Runtime is one installed language.
type Runtime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
	Runtime  string   `json:"runtime,omitempty"`
}

// Client talks to a Piston instance.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client. An empty baseURL selects DefaultBaseURL and a
// timeout <= 0 selects DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Execute runs req.Code and returns the service's answer.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Language) == "" {
		return nil, errors.New("language is required")
	}
	version := req.Version
	if version == "" {
		version = DefaultVersion
	}
	body := executeBody{
		Language: req.Language,
		Version:  version,
		Files:    []File{{Content: req.Code}},
		Stdin:    req.Stdin,
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/v2/piston/execute", body, &raw); err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	resp.raw = raw
	return &resp, nil
}

// Runtimes lists the languages installed on the instance.
func (c *Client) Runtimes(ctx context.Context) ([]Runtime, error) {
	var out []Runtime
	if err := c.do(ctx, http.MethodGet, "/api/v2/piston/runtimes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type serviceError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var se serviceError
		if json.Unmarshal(respBody, &se) == nil && se.Message != "" {
			return fmt.Errorf("%w: HTTP %d: %s", ErrService, resp.StatusCode, se.Message)
		}
		return fmt.Errorf("%w: HTTP %d", ErrService, resp.StatusCode)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
