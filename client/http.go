package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx answer from the router.
type APIError struct {
	StatusCode int    // StatusCode is the HTTP status
	Message    string // Message is the router's error message, if any
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}

	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// getJSON performs a GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request:\n%w", err)
	}

	return c.do(req, result)
}

// postJSON performs a POST request with JSON body and decodes the JSON response.
func (c *Client) postJSON(ctx context.Context, path string, body any, result any) error {
	jsonBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body:\n%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBytes))
	if err != nil {
		return fmt.Errorf("build request:\n%w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s:\n%w", req.Method, req.URL.Path, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Message = body.Error
		}

		return fmt.Errorf("%s %s:\n%w", req.Method, req.URL.Path, apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response:\n%w", req.URL.Path, err)
	}

	return nil
}
