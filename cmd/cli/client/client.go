// Package client is the CLI's small JSON client for the aquamarine API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crucial707/aquamarine/cmd/cli/config"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("status %d: %s", e.Status, e.Message)
	for f, v := range e.Fields {
		msg += fmt.Sprintf("\n  %s: %s", f, v)
	}
	return msg
}

// Client calls the API at BaseURL, sending Token as a bearer token when set.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a Client configured from the environment and the saved token.
func New() (*Client, error) {
	token, err := config.Token()
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return &Client{
		BaseURL: config.APIURL(),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Do sends payload (if non-nil) as JSON and decodes the response into out (if non-nil).
func (c *Client) Do(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}
		var parsed struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
			apiErr.Message = parsed.Error
			apiErr.Fields = parsed.Fields
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}
