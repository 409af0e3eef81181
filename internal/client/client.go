package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:8000"
	httpTimeout      = 60 * time.Second
)

// Client talks to the unfold server as one user.
type Client struct {
	http      *http.Client
	serverURL string
	token     string
}

// New creates an API client. An empty serverURL falls back to UNFOLD_URL,
// then http://127.0.0.1:8000.
func New(serverURL, token string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("UNFOLD_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
		token:     token,
	}
}

// ChatReply mirrors the server's chat response.
type ChatReply struct {
	Reply  string `json:"reply"`
	Status string `json:"status"`
}

// Chat sends one message and returns the reply.
func (c *Client) Chat(ctx context.Context, message string) (*ChatReply, error) {
	body, _ := json.Marshal(map[string]string{"message": message})
	var reply ChatReply
	if err := c.do(ctx, http.MethodPost, "/api/chat", body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Insight requests an insight for a snapshot. The result is returned as
// decoded JSON.
func (c *Client) Insight(ctx context.Context, category string, snapshot map[string]any) (map[string]any, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, "/api/insights/"+category, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetRetention changes the caller's retention period.
func (c *Client) SetRetention(ctx context.Context, period string) error {
	body, _ := json.Marshal(map[string]string{"period": period})
	return c.do(ctx, http.MethodPut, "/api/retention", body, nil)
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}
