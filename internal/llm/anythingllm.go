package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// AnythingLLMClient talks to an AnythingLLM workspace chat endpoint.
// The endpoint has no separate system role, so the system prompt is
// prepended to the message.
type AnythingLLMClient struct {
	baseURL   string
	apiKey    string
	workspace string
	http      *http.Client
	now       func() time.Time
}

type workspaceChatRequest struct {
	Message     string   `json:"message"`
	Mode        string   `json:"mode"`
	SessionID   string   `json:"sessionId"`
	Attachments []string `json:"attachments"`
}

type workspaceChatResponse struct {
	TextResponse string `json:"textResponse"`
	Error        any    `json:"error"`
}

// NewAnythingLLM creates a client for the given API base URL (ending in /api/v1)
// and workspace slug.
func NewAnythingLLM(baseURL, apiKey, workspace string, timeout time.Duration) *AnythingLLMClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AnythingLLMClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		workspace: workspace,
		http:      &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

// Complete posts the prompt to the workspace chat endpoint and returns textResponse.
func (c *AnythingLLMClient) Complete(ctx context.Context, req Request) (string, error) {
	message := req.User
	if req.System != "" {
		message = "System Instructions: " + req.System + "\n\nUser Query: " + req.User
	}
	body, err := json.Marshal(workspaceChatRequest{
		Message:     message,
		Mode:        "chat",
		SessionID:   fmt.Sprintf("exam-reader-%d", c.now().Unix()),
		Attachments: []string{},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := c.baseURL + "/workspace/" + c.workspace + "/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("workspace chat: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("workspace chat endpoint not found (workspace %q)", c.workspace)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("workspace chat server error: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("workspace chat: unexpected status %s", resp.Status)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmptyResponse
	}

	var out workspaceChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	slog.Debug("AnythingLLM response", "raw", out.TextResponse)
	if strings.TrimSpace(out.TextResponse) == "" {
		return "", ErrEmptyResponse
	}
	return out.TextResponse, nil
}

// Ping checks authentication against the server.
func (c *AnythingLLMClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth", nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("auth check: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth check: unexpected status %s", resp.Status)
	}
	return nil
}
