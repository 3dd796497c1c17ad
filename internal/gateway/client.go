// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/nimchat/internal/nim"
)

// Configuration constants for the gateway client.
const (
	// DefaultBackendURL is where the chat client expects the local gateway.
	DefaultBackendURL = "http://localhost:3001"

	// DefaultTimeout is the default timeout for gateway requests.
	DefaultTimeout = 120 * time.Second

	// maxResponseSize limits how much of a gateway response is read.
	maxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// NoResponseFallback is returned as the reply content when the gateway
// answers 2xx but the completion carries no message content.
const NoResponseFallback = "No response received"

// GatewayError represents an error reported by the gateway.
type GatewayError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return e.Message
}

// chatRequest is the body posted to the gateway chat endpoint.
type chatRequest struct {
	Messages []nim.ChatMessage `json:"messages"`
}

// errorResponse is the gateway error body shape.
type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to the nimchat gateway over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client for the given base URL. An empty URL
// falls back to DefaultBackendURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBackendURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// BaseURL returns the configured gateway base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send posts the message history to the gateway and returns the assistant
// reply content.
//
// A 2xx response with no message content yields NoResponseFallback rather
// than an error. Non-2xx responses become a GatewayError carrying the
// gateway's error message. There is no retry.
func (c *Client) Send(ctx context.Context, messages []nim.ChatMessage) (string, error) {
	bodyBytes, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.parseError(resp.StatusCode, body)
	}

	var completion nim.ChatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	content := completion.GetContent()
	if content == "" {
		return NoResponseFallback, nil
	}
	return content, nil
}

// parseError extracts the gateway's error message from a non-2xx body,
// falling back to a generic message when the body is not the expected shape.
func (c *Client) parseError(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &GatewayError{Status: statusCode, Message: errResp.Error}
	}
	return &GatewayError{
		Status:  statusCode,
		Message: fmt.Sprintf("Request failed with status %d", statusCode),
	}
}
