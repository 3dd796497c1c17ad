// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jeranaias/nimchat/internal/nim"
)

// newTestServer wires a gateway Server to a fake upstream handler and returns
// the gateway's test server.
func newTestServer(t *testing.T, upstream http.HandlerFunc) *httptest.Server {
	t.Helper()

	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	client := nim.NewClient("nvapi-test-key").WithBaseURL(up.URL)
	gw := httptest.NewServer(NewServer(0, client).Handler())
	t.Cleanup(gw.Close)
	return gw
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return errResp.Error
}

// =============================================================================
// LIVENESS TESTS
// =============================================================================

func TestHandleRoot(t *testing.T) {
	gw := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(gw.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != LivenessBanner {
		t.Errorf("Body = %q, want %q", string(body), LivenessBanner)
	}
}

func TestHandleHealth(t *testing.T) {
	gw := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(gw.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health body: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf(`health["status"] = %q, want "ok"`, health["status"])
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestHandleChat_Success(t *testing.T) {
	var upstreamReq nim.ChatRequest
	gw := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&upstreamReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1",
			"choices": [{"message": {"role": "assistant", "content": "Hello back"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 5, "total_tokens": 8}
		}`))
	})

	resp, err := http.Post(gw.URL+"/api/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hello"}]}`))
	if err != nil {
		t.Fatalf("POST /api/chat failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	// The completion object is relayed intact.
	var completion nim.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		t.Fatalf("Failed to decode completion: %v", err)
	}
	if got := completion.GetContent(); got != "Hello back" {
		t.Errorf("Content = %q, want %q", got, "Hello back")
	}
	if completion.Usage.TotalTokens != 8 {
		t.Errorf("TotalTokens = %d, want 8", completion.Usage.TotalTokens)
	}

	// The gateway applied the fixed generation parameters upstream.
	if upstreamReq.Model != nim.Model {
		t.Errorf("Upstream model = %q, want %q", upstreamReq.Model, nim.Model)
	}
	if len(upstreamReq.Messages) != 1 || upstreamReq.Messages[0].Content != "Hello" {
		t.Errorf("Upstream messages = %+v", upstreamReq.Messages)
	}
}

func TestHandleChat_UpstreamStatusRelayed(t *testing.T) {
	gw := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit exceeded"}}`))
	})

	resp, err := http.Post(gw.URL+"/api/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hello"}]}`))
	if err != nil {
		t.Fatalf("POST /api/chat failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", resp.StatusCode)
	}
	if msg := decodeError(t, resp.Body); msg != "Rate limit exceeded" {
		t.Errorf("Error message = %q, want upstream message", msg)
	}
}

func TestHandleChat_UpstreamUnreachable(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := up.URL
	up.Close()

	client := nim.NewClient("nvapi-test-key").WithBaseURL(url)
	gw := httptest.NewServer(NewServer(0, client).Handler())
	defer gw.Close()

	resp, err := http.Post(gw.URL+"/api/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hello"}]}`))
	if err != nil {
		t.Fatalf("POST /api/chat failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", resp.StatusCode)
	}
	if msg := decodeError(t, resp.Body); msg != MsgUnreachable {
		t.Errorf("Error message = %q, want %q", msg, MsgUnreachable)
	}
}

func TestHandleChat_MissingKey(t *testing.T) {
	client := nim.NewClient("")
	gw := httptest.NewServer(NewServer(0, client).Handler())
	defer gw.Close()

	resp, err := http.Post(gw.URL+"/api/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hello"}]}`))
	if err != nil {
		t.Fatalf("POST /api/chat failed: %v", err)
	}
	defer resp.Body.Close()

	// ErrNotConfigured carries no status and no auth substring; it falls
	// through to the catch-all.
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", resp.StatusCode)
	}
}

func TestHandleChat_BadRequests(t *testing.T) {
	gw := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Upstream should not be called for invalid requests")
	})

	testCases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"no messages", `{"messages":[]}`},
		{"missing messages field", `{}`},
		{"invalid role", `{"messages":[{"role":"system","content":"x"}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(gw.URL+"/api/chat", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400", resp.StatusCode)
			}
			if msg := decodeError(t, resp.Body); msg == "" {
				t.Error("Error body should carry a message")
			}
		})
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestSecurityHeaders(t *testing.T) {
	gw := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(gw.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	gw := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	req, _ := http.NewRequest(http.MethodOptions, gw.URL+"/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := Chain(RecoveryMiddleware())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", resp.StatusCode)
	}
}
