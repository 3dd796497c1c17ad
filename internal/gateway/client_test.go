// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/nimchat/internal/nim"
)

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_Success(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi there!"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	reply, err := client.Send(context.Background(), []nim.ChatMessage{
		{Role: "user", Content: "Hello"},
	})
	require.NoError(t, err)
	require.Equal(t, "Hi there!", reply)

	require.Len(t, captured.Messages, 1)
	require.Equal(t, "user", captured.Messages[0].Role)
	require.Equal(t, "Hello", captured.Messages[0].Content)
}

func TestSend_EmptyCompletion(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"role":"assistant","content":""}}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewClient(server.URL)
			reply, err := client.Send(context.Background(), []nim.ChatMessage{
				{Role: "user", Content: "Hello"},
			})
			require.NoError(t, err)
			require.Equal(t, NoResponseFallback, reply)
		})
	}
}

func TestSend_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid API key. Please check NVIDIA_API_KEY."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Send(context.Background(), []nim.ChatMessage{
		{Role: "user", Content: "Hello"},
	})
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	require.Equal(t, http.StatusUnauthorized, gwErr.Status)
	require.Equal(t, "Invalid API key. Please check NVIDIA_API_KEY.", gwErr.Message)
	require.Equal(t, gwErr.Message, err.Error())
}

func TestSend_MalformedErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Send(context.Background(), []nim.ChatMessage{
		{Role: "user", Content: "Hello"},
	})
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	require.Equal(t, http.StatusInternalServerError, gwErr.Status)
	require.Equal(t, "Request failed with status 500", gwErr.Message)
}

func TestSend_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url)
	_, err := client.Send(context.Background(), []nim.ChatMessage{
		{Role: "user", Content: "Hello"},
	})
	require.Error(t, err)

	var gwErr *GatewayError
	require.False(t, errors.As(err, &gwErr), "transport failure should not be a GatewayError")
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("")
	require.Equal(t, DefaultBackendURL, client.BaseURL())

	trimmed := NewClient("http://example.com/")
	require.Equal(t, "http://example.com", trimmed.BaseURL())
}
