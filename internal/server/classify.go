// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jeranaias/nimchat/internal/nim"
)

// Fixed messages for classified upstream failures.
const (
	// MsgInvalidKey is returned when the failure looks like a credential problem.
	MsgInvalidKey = "Invalid API key. Please check NVIDIA_API_KEY."

	// MsgUnreachable is returned when the upstream cannot be reached.
	MsgUnreachable = "Unable to connect to NVIDIA API."

	// MsgUpstreamFallback stands in when a status-bearing upstream error has
	// no message of its own.
	MsgUpstreamFallback = "Upstream error"
)

// classifyRule matches an error and provides the response it maps to.
// An empty message means "use the error's own text".
type classifyRule struct {
	match   func(err error) bool
	status  int
	message string
}

// containsAny reports whether the error text contains any of the substrings.
// Matching is case-insensitive; upstream wording varies in capitalization.
func containsAny(err error, substrings ...string) bool {
	text := strings.ToLower(err.Error())
	for _, s := range substrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// classifyRules is the ordered failure classifier. Rules are evaluated
// top-to-bottom and the first match wins.
//
// This is best-effort text matching over heterogeneous upstream error
// shapes, not a typed upstream contract. There is no guarantee the upstream
// keeps producing these substrings; the trailing catch-all keeps every
// failure answerable regardless.
var classifyRules = []classifyRule{
	{
		match:   func(err error) bool { return containsAny(err, "401", "unauthorized") },
		status:  http.StatusUnauthorized,
		message: MsgInvalidKey,
	},
	{
		match:   func(err error) bool { return containsAny(err, "connection error", "fetch failed") },
		status:  http.StatusServiceUnavailable,
		message: MsgUnreachable,
	},
	{
		match:  func(err error) bool { return true },
		status: http.StatusInternalServerError,
	},
}

// Classify maps an upstream failure to the HTTP status and error message the
// gateway replies with.
//
// An error carrying an explicit upstream status is relayed as-is, ahead of
// any text matching. Everything else runs through classifyRules in order.
func Classify(err error) (int, string) {
	var apiErr *nim.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = MsgUpstreamFallback
		}
		return apiErr.Status, msg
	}

	for _, rule := range classifyRules {
		if rule.match(err) {
			msg := rule.message
			if msg == "" {
				msg = err.Error()
			}
			return rule.status, msg
		}
	}

	// Unreachable: the last rule matches everything.
	return http.StatusInternalServerError, err.Error()
}
