// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the nimchat gateway HTTP server.
//
// Endpoints:
//   - GET  /          - Plain-text liveness banner
//   - GET  /health    - Health check, {"status":"ok"}
//   - POST /api/chat  - Forward message history to the NIM upstream
//
// On success the upstream completion object is relayed unmodified. On
// failure the ordered classifier in classify.go maps the error to an HTTP
// status and a {"error": string} body; no failure escapes without a
// response.
package server
