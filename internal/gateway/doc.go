// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client the chat UI uses to reach the
// local nimchat gateway server.
//
// The client posts message history to POST /api/chat and returns the reply
// content. Gateway error bodies ({"error": "..."}) surface as GatewayError
// values so the UI can show the message verbatim.
package gateway
