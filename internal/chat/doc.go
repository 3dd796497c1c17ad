// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates the send lifecycle between the conversation store
// and the gateway client.
//
// AssembleRequest turns stored history plus new content into the wire message
// list. Controller owns conversation selection and runs at most one send at a
// time, recording the outcome of every attempt in the store.
package chat
