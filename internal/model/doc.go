// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Message is one turn authored by the user or assistant role, with fixed
// content and an epoch-millisecond timestamp. A Conversation is a titled,
// append-only sequence of messages. Neither type performs I/O; persistence
// belongs to the storage package and mutation ordering to the chat package.
package model
