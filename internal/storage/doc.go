// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for nimchat.
//
// The whole conversation collection is stored as one JSON document, written
// atomically after every mutation. Conversations are ordered newest-first.
// A missing or corrupt collection file yields an empty collection rather
// than an error.
package storage
