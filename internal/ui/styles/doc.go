// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the nimchat TUI.
//
// The Theme type bundles every Lip Gloss style the chat view uses. Colors
// are AdaptiveColor pairs so the same theme works on light and dark
// terminals; capability detection runs once in NewTheme.
package styles
