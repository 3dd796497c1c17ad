// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	chatctl "github.com/jeranaias/nimchat/internal/chat"
	"github.com/jeranaias/nimchat/internal/model"
	"github.com/jeranaias/nimchat/internal/nim"
	"github.com/jeranaias/nimchat/internal/storage"
)

// echoSender replies with a fixed string, standing in for the gateway.
type echoSender struct {
	reply string
}

func (e *echoSender) Send(_ context.Context, _ []nim.ChatMessage) (string, error) {
	return e.reply, nil
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "conversations.json"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	controller := chatctl.NewController(store, &echoSender{reply: "hi"})
	return New(controller, store)
}

func TestRenderContent_UserVerbatim(t *testing.T) {
	m := newTestModel(t)
	msg := model.NewUserMessage("# not markdown")
	got := m.renderContent(msg)
	if got != "# not markdown" {
		t.Errorf("renderContent() = %q, want raw content", got)
	}
}

func TestRenderContent_ErrorTurnKeepsPrefix(t *testing.T) {
	m := newTestModel(t)
	msg := model.NewAssistantMessage(chatctl.ErrorTurnPrefix + "Unable to connect to NVIDIA API.")
	got := m.renderContent(msg)
	if !strings.Contains(got, "Error: Unable to connect to NVIDIA API.") {
		t.Errorf("renderContent() = %q, want error text preserved", got)
	}
}

func TestRenderMarkdown_NilRendererFallsBack(t *testing.T) {
	m := newTestModel(t)
	m.renderer = nil
	got := m.renderMarkdown("**bold**")
	if got != "**bold**" {
		t.Errorf("renderMarkdown() = %q, want raw content fallback", got)
	}
}

func TestCycleConversation_AdvancesSelection(t *testing.T) {
	m := newTestModel(t)

	first, err := m.controller.NewConversation()
	if err != nil {
		t.Fatalf("NewConversation() error: %v", err)
	}
	second, err := m.controller.NewConversation()
	if err != nil {
		t.Fatalf("NewConversation() error: %v", err)
	}
	m.refreshConversations()

	// Newest first: second is selected and listed before first.
	if m.controller.SelectedID() != second.ID {
		t.Fatalf("SelectedID() = %q, want %q", m.controller.SelectedID(), second.ID)
	}
	m.cycleConversation()
	if m.controller.SelectedID() != first.ID {
		t.Errorf("after cycle SelectedID() = %q, want %q", m.controller.SelectedID(), first.ID)
	}
	m.cycleConversation()
	if m.controller.SelectedID() != second.ID {
		t.Errorf("after second cycle SelectedID() = %q, want %q", m.controller.SelectedID(), second.ID)
	}
}

func TestCycleConversation_EmptyIsNoop(t *testing.T) {
	m := newTestModel(t)
	m.cycleConversation()
	if m.controller.SelectedID() != "" {
		t.Errorf("SelectedID() = %q, want empty", m.controller.SelectedID())
	}
}
