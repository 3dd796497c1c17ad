// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	"github.com/jeranaias/nimchat/internal/model"
)

func TestAssembleRequest_EmptyHistory(t *testing.T) {
	messages := AssembleRequest(nil, "Hello")

	if len(messages) != 1 {
		t.Fatalf("len = %d, want 1", len(messages))
	}
	if messages[0].Role != "user" || messages[0].Content != "Hello" {
		t.Errorf("messages[0] = %+v, want user/Hello", messages[0])
	}
}

func TestAssembleRequest_PreservesOrder(t *testing.T) {
	history := []model.Message{
		model.NewUserMessage("first question"),
		model.NewAssistantMessage("first answer"),
		model.NewUserMessage("second question"),
		model.NewAssistantMessage("second answer"),
	}

	messages := AssembleRequest(history, "third question")

	if len(messages) != 5 {
		t.Fatalf("len = %d, want 5", len(messages))
	}

	want := []struct {
		role    string
		content string
	}{
		{"user", "first question"},
		{"assistant", "first answer"},
		{"user", "second question"},
		{"assistant", "second answer"},
		{"user", "third question"},
	}
	for i, w := range want {
		if messages[i].Role != w.role || messages[i].Content != w.content {
			t.Errorf("messages[%d] = %+v, want %s/%q", i, messages[i], w.role, w.content)
		}
	}
}

func TestAssembleRequest_CarriesErrorTurns(t *testing.T) {
	history := []model.Message{
		model.NewUserMessage("hi"),
		model.NewAssistantMessage("Error: Unable to connect to NVIDIA API."),
	}

	messages := AssembleRequest(history, "retry")

	if messages[1].Content != "Error: Unable to connect to NVIDIA API." {
		t.Errorf("Error turn rewritten: %q", messages[1].Content)
	}
	if messages[1].Role != "assistant" {
		t.Errorf("Error turn role = %q, want assistant", messages[1].Role)
	}
}

func TestAssembleRequest_DoesNotMutateHistory(t *testing.T) {
	history := []model.Message{
		model.NewUserMessage("original"),
	}

	_ = AssembleRequest(history, "new")

	if len(history) != 1 {
		t.Errorf("History length changed: %d", len(history))
	}
	if history[0].Content != "original" {
		t.Errorf("History content changed: %q", history[0].Content)
	}
}
