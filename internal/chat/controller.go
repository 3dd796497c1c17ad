// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/nimchat/internal/model"
	"github.com/jeranaias/nimchat/internal/nim"
	"github.com/jeranaias/nimchat/internal/storage"
)

// ErrorTurnPrefix marks assistant turns that record a failed send.
const ErrorTurnPrefix = "Error: "

// Error variables for send operations.
var (
	// ErrSendInFlight indicates a send is already in progress.
	ErrSendInFlight = errors.New("a send is already in progress")

	// ErrEmptyMessage indicates the message content was empty or whitespace.
	ErrEmptyMessage = errors.New("message content is empty")
)

// Sender dispatches an assembled message list and returns the reply content.
// The gateway client implements this; tests substitute stubs.
type Sender interface {
	Send(ctx context.Context, messages []nim.ChatMessage) (string, error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives the send lifecycle: it owns conversation selection,
// persists the user turn before dispatch, and records the outcome as either
// an assistant turn or an error turn.
//
// At most one send runs at a time. The user turn is kept even when the send
// fails, so history reflects what was actually asked.
type Controller struct {
	store  *storage.Store
	sender Sender

	mu         sync.Mutex
	selectedID string

	inFlight atomic.Bool
}

// NewController creates a controller over the given store and sender.
func NewController(store *storage.Store, sender Sender) *Controller {
	return &Controller{
		store:  store,
		sender: sender,
	}
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectedID returns the ID of the selected conversation, or empty string.
func (c *Controller) SelectedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedID
}

// Select makes the conversation with the given ID current.
func (c *Controller) Select(id string) error {
	if _, err := c.store.Get(id); err != nil {
		return err
	}
	c.mu.Lock()
	c.selectedID = id
	c.mu.Unlock()
	return nil
}

// NewConversation creates an empty conversation, selects it, and returns it.
func (c *Controller) NewConversation() (*model.Conversation, error) {
	conv, err := c.store.Create()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.selectedID = conv.ID
	c.mu.Unlock()
	return conv, nil
}

// DeleteSelected removes the selected conversation and clears the selection.
// No-op when nothing is selected.
func (c *Controller) DeleteSelected() error {
	id := c.SelectedID()
	if id == "" {
		return nil
	}
	if err := c.store.Delete(id); err != nil {
		return err
	}
	c.mu.Lock()
	if c.selectedID == id {
		c.selectedID = ""
	}
	c.mu.Unlock()
	return nil
}

// Selected returns a copy of the selected conversation, or nil if none.
func (c *Controller) Selected() *model.Conversation {
	id := c.SelectedID()
	if id == "" {
		return nil
	}
	conv, err := c.store.Get(id)
	if err != nil {
		return nil
	}
	return conv
}

// IsSending reports whether a send is currently in progress.
func (c *Controller) IsSending() bool {
	return c.inFlight.Load()
}

// =============================================================================
// SEND
// =============================================================================

// SendMessage sends content on the selected conversation, creating one first
// if none is selected.
//
// The flow is: persist the user turn, dispatch the assembled history, then
// persist the reply. On failure the reply turn is an assistant turn whose
// content is ErrorTurnPrefix plus the error text, and the error is returned
// so callers can surface it. The returned conversation reflects all turns
// recorded by the attempt.
func (c *Controller) SendMessage(ctx context.Context, content string) (*model.Conversation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	// Single send at a time. CompareAndSwap wins or the whole call refuses.
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSendInFlight
	}
	defer c.inFlight.Store(false)

	conv, err := c.ensureSelected()
	if err != nil {
		return nil, err
	}

	// Assemble from history as it stood before this send.
	messages := AssembleRequest(conv.Messages, content)

	// The user turn is persisted before dispatch and survives failure.
	if _, err := c.store.AddMessage(conv.ID, model.NewUserMessage(content)); err != nil {
		return nil, err
	}

	reply, sendErr := c.sender.Send(ctx, messages)
	if sendErr != nil {
		log.Printf("SEND_FAILED | conversation=%s error=%v", conv.ID, sendErr)
		errTurn := model.NewAssistantMessage(ErrorTurnPrefix + sendErr.Error())
		updated, err := c.store.AddMessage(conv.ID, errTurn)
		if err != nil {
			return nil, err
		}
		return updated, sendErr
	}

	updated, err := c.store.AddMessage(conv.ID, model.NewAssistantMessage(reply))
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ensureSelected returns the selected conversation, creating and selecting a
// new one when nothing is selected or the selection no longer exists.
func (c *Controller) ensureSelected() (*model.Conversation, error) {
	id := c.SelectedID()
	if id != "" {
		conv, err := c.store.Get(id)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, storage.ErrConversationNotFound) {
			return nil, err
		}
	}
	return c.NewConversation()
}
