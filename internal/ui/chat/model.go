// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	chatctl "github.com/jeranaias/nimchat/internal/chat"
	"github.com/jeranaias/nimchat/internal/model"
	"github.com/jeranaias/nimchat/internal/storage"
	"github.com/jeranaias/nimchat/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady   State = iota // Ready for input
	StateSending              // Waiting for the gateway reply
)

// sidebarWidth is the fixed display width of the conversation list.
const sidebarWidth = 28

// =============================================================================
// MESSAGES
// =============================================================================

// sendResultMsg carries the outcome of a send command.
type sendResultMsg struct {
	conv *model.Conversation
	err  error
}

// newConversationMsg carries the outcome of creating a conversation.
type newConversationMsg struct {
	conv *model.Conversation
	err  error
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state State

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int
	ready  bool

	// Domain
	controller    *chatctl.Controller
	store         *storage.Store
	conversations []*model.Conversation

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Markdown rendering for assistant turns
	renderer *glamour.TermRenderer

	// Status line error, cleared on the next successful action
	statusErr string
}

// New creates a new chat model over the given controller and store.
func New(controller *chatctl.Controller, store *storage.Store) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	theme := styles.NewTheme()
	sp.Style = theme.Spinner
	input.PromptStyle = theme.InputPrompt
	input.PlaceholderStyle = theme.InputPlaceholder

	m := Model{
		state:      StateReady,
		theme:      theme,
		controller: controller,
		store:      store,
		input:      input,
		spinner:    sp,
	}
	m.refreshConversations()
	m.renderer = newMarkdownRenderer(80)
	return m
}

// newMarkdownRenderer builds the glamour renderer for assistant turns.
// Returns nil when initialization fails; rendering then falls back to
// plain text.
func newMarkdownRenderer(wrap int) *glamour.TermRenderer {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return renderer
}

// refreshConversations reloads the sidebar list from the store.
func (m *Model) refreshConversations() {
	m.conversations = m.store.Conversations()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "ctrl+n":
			if m.state == StateSending {
				break
			}
			return m, m.newConversationCmd()

		case "tab":
			if m.state == StateSending {
				break
			}
			m.cycleConversation()
			m.refreshViewport()

		case "ctrl+d":
			if m.state == StateSending {
				break
			}
			m.deleteSelected()
			m.refreshViewport()

		case "enter":
			if m.state == StateSending {
				break
			}
			content := strings.TrimSpace(m.input.Value())
			if content == "" {
				break
			}
			m.input.SetValue("")
			m.input.Blur()
			m.state = StateSending
			m.statusErr = ""
			return m, tea.Batch(m.spinner.Tick, m.sendCmd(content))
		}

	case sendResultMsg:
		m.state = StateReady
		m.input.Focus()
		if msg.err != nil {
			m.statusErr = msg.err.Error()
		}
		m.refreshConversations()
		m.refreshViewport()
		cmds = append(cmds, textinput.Blink)

	case newConversationMsg:
		if msg.err != nil {
			m.statusErr = msg.err.Error()
		} else {
			m.statusErr = ""
			m.refreshConversations()
			m.refreshViewport()
		}

	case spinner.TickMsg:
		if m.state == StateSending {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	// Route remaining input to the focused components.
	if m.state == StateReady {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// layout recomputes component dimensions from the window size.
func (m *Model) layout() {
	contentWidth := m.width - sidebarWidth - 1
	if contentWidth < 20 {
		contentWidth = 20
	}
	// Header, status bar, and input row each take one line.
	contentHeight := m.height - 4
	if contentHeight < 3 {
		contentHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(contentWidth, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = contentHeight
	}

	m.input.Width = m.width - 6
	m.renderer = newMarkdownRenderer(contentWidth - 2)
}

// deleteSelected removes the current conversation and selects the newest
// remaining one.
func (m *Model) deleteSelected() {
	if err := m.controller.DeleteSelected(); err != nil {
		m.statusErr = err.Error()
		return
	}
	m.statusErr = ""
	m.refreshConversations()
	if len(m.conversations) > 0 {
		if err := m.controller.Select(m.conversations[0].ID); err != nil {
			m.statusErr = err.Error()
		}
	}
}

// cycleConversation selects the next conversation in sidebar order.
func (m *Model) cycleConversation() {
	if len(m.conversations) == 0 {
		return
	}
	current := m.controller.SelectedID()
	next := 0
	for i, conv := range m.conversations {
		if conv.ID == current {
			next = (i + 1) % len(m.conversations)
			break
		}
	}
	if err := m.controller.Select(m.conversations[next].ID); err != nil {
		m.statusErr = err.Error()
		return
	}
	m.statusErr = ""
}

// =============================================================================
// COMMANDS
// =============================================================================

// sendCmd dispatches the message through the controller off the UI goroutine.
func (m Model) sendCmd(content string) tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		conv, err := controller.SendMessage(context.Background(), content)
		return sendResultMsg{conv: conv, err: err}
	}
}

// newConversationCmd creates and selects a fresh conversation.
func (m Model) newConversationCmd() tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		conv, err := controller.NewConversation()
		return newConversationMsg{conv: conv, err: err}
	}
}
