// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	chatctl "github.com/jeranaias/nimchat/internal/chat"
	"github.com/jeranaias/nimchat/internal/model"
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.renderHeader()
	sidebar := m.renderSidebar()
	content := m.viewport.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", content)
	inputRow := m.renderInput()
	status := m.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, inputRow, status)
}

// renderHeader renders the top title bar.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("nimchat")
	return m.theme.Header.Width(m.width).Render(title)
}

// renderSidebar renders the conversation list, newest first.
func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Conversations"))
	b.WriteString("\n")

	if len(m.conversations) == 0 {
		b.WriteString(m.theme.SidebarItemMeta.Render("(none yet)"))
	}

	selected := m.controller.SelectedID()
	for _, conv := range m.conversations {
		title := runewidth.Truncate(conv.Title, sidebarWidth-4, "…")
		if conv.ID == selected {
			b.WriteString(m.theme.SidebarItemSelected.Render("▸ " + title))
		} else {
			b.WriteString(m.theme.SidebarItem.Render("  " + title))
		}
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(b.String())
}

// refreshViewport re-renders the selected conversation into the viewport.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	conv := m.controller.Selected()
	if conv == nil || len(conv.Messages) == 0 {
		m.viewport.SetContent(m.renderWelcome())
		return
	}

	var b strings.Builder
	for i, msg := range conv.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// renderMessage renders a single turn with its role label and timestamp.
func (m Model) renderMessage(msg model.Message) string {
	label := m.theme.UserLabel
	if msg.Role == model.RoleAssistant {
		label = m.theme.AssistantLabel
	}
	ts := m.theme.Timestamp.Render(msg.Time().Format("15:04"))
	head := label.Render(msg.Role.DisplayName()) + " " + ts

	body := m.renderContent(msg)
	return head + "\n" + body
}

// renderContent formats the message body. Assistant turns are rendered as
// markdown, except error turns which get the error style. User turns are
// shown verbatim.
func (m Model) renderContent(msg model.Message) string {
	if msg.Role != model.RoleAssistant {
		return msg.Content
	}
	if strings.HasPrefix(msg.Content, chatctl.ErrorTurnPrefix) {
		return m.theme.ErrorTurn.Render(msg.Content)
	}
	return m.renderMarkdown(msg.Content)
}

// renderMarkdown renders markdown content, falling back to the raw text if
// the renderer is unavailable or fails.
func (m Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// renderWelcome renders the empty-conversation placeholder.
func (m Model) renderWelcome() string {
	info := m.theme.WelcomeInfo.Render(
		"Start chatting below.\n\n" +
			shortcutLine(m, "enter", "send") + "\n" +
			shortcutLine(m, "ctrl+n", "new conversation") + "\n" +
			shortcutLine(m, "tab", "switch conversation") + "\n" +
			shortcutLine(m, "ctrl+d", "delete conversation") + "\n" +
			shortcutLine(m, "ctrl+c", "quit"))
	return m.theme.WelcomeBox.Render("Welcome to nimchat\n\n" + info)
}

// shortcutLine formats one key binding for the welcome screen.
func shortcutLine(m Model, key, desc string) string {
	return m.theme.ShortcutKey.Render(key) + " " + m.theme.ShortcutDesc.Render(desc)
}

// renderInput renders the input row, replaced by the spinner while a send
// is in flight.
func (m Model) renderInput() string {
	if m.state == StateSending {
		return m.theme.InputContainer.Width(m.width).Render(
			m.spinner.View() + " Waiting for response...")
	}
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

// renderStatusBar renders the bottom status line.
func (m Model) renderStatusBar() string {
	if m.statusErr != "" {
		return m.theme.StatusError.Width(m.width).Render("✗ " + m.statusErr)
	}
	count := len(m.conversations)
	noun := "conversations"
	if count == 1 {
		noun = "conversation"
	}
	return m.theme.StatusBar.Width(m.width).Render(fmt.Sprintf("%d %s", count, noun))
}
