package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/meszmate/quickchat/internal/client"
	"github.com/meszmate/quickchat/internal/roster"
	"github.com/meszmate/quickchat/internal/transport"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	peerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	selfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	inputStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true)
)

type connectedMsg struct{ snap *roster.Snapshot }
type connectErrMsg struct{ err error }
type incomingMsg struct {
	userID int
	msg    client.Message
}
type systemMsg struct {
	userID int
	msg    client.Message
}
type receiptMsg struct {
	kind      string
	messageID string
}
type typingMsg struct {
	composing bool
	userID    int
}

type model struct {
	session *client.Session
	creds   transport.Credentials
	peerID  int

	width      int
	height     int
	lines      []string
	input      string
	status     string
	peerTyping bool
	composing  bool
}

func newModel(session *client.Session, creds transport.Credentials, peerID int) model {
	return model{
		session: session,
		creds:   creds,
		peerID:  peerID,
		status:  "connecting...",
	}
}

func (m model) Init() tea.Cmd {
	return m.connect
}

func (m model) connect() tea.Msg {
	snap, err := m.session.Connect(context.Background(), m.creds)
	if err != nil {
		return connectErrMsg{err: err}
	}
	return connectedMsg{snap: snap}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case connectedMsg:
		m.status = fmt.Sprintf("connected as %d, %d contacts", m.creds.UserID, msg.snap.Len())

	case connectErrMsg:
		m.status = errorStyle.Render(fmt.Sprintf("connect failed: %v", msg.err))

	case incomingMsg:
		body := msg.msg.Extension["body"]
		m.lines = append(m.lines, peerStyle.Render(fmt.Sprintf("%d", msg.userID))+" "+body)
		m.peerTyping = false

	case systemMsg:
		m.lines = append(m.lines, systemStyle.Render(fmt.Sprintf("[system %d] %v", msg.userID, msg.msg.Extension)))

	case receiptMsg:
		m.lines = append(m.lines, statusStyle.Render(fmt.Sprintf("message %s %s", msg.messageID, msg.kind)))

	case typingMsg:
		if msg.userID == m.peerID {
			m.peerTyping = msg.composing
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.session.Disconnect()
		return m, tea.Quit

	case tea.KeyEnter:
		return m.submit()

	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}

	case tea.KeyRunes, tea.KeySpace:
		if msg.Type == tea.KeySpace {
			m.input += " "
		} else {
			m.input += string(msg.Runes)
		}
		if !m.composing {
			m.composing = true
			m.session.SendIsTypingStatus(m.peerID)
		}
	}
	return m, nil
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input)
	m.input = ""

	if m.composing {
		m.composing = false
		m.session.SendIsStopTypingStatus(m.peerID)
	}
	if text == "" {
		return m, nil
	}

	switch text {
	case "/quit":
		m.session.Disconnect()
		return m, tea.Quit
	case "/typing":
		m.session.SendIsTypingStatus(m.peerID)
		return m, nil
	}

	out := &client.Message{
		Type:      "chat",
		Extension: map[string]string{"body": text, "save_to_history": "1"},
		Markable:  true,
	}
	if err := m.session.Send(m.peerID, out); err != nil {
		m.lines = append(m.lines, errorStyle.Render(fmt.Sprintf("send failed: %v", err)))
		return m, nil
	}
	m.lines = append(m.lines, selfStyle.Render("me")+" "+text+statusStyle.Render(" ("+out.ID+")"))
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("quickchat - %d", m.peerID)))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n\n")

	visible := m.lines
	if limit := m.height - 6; limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	b.WriteString(strings.Join(visible, "\n"))
	b.WriteString("\n")

	if m.peerTyping {
		b.WriteString(statusStyle.Render(fmt.Sprintf("%d is typing...", m.peerID)))
	}
	b.WriteString("\n")
	b.WriteString(inputStyle.Width(max(m.width-2, 20)).Render("> " + m.input))
	return b.String()
}
