package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type mode int

const (
	modeInteractive mode = iota
	modeOneShot
)

const mouseScrollLines = 3

type chatMessage struct {
	role    string
	content string
	reply   Reply
}

type badgeKind int

const (
	badgeDelivered badgeKind = iota
	badgeUndelivered
	badgeRecorded
	badgeIgnored
)

type replyBadge struct {
	kind  badgeKind
	label string
}

type replyMsg struct {
	reply Reply
	err   error
}

type bootTickMsg struct{}

type model struct {
	ctx          context.Context
	promptFn     PromptFunc
	mode         mode
	oneShotInput string

	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	messages  []chatMessage
	width     int
	height    int
	isReady   bool
	isLoading bool
	lastErr   string
	booting   bool
	bootStep  int
	followLog bool
	runtime   RuntimeInfo
	delivered int
	recorded  int
}

func newModel(ctx context.Context, promptFn PromptFunc, runMode mode, prompt string, info RuntimeInfo) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Type a message, or /start..."
	in.Focus()
	in.CharLimit = 0

	vp := viewport.New(80, 12)

	return &model{
		ctx:          ctx,
		promptFn:     promptFn,
		mode:         runMode,
		oneShotInput: strings.TrimSpace(prompt),
		theme:        defaultTheme(),
		spinner:      spin,
		input:        in,
		viewport:     vp,
		width:        100,
		height:       28,
		booting:      runMode == modeInteractive,
		followLog:    true,
		runtime:      info,
	}
}

func (m *model) Init() tea.Cmd {
	if m.mode == modeOneShot {
		return m.submit(m.oneShotInput)
	}

	return bootTickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case bootTickMsg:
		if !m.booting {
			return m, nil
		}

		m.bootStep++
		if m.bootStep < len(bootScriptLines())+1 {
			return m, bootTickCmd()
		}

		m.booting = false
		return m, textinput.Blink
	case tea.MouseMsg:
		if m.mode == modeInteractive && !m.booting {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.booting || m.mode == modeOneShot {
			return m, nil
		}

		if m.handleViewportKey(typed) {
			return m, nil
		}

		if typed.String() == "enter" {
			if m.isLoading {
				return m, nil
			}

			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" {
				return m, nil
			}
			if isExitCommand(prompt) {
				return m, tea.Quit
			}

			m.input.SetValue("")
			return m, m.submit(prompt)
		}
	}

	if m.mode == modeInteractive {
		m.input, cmd = m.input.Update(msg)
	}

	switch typed := msg.(type) {
	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case replyMsg:
		m.applyReply(typed)
		if m.mode == modeOneShot {
			return m, tea.Quit
		}
	}

	return m, cmd
}

func (m *model) submit(prompt string) tea.Cmd {
	m.lastErr = ""
	m.messages = append(m.messages, chatMessage{role: "user", content: prompt})
	m.isLoading = true
	m.followLog = true
	m.refreshViewport(true)

	return tea.Batch(m.spinner.Tick, sendPromptCmd(m.ctx, m.promptFn, prompt))
}

func (m *model) applyReply(msg replyMsg) {
	m.isLoading = false
	if msg.err != nil {
		m.lastErr = msg.err.Error()
		m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		m.refreshViewport(false)
		return
	}

	m.lastErr = ""
	if msg.reply.Delivered {
		m.delivered++
	}
	if msg.reply.Recorded {
		m.recorded++
	}

	if strings.TrimSpace(msg.reply.Text) == "" && msg.reply.Note != "" {
		m.messages = append(m.messages, chatMessage{role: "note", content: msg.reply.Note, reply: msg.reply})
	} else {
		m.messages = append(m.messages, chatMessage{role: "assistant", content: msg.reply.Text, reply: msg.reply})
	}
	m.refreshViewport(false)
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.mode == modeOneShot {
		return m.oneShotView()
	}
	if m.booting {
		return m.bootView()
	}

	header := m.theme.header.Width(m.width - 2).Render("📟 Chat Relay Console")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"provider:%s · model:%s · channel:%s · store:%s · turns:%d · delivered:%d · recorded:%d",
		displayOrNA(m.runtime.Provider),
		displayOrNA(m.runtime.Model),
		displayOrNA(m.runtime.Channel),
		displayOrNA(m.runtime.Store),
		conversationTurns(m.messages),
		m.delivered,
		m.recorded,
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("💡 Enter send  ·  PgUp/PgDn scroll  ·  End jump latest  ·  🛑 Ctrl+C/Esc quit")
	if m.isLoading {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s ⚡ relaying message...", m.spinner.View()))
	}
	if m.lastErr != "" {
		status = m.theme.statusErr.Render("🚨 last message failed - try again")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("👤 You")+" "+m.theme.hint.Render("(type /exit, quit, or :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(50, m.width-6)
	h := m.height - 10
	if m.mode == modeOneShot {
		h = m.height - 6
	}
	h = max(8, h)

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	var sections []string
	for _, item := range m.messages {
		switch item.role {
		case "user":
			sections = append(sections, m.renderCard(
				m.theme.userTitle.Render("▛▚ [ 👤 ] ▞▜"),
				m.theme.userBox.Width(m.viewport.Width).Render(strings.TrimSpace(item.content)),
			))
		case "assistant":
			body := strings.TrimSpace(item.content) + "\n\n" + m.renderBadges(item.reply)
			sections = append(sections, m.renderCard(
				m.theme.assistantTitle.Render("▛▚ [ 🤖 ] ▞▜"),
				m.theme.assistantBox.Width(m.viewport.Width).Render(body),
			))
		case "note":
			sections = append(sections, m.renderCard(
				m.theme.noteTitle.Render("▛▚ [NOTE] ▞▜"),
				m.theme.noteBox.Width(m.viewport.Width).Render(m.renderBadges(item.reply)),
			))
		case "error":
			sections = append(sections, m.renderCard(
				m.theme.errorTitle.Render("▛▚ [ERROR] ▞▜"),
				m.theme.errorBox.Width(m.viewport.Width).Render(strings.TrimSpace(item.content)),
			))
		}
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderCard(title string, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (m *model) oneShotView() string {
	contentWidth := max(40, m.width-6)
	parts := []string{m.renderCard(
		m.theme.userTitle.Render("▛▚ [SENT] ▞▜"),
		m.theme.userBox.Width(contentWidth).Render(m.oneShotInput),
	)}

	if m.isLoading {
		parts = append(parts, m.theme.statusBusy.Render(fmt.Sprintf("%s ⚡ waiting for the relay...", m.spinner.View())))
		return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
	}

	if m.lastErr != "" {
		parts = append(parts, m.renderCard(
			m.theme.errorTitle.Render("▛▚ [ERROR] ▞▜"),
			m.theme.errorBox.Width(contentWidth).Render(strings.TrimSpace(m.lastErr)),
		))
		return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n\n"
	}

	answer := ""
	for i := len(m.messages) - 1; i >= 0; i-- {
		item := m.messages[i]
		if item.role == "assistant" {
			answer = strings.TrimSpace(item.content) + "\n\n" + m.renderBadges(item.reply)
			break
		}
		if item.role == "note" {
			answer = m.renderBadges(item.reply)
			break
		}
	}

	parts = append(parts, m.renderCard(
		m.theme.assistantTitle.Render("▛▚ [REPLY] ▞▜"),
		m.theme.assistantBox.Width(contentWidth).Render(strings.TrimSpace(answer)),
	))

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n\n"
}

func (m *model) bootView() string {
	header := m.theme.header.Width(m.width - 2).Render("📟 Chat Relay Console")
	meta := m.theme.headerMeta.Render("boot sequence")
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	script := bootScriptLines()
	count := min(m.bootStep, len(script))
	visible := make([]string, 0, count+1)
	for i := range count {
		visible = append(visible, m.theme.bootLine.Render(script[i]))
	}
	if m.bootStep > len(script) {
		visible = append(visible, m.theme.bootDone.Render("✅ relay online"))
	}

	body := m.theme.viewport.Width(m.width - 2).Render(strings.Join(visible, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, meta, line, body)
}

func bootTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(_ time.Time) tea.Msg {
		return bootTickMsg{}
	})
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(mouseScrollLines)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(mouseScrollLines)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func bootScriptLines() []string {
	return []string{
		"[BOOT] configuration loaded",
		"[BOOT] completion provider wired",
		"[BOOT] exchange sink resolved",
		"[BOOT] pipeline armed",
	}
}

func sendPromptCmd(ctx context.Context, promptFn PromptFunc, prompt string) tea.Cmd {
	return func() tea.Msg {
		reply, err := promptFn(ctx, prompt)
		return replyMsg{reply: reply, err: err}
	}
}

// replyBadges describes what the relay did with a reply. An ignored message
// only carries its reason.
func replyBadges(reply Reply) []replyBadge {
	if strings.TrimSpace(reply.Text) == "" && reply.Note != "" {
		return []replyBadge{{kind: badgeIgnored, label: reply.Note}}
	}

	badges := []replyBadge{{kind: badgeUndelivered, label: "not delivered"}}
	if reply.Delivered {
		badges[0] = replyBadge{kind: badgeDelivered, label: "delivered"}
	}
	if reply.Recorded {
		badges = append(badges, replyBadge{kind: badgeRecorded, label: "recorded"})
	}
	if reply.Note != "" {
		badges = append(badges, replyBadge{kind: badgeIgnored, label: reply.Note})
	}

	return badges
}

func (m *model) renderBadges(reply Reply) string {
	badges := replyBadges(reply)
	rendered := make([]string, 0, len(badges))
	for _, b := range badges {
		style := m.theme.badgeIgnored
		switch b.kind {
		case badgeDelivered:
			style = m.theme.badgeDelivered
		case badgeUndelivered:
			style = m.theme.badgeUndelivered
		case badgeRecorded:
			style = m.theme.badgeRecorded
		}
		rendered = append(rendered, style.Render("● "+b.label))
	}

	return strings.Join(rendered, m.theme.hint.Render("  "))
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func conversationTurns(messages []chatMessage) int {
	count := 0
	for _, message := range messages {
		if message.role == "user" {
			count++
		}
	}

	return count
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
