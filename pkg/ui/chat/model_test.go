package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"chatrelay/pkg/bus"
)

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "exit", want: true},
		{input: " quit ", want: true},
		{input: ":q", want: true},
		{input: "/EXIT", want: true},
		{input: "hello", want: false},
		{input: "quit now", want: false},
	}

	for _, tt := range tests {
		if got := isExitCommand(tt.input); got != tt.want {
			t.Fatalf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSubmitRunsPromptAndAppliesReply(t *testing.T) {
	t.Parallel()

	var got string
	promptFn := func(_ context.Context, prompt string) (Reply, error) {
		got = prompt
		return Reply{Text: "pong", Delivered: true, Recorded: true}, nil
	}

	m := newModel(context.Background(), promptFn, modeInteractive, "", RuntimeInfo{})
	m.booting = false
	m.submit("ping")
	require.True(t, m.isLoading)
	require.Len(t, m.messages, 1)

	msg := sendPromptCmd(context.Background(), promptFn, "ping")()
	_, _ = m.Update(msg)

	require.Equal(t, "ping", got)
	require.False(t, m.isLoading)
	require.Len(t, m.messages, 2)
	require.Equal(t, "assistant", m.messages[1].role)
	require.Equal(t, "pong", m.messages[1].content)
	require.Equal(t, 1, m.delivered)
	require.Equal(t, 1, m.recorded)
	require.Equal(t, 1, conversationTurns(m.messages))
}

func TestApplyReplyShowsNoteForIgnoredMessage(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{})
	m.applyReply(replyMsg{reply: Reply{Note: "ignored: empty message"}})

	require.Len(t, m.messages, 1)
	require.Equal(t, "note", m.messages[0].role)
	require.Zero(t, m.delivered)
}

func TestApplyReplyRecordsError(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{})
	m.isLoading = true
	m.applyReply(replyMsg{err: errors.New("boom")})

	require.False(t, m.isLoading)
	require.Equal(t, "boom", m.lastErr)
	require.Equal(t, "error", m.messages[0].role)
}

func TestReplyBadges(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  []replyBadge
	}{
		{
			name:  "delivered and recorded",
			reply: Reply{Text: "pong", Delivered: true, Recorded: true},
			want:  []replyBadge{{kind: badgeDelivered, label: "delivered"}, {kind: badgeRecorded, label: "recorded"}},
		},
		{
			name:  "delivery failed",
			reply: Reply{Text: "pong"},
			want:  []replyBadge{{kind: badgeUndelivered, label: "not delivered"}},
		},
		{
			name:  "ignored",
			reply: Reply{Note: "ignored: empty message"},
			want:  []replyBadge{{kind: badgeIgnored, label: "ignored: empty message"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, replyBadges(tt.reply))
		})
	}
}

func TestAssistantCardShowsDeliveryBadges(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{})
	m.booting = false
	_, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.applyReply(replyMsg{reply: Reply{Text: "pong", Recorded: true}})

	content := m.viewport.View()
	require.Contains(t, content, "not delivered")
	require.Contains(t, content, "recorded")
}

func TestOneShotQuitsAfterReply(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeOneShot, " ping ", RuntimeInfo{})
	require.Equal(t, "ping", m.oneShotInput)

	m.isLoading = true
	_, cmd := m.Update(replyMsg{reply: Reply{Text: "pong", Delivered: true}})
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	require.True(t, quit)
	require.Contains(t, m.View(), "pong")
}

func TestInteractiveViewShowsRuntimeInfo(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{Provider: "openrouter", Store: "none", Channel: "console"})
	m.booting = false
	_, _ = m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})

	view := m.View()
	require.Contains(t, view, "Chat Relay Console")
	require.Contains(t, view, "provider:openrouter")
	require.Contains(t, view, "model:n/a")
}

func TestBootSequenceFinishes(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{})
	for range len(bootScriptLines()) + 1 {
		_, _ = m.Update(bootTickMsg{})
	}
	require.False(t, m.booting)
	require.False(t, strings.Contains(m.View(), "boot sequence"))
}

func TestNotifierKeepsLastReplyPerChat(t *testing.T) {
	t.Parallel()

	n := NewNotifier()
	require.Equal(t, "console", n.Name())

	_, ok := n.Last("a")
	require.False(t, ok)

	require.NoError(t, n.Notify(context.Background(), bus.OutboundMessage{ChatID: "a", Text: "one"}))
	require.NoError(t, n.Notify(context.Background(), bus.OutboundMessage{ChatID: "a", Text: "two"}))
	require.NoError(t, n.Notify(context.Background(), bus.OutboundMessage{ChatID: "b", Text: "three"}))

	last, ok := n.Last("a")
	require.True(t, ok)
	require.Equal(t, "two", last)
}
