package chat

import "github.com/charmbracelet/lipgloss"

// palette holds the console's ANSI 256 colors.
type palette struct {
	ink, paper, frame          lipgloss.Color
	user, assistant, note, bad lipgloss.Color
	ok, muted                  lipgloss.Color
}

var relayPalette = palette{
	ink:       "230",
	paper:     "24",
	frame:     "30",
	user:      "214",
	assistant: "44",
	note:      "109",
	bad:       "203",
	ok:        "114",
	muted:     "244",
}

type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	bootLine   lipgloss.Style
	bootDone   lipgloss.Style

	userBox, userTitle           lipgloss.Style
	assistantBox, assistantTitle lipgloss.Style
	noteBox, noteTitle           lipgloss.Style
	errorBox, errorTitle         lipgloss.Style

	// Delivery badges under a reply card.
	badgeDelivered   lipgloss.Style
	badgeUndelivered lipgloss.Style
	badgeRecorded    lipgloss.Style
	badgeIgnored     lipgloss.Style

	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	inputLabel lipgloss.Style
	input      lipgloss.Style
	viewport   lipgloss.Style
}

func defaultTheme() theme {
	p := relayPalette

	return theme{
		header:     lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(p.ink).Background(p.paper),
		headerMeta: lipgloss.NewStyle().Foreground(lipgloss.Color("152")),
		divider:    lipgloss.NewStyle().Foreground(p.frame),
		bootLine:   lipgloss.NewStyle().Foreground(lipgloss.Color("116")),
		bootDone:   lipgloss.NewStyle().Foreground(p.ok).Bold(true),

		userBox:        cardBox(lipgloss.NormalBorder(), p.user),
		userTitle:      cardTitle(p.user),
		assistantBox:   cardBox(lipgloss.NormalBorder(), p.assistant),
		assistantTitle: cardTitle(p.assistant),
		noteBox:        cardBox(lipgloss.RoundedBorder(), p.note).Foreground(lipgloss.Color("252")).Italic(true),
		noteTitle:      cardTitle(p.note),
		errorBox:       cardBox(lipgloss.NormalBorder(), p.bad).Foreground(p.bad),
		errorTitle:     cardTitle(p.bad).Foreground(lipgloss.Color("231")),

		badgeDelivered:   badge(p.ok),
		badgeUndelivered: badge(p.bad),
		badgeRecorded:    badge(p.assistant),
		badgeIgnored:     badge(p.note),

		status:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Bold(true),
		statusBusy: lipgloss.NewStyle().Foreground(p.user).Bold(true),
		statusErr:  lipgloss.NewStyle().Foreground(p.bad).Bold(true),
		hint:       lipgloss.NewStyle().Foreground(p.muted),
		inputLabel: lipgloss.NewStyle().Bold(true).Foreground(p.ink),
		input:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.frame).Padding(0, 1),
		viewport:   lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(p.frame).Padding(0, 1),
	}
}

func cardBox(border lipgloss.Border, accent lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(border).BorderForeground(accent).Padding(0, 1)
}

func cardTitle(accent lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("16")).Background(accent).Padding(0, 1)
}

func badge(color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(color).Bold(true)
}
