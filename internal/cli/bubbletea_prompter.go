package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type bubbleTeaPrompter struct {
	in       io.Reader
	out      io.Writer
	theme    confirmTheme
	fallback prompter
}

func newBubbleTeaPrompter(in io.Reader, out io.Writer) *bubbleTeaPrompter {
	return &bubbleTeaPrompter{
		in:       in,
		out:      out,
		theme:    newConfirmTheme(supportsColor(out)),
		fallback: newTerminalPrompter(in, out),
	}
}

func (p *bubbleTeaPrompter) ConfirmRemoval(ctx context.Context, kind string, targets []string) (bool, error) {
	model := newConfirmModel(kind, targets, p.theme)
	prog := tea.NewProgram(model, tea.WithInput(p.in), tea.WithOutput(p.out), tea.WithContext(ctx))

	final, err := prog.Run()
	if err != nil {
		return p.fallback.ConfirmRemoval(ctx, kind, targets)
	}
	m, ok := final.(*confirmModel)
	if !ok || m.aborted {
		return p.fallback.ConfirmRemoval(ctx, kind, targets)
	}
	return m.confirmed, nil
}

type confirmTheme struct {
	color        bool
	title        lipgloss.Style
	value        lipgloss.Style
	option       lipgloss.Style
	optionActive lipgloss.Style
	help         lipgloss.Style
	prefixActive string
	prefixIdle   string
}

func newConfirmTheme(color bool) confirmTheme {
	if !color {
		return confirmTheme{
			color:        false,
			title:        lipgloss.NewStyle().Bold(true),
			value:        lipgloss.NewStyle(),
			option:       lipgloss.NewStyle().PaddingLeft(2),
			optionActive: lipgloss.NewStyle().PaddingLeft(2).Bold(true),
			help:         lipgloss.NewStyle().Faint(true),
			prefixActive: ">",
			prefixIdle:   " ",
		}
	}

	accent := lipgloss.Color("#ff5f87")
	muted := lipgloss.Color("#9fb3c8")

	return confirmTheme{
		color:        true,
		title:        lipgloss.NewStyle().Foreground(accent).Bold(true),
		value:        lipgloss.NewStyle().Foreground(accent),
		option:       lipgloss.NewStyle().PaddingLeft(2),
		optionActive: lipgloss.NewStyle().PaddingLeft(2).Foreground(accent).Bold(true),
		help:         lipgloss.NewStyle().Foreground(muted).Faint(true),
		prefixActive: lipgloss.NewStyle().Foreground(accent).Render("❯"),
		prefixIdle:   lipgloss.NewStyle().Foreground(muted).Render("•"),
	}
}

type confirmModel struct {
	kind    string
	targets []string
	theme   confirmTheme

	cursor    int
	confirmed bool
	aborted   bool
	done      bool
}

func newConfirmModel(kind string, targets []string, theme confirmTheme) *confirmModel {
	// Cursor starts on "keep": destructive choice requires deliberate input.
	return &confirmModel{kind: kind, targets: targets, theme: theme, cursor: 1}
}

func (m *confirmModel) Init() tea.Cmd {
	return nil
}

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.aborted = true
		return m, tea.Quit
	case "up", "k", "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j", "right", "l", "tab":
		if m.cursor < 1 {
			m.cursor++
		}
	case "y":
		m.confirmed = true
		m.done = true
		return m, tea.Quit
	case "n":
		m.done = true
		return m, tea.Quit
	case "enter":
		m.confirmed = m.cursor == 0
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *confirmModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.theme.title.Render(fmt.Sprintf("Remove %d %s(s)?", len(m.targets), m.kind)))
	b.WriteString("\n")
	for _, target := range m.targets {
		b.WriteString("  ")
		b.WriteString(m.theme.value.Render(target))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	labels := []string{"Remove", "Keep"}
	for i, label := range labels {
		prefix, style := m.theme.prefixIdle, m.theme.option
		if i == m.cursor {
			prefix, style = m.theme.prefixActive, m.theme.optionActive
		}
		b.WriteString(prefix)
		b.WriteString(style.Render(label))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.help.Render("↑/↓ select · enter confirm · y/n shortcut · esc cancel"))
	b.WriteString("\n")
	return b.String()
}
