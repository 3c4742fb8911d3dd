package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/sluice/cli/reader"
)

// InspectModel is a Bubble Tea model for the request inspect view. The
// cursor selects one upload; its details are shown below the list.
type InspectModel struct {
	viewType string
	data     any
	cursor   int
	help     help.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
		help:     help.New(),
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < m.uploadCount()-1 {
				m.cursor++
			}
		}
	}

	return m, nil
}

func (m InspectModel) uploadCount() int {
	if data, ok := m.data.(*reader.InspectRequestResponse); ok {
		return len(data.Uploads)
	}
	return 0
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewInspectRequest:
		content = m.renderInspectRequest()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	return content + "\n" + HelpStyle.Render(m.help.View(keys))
}

func (m InspectModel) renderInspectRequest() string {
	data, ok := m.data.(*reader.InspectRequestResponse)
	if !ok {
		return "Invalid data type for inspect_request"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Request " + data.RequestID))
	b.WriteString("\n")

	if sum := data.Summary; sum != nil {
		writeRow(&b, "Status", StatusStyle(sum.Status).Render(string(sum.Status)))
		writeRow(&b, "Message", ValueStyle.Render(sum.Message))
		if sum.RemoteAddr != nil {
			writeRow(&b, "Remote Addr", ValueStyle.Render(*sum.RemoteAddr))
		}
		writeRow(&b, "Parts", ValueStyle.Render(fmt.Sprintf("%d (%d files, %d fields)", sum.Parts, sum.Files, sum.Fields)))
		writeRow(&b, "Bytes", ValueStyle.Render(fmt.Sprintf("%d", sum.Bytes)))
		writeRow(&b, "Duration", ValueStyle.Render(fmt.Sprintf("%.3fs", sum.DurationSeconds)))
		writeRow(&b, "Recorded", ValueStyle.Render(sum.Ts))
	} else {
		writeRow(&b, "Status", MutedStyle.Render("no request summary recorded"))
	}

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Uploads (%d)", len(data.Uploads))))
	b.WriteString("\n")
	if len(data.Uploads) == 0 {
		b.WriteString(MutedStyle.Render("(none)"))
		return BoxStyle.Render(b.String())
	}

	for i, rec := range data.Uploads {
		line := fmt.Sprintf("%3d  %-32s %10d", rec.PartIndex, rec.StoredName, rec.Bytes)
		if rec.Truncated {
			line += " " + WarningStyle.Render("truncated")
		}
		if i == m.cursor {
			b.WriteString(SelectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.cursor < len(data.Uploads) {
		rec := data.Uploads[m.cursor]
		b.WriteString("\n")
		writeRow(&b, "Field", ValueStyle.Render(rec.FieldName))
		writeRow(&b, "Original", ValueStyle.Render(rec.OriginalName))
		writeRow(&b, "Location", ValueStyle.Render(rec.Location))
		if rec.ContentType != "" {
			writeRow(&b, "Content-Type", ValueStyle.Render(rec.ContentType))
		}
		writeRow(&b, "Elapsed", ValueStyle.Render(fmt.Sprintf("%.3fs", rec.ElapsedSeconds)))
	}

	return BoxStyle.Render(b.String())
}

func writeRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s %s\n", LabelStyle.Render(label+":"), value)
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
