package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/sluice/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsUploads:
		content = m.renderStatsUploads()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsUploads() string {
	data, ok := m.data.(*reader.UploadStats)
	if !ok {
		return "Invalid data type for stats_uploads"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Upload Statistics"))
	b.WriteString("\n\n")

	requests := []string{
		m.renderStatBox("Requests", fmt.Sprintf("%d", data.Requests), highlightColor),
		m.renderStatBox("Succeeded", fmt.Sprintf("%d", data.Succeeded), successColor),
		m.renderStatBox("Truncated", fmt.Sprintf("%d", data.Truncated), warningColor),
		m.renderStatBox("Failed", fmt.Sprintf("%d", data.Failed+data.Canceled), errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, requests...))
	b.WriteString("\n")

	files := []string{
		m.renderStatBox("Files", fmt.Sprintf("%d", data.Files), highlightColor),
		m.renderStatBox("Stored", humanBytes(data.Bytes), primaryColor),
		m.renderStatBox("Largest", humanBytes(data.LargestFile), primaryColor),
		m.renderStatBox("Throughput", humanBytes(int64(data.BytesPerSecond))+"/s", mutedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, files...))

	if data.FirstTs != "" {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s .. %s",
			LabelStyle.Render("Window:"),
			ValueStyle.Render(data.FirstTs),
			ValueStyle.Render(data.LastTs)))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// humanBytes formats n with a binary unit suffix.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
