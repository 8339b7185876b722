// Package ui holds the terminal styles used by the storysync CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/talekeeper/storysync/internal/remote"
)

var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#4ade80"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#fbbf24"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#60a5fa"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}

	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	HeaderStyle = lipgloss.NewStyle().Bold(true)
	LabelStyle  = lipgloss.NewStyle().Foreground(ColorMuted).Width(12)
)

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderHeader(s string) string { return HeaderStyle.Render(s) }

// RenderField renders "label  value" with the label in a fixed-width column.
func RenderField(label string, value any) string {
	return LabelStyle.Render(label) + fmt.Sprint(value)
}

// RenderStatus colours a remote status by severity.
func RenderStatus(st remote.Status) string {
	switch st.State {
	case remote.StateAvailable:
		return RenderPass(st.String())
	case remote.StateUnavailable, "":
		return RenderWarn(st.String())
	default:
		return RenderFail(st.String())
	}
}

// RenderTable lays rows out in columns padded to the widest cell. The first
// row is rendered as a header.
func RenderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := lipgloss.NewStyle()
			if i < len(widths) {
				style = style.Width(widths[i])
			}
			if r == 0 {
				style = style.Bold(true)
			}
			cells[i] = style.Render(cell)
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
