package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// panel renders label/value rows under a title inside a rounded box.
type panel struct {
	title string
	rows  []string
}

func (p *panel) add(label string, format string, args ...any) {
	p.rows = append(p.rows, labelStyle.Render(label)+valueStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *panel) String() string {
	body := titleStyle.Render(p.title) + "\n" + strings.Join(p.rows, "\n")
	return boxStyle.Render(body)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%+.4f", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
