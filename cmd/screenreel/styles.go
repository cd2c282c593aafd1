package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	BulletStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingRight(1)
	TextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	SpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func title(s string) string {
	return BulletStyle.Render("┌") + TitleStyle.Render(s)
}

// styleOutput renders status lines as a tree hanging off the title.
func styleOutput(statuses []string) string {
	var styled []string
	for i, status := range statuses {
		bullet := "├"
		if i == len(statuses)-1 {
			bullet = "└"
		}
		styled = append(styled, BulletStyle.Render(bullet)+TextStyle.Render(status))
	}
	if len(styled) == 0 {
		return ""
	}
	return strings.Join(styled, "\n") + "\n"
}
