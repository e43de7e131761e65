package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mathrealm/backend/internal/progression"
	"github.com/mathrealm/backend/internal/tui"
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	styleKey   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	styleMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleGood  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	styleWarn  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	styleBad   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	styleGold  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)

func labelValue(label string, value any) string {
	return styleKey.Render(label+":") + " " + fmt.Sprint(value)
}

func realmName(r progression.Realm) string {
	return lipgloss.NewStyle().Bold(true).Foreground(tui.RealmColor(r)).Render(r.String())
}

// effectLines describes completions and breakthroughs, one per line.
func effectLines(e progression.Effects) []string {
	var lines []string
	for _, c := range e.Completed {
		line := fmt.Sprintf("★ %s: %s", c.Tracker, c.Name)
		if c.Reward.Exp > 0 {
			line += fmt.Sprintf(" (+%d exp)", c.Reward.Exp)
		}
		lines = append(lines, styleGold.Render(line))
	}
	for _, r := range e.LevelUp.Crossed {
		lines = append(lines, "⚡ Breakthrough! Reached "+realmName(r))
	}
	return lines
}
