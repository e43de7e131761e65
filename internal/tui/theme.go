package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mathrealm/backend/internal/progression"
)

// Realm colors, lowest to highest.
var realmColors = [...]lipgloss.Color{
	"#9ca3af", // Mortal
	"#22c55e", // Qi Refining
	"#06b6d4", // Foundation
	"#3b82f6", // Core Formation
	"#a855f7", // Nascent Soul
	"#d946ef", // Spirit Severing
	"#f59e0b", // Void Refinement
	"#ef4444", // Tribulation
	"#fde68a", // Immortal
}

// Rarity colors.
var (
	ColorCommon    = lipgloss.Color("#9ca3af")
	ColorUncommon  = lipgloss.Color("#22c55e")
	ColorRare      = lipgloss.Color("#3b82f6")
	ColorLegendary = lipgloss.Color("#f59e0b")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// RealmColor returns the color for a realm.
func RealmColor(r progression.Realm) lipgloss.Color {
	return realmColors[r.Rank()]
}

// RarityColor returns the color for an item rarity.
func RarityColor(r progression.Rarity) lipgloss.Color {
	switch r {
	case progression.RarityUncommon:
		return ColorUncommon
	case progression.RarityRare:
		return ColorRare
	case progression.RarityLegendary:
		return ColorLegendary
	default:
		return ColorCommon
	}
}

// ComboColor shifts from calm to hot as the combo grows.
func ComboColor(combo int) lipgloss.Color {
	switch {
	case combo >= 10:
		return ColorDanger
	case combo >= 5:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StylePrompt = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright).
			Padding(0, 1)

	StyleCorrect = lipgloss.NewStyle().Foreground(ColorHealthy)
	StyleWrong   = lipgloss.NewStyle().Foreground(ColorDanger)
	StyleReward  = lipgloss.NewStyle().Foreground(ColorLegendary).Bold(true)
)
