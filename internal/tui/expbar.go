package tui

import (
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	fps           = 60
	settleEpsilon = 0.001
)

type frameMsg time.Time

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// expBar springs toward the fraction of exp earned in the current realm.
type expBar struct {
	spring    harmonica.Spring
	pos, vel  float64
	target    float64
	animating bool
}

func newExpBar(fraction float64) expBar {
	return expBar{
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.6),
		pos:    fraction,
		target: fraction,
	}
}

// SetTarget moves the bar toward fraction. When the realm changed the bar
// restarts from empty. It returns a frame command if an animation started.
func (b *expBar) SetTarget(fraction float64, newRealm bool) tea.Cmd {
	if newRealm {
		b.pos, b.vel = 0, 0
	}
	b.target = fraction
	if b.animating || b.settled() {
		return nil
	}
	b.animating = true
	return frame()
}

// Step advances one frame and returns the next frame command, or nil once
// the bar has settled.
func (b *expBar) Step() tea.Cmd {
	b.pos, b.vel = b.spring.Update(b.pos, b.vel, b.target)
	if b.settled() {
		b.pos, b.vel = b.target, 0
		b.animating = false
		return nil
	}
	return frame()
}

func (b *expBar) settled() bool {
	return math.Abs(b.pos-b.target) < settleEpsilon && math.Abs(b.vel) < settleEpsilon
}

func (b expBar) View(width int, color lipgloss.Color) string {
	if width < 4 {
		width = 4
	}
	filled := int(math.Round(min(max(b.pos, 0), 1) * float64(width)))
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	return bar + StyleDimmed.Render(strings.Repeat("░", width-filled))
}
