// Package tui is the terminal play screen: answer problems, watch the exp
// bar fill and read what each answer unlocked.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mathrealm/backend/internal/problem"
	"github.com/mathrealm/backend/internal/progression"
	"github.com/mathrealm/backend/internal/save"
)

const (
	maxLogEntries = 200
	headerHeight  = 9
	saveTimeout   = 10 * time.Second
)

// Saver persists a captured document. *save.Manager satisfies it.
type Saver interface {
	Save(ctx context.Context, playerID string, doc *save.Document) save.SaveResult
}

// Config tunes the play screen.
type Config struct {
	PlayerID string
	Saver    Saver
	// AutosaveEvery saves after this many answers. Zero disables autosave.
	AutosaveEvery int
}

type savedMsg struct {
	result save.SaveResult
}

// Model is the root Bubble Tea model of the play screen.
type Model struct {
	cfg     Config
	session *progression.Session
	gen     *problem.Generator

	keys  KeyMap
	help  help.Model
	input textinput.Model
	log   viewport.Model
	bar   expBar

	status   progression.Status
	current  problem.Problem
	entries  []string
	answered int
	width    int
	height   int
	quitting bool
}

// New creates the play screen for s. The caller saves s after the program
// exits.
func New(s *progression.Session, gen *problem.Generator, cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "your answer, or /checkin /zone <id> /quit"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	st := s.Status()
	m := Model{
		cfg:     cfg,
		session: s,
		gen:     gen,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		input:   ti,
		log:     viewport.New(80, 10),
		bar:     newExpBar(st.RealmProgress),
		status:  st,
	}
	m.nextProblem()
	m.addEntry(StyleDimmed.Render(fmt.Sprintf("Welcome back, %s cultivator. Solve problems to gather qi.", st.Realm)))
	return m
}

// Session returns the session being played.
func (m Model) Session() *progression.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = max(msg.Width-2, 20)
		m.log.Height = max(msg.Height-headerHeight, 3)
		m.help.Width = msg.Width
		m.log.SetContent(strings.Join(m.entries, "\n"))
		m.log.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		case key.Matches(msg, m.keys.Skip):
			m.addEntry(StyleDimmed.Render(fmt.Sprintf("skipped %s = %d", m.current.Prompt(), m.current.Answer)))
			m.nextProblem()
			return m, nil
		case key.Matches(msg, m.keys.CheckIn):
			cmd := m.checkIn()
			return m, cmd
		case key.Matches(msg, m.keys.LogUp), key.Matches(msg, m.keys.LogDown):
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			return m, cmd
		}

	case frameMsg:
		cmd := m.bar.Step()
		return m, cmd

	case savedMsg:
		switch {
		case msg.result.PersistedRemotely:
			m.addEntry(StyleDimmed.Render("progress saved"))
		case msg.result.Success:
			m.addEntry(StyleDimmed.Render("progress saved locally"))
		default:
			m.addEntry(StyleWrong.Render("autosave failed"))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		switch fields[0] {
		case "/quit":
			m.quitting = true
			return m, tea.Quit
		case "/checkin":
			cmd := m.checkIn()
			return m, cmd
		case "/skip":
			m.nextProblem()
			return m, nil
		case "/zone":
			if len(fields) != 2 {
				m.addEntry(StyleWrong.Render("usage: /zone <id>"))
				return m, nil
			}
			cmd := m.enterZone(fields[1])
			return m, cmd
		default:
			m.addEntry(StyleWrong.Render("unknown command " + fields[0]))
			return m, nil
		}
	}

	correct, err := m.current.Check(text)
	if err != nil {
		m.addEntry(StyleWrong.Render(err.Error()))
		return m, nil
	}
	cmd := m.answer(correct)
	return m, cmd
}

func (m *Model) answer(correct bool) tea.Cmd {
	out := m.session.SubmitAnswer(progression.AnswerInput{
		Correct:    correct,
		Difficulty: m.current.Difficulty,
		ConceptID:  m.current.ConceptID,
	})

	if correct {
		line := fmt.Sprintf("✓ %s = %d  +%d exp", m.current.Prompt(), m.current.Answer, out.Reward.Exp)
		if out.Reward.Critical {
			line += "  critical!"
		}
		if out.Combo > 1 {
			line += lipgloss.NewStyle().Foreground(ComboColor(out.Combo)).Render(fmt.Sprintf("  combo ×%d", out.Combo))
		}
		m.addEntry(StyleCorrect.Render(line))
		for _, b := range out.Reward.Bonuses {
			m.addEntry(StyleReward.Render(fmt.Sprintf("  bonus %s +%d exp", b.Kind, b.Exp)))
		}
	} else {
		m.addEntry(StyleWrong.Render(fmt.Sprintf("✗ %s = %d", m.current.Prompt(), m.current.Answer)))
	}
	if out.Drop != nil {
		m.addEntry(m.itemLine("  found", out.Drop.ItemID, out.Drop.Quantity))
	}

	cmds := []tea.Cmd{m.applyEffects(out.Effects)}
	m.answered++
	if m.autosaveDue() {
		cmds = append(cmds, m.autosave())
	}
	m.nextProblem()
	return tea.Batch(cmds...)
}

func (m *Model) checkIn() tea.Cmd {
	out := m.session.CheckIn()
	if !out.Success {
		m.addEntry(StyleDimmed.Render("already checked in today"))
		return nil
	}
	line := fmt.Sprintf("☀ day %d of your streak", out.ConsecutiveDays)
	if out.Reward != nil {
		line += fmt.Sprintf("  +%d exp", out.Reward.Exp)
	}
	m.addEntry(StyleReward.Render(line))
	return m.applyEffects(out.Effects)
}

func (m *Model) enterZone(id string) tea.Cmd {
	out, err := m.session.EnterZone(id)
	if err != nil {
		m.addEntry(StyleWrong.Render(err.Error()))
		return nil
	}
	line := "you travel to " + id
	if out.New {
		line += fmt.Sprintf("  (%d zones explored)", out.Explored)
	}
	m.addEntry(StyleHeader.Render(line))
	return m.applyEffects(out.Effects)
}

// applyEffects logs completions and breakthroughs and retargets the bar.
func (m *Model) applyEffects(e progression.Effects) tea.Cmd {
	for _, c := range e.Completed {
		line := fmt.Sprintf("★ %s complete: %s", trackerLabel(c.Tracker), c.Name)
		if c.Reward.Exp > 0 {
			line += fmt.Sprintf("  +%d exp", c.Reward.Exp)
		}
		m.addEntry(StyleReward.Render(line))
		for _, it := range c.Reward.Items {
			m.addEntry(m.itemLine("  received", it.ItemID, it.Quantity))
		}
	}
	for _, r := range e.LevelUp.Crossed {
		style := lipgloss.NewStyle().Foreground(RealmColor(r)).Bold(true)
		m.addEntry(style.Render("⚡ Breakthrough! You have reached " + r.String()))
	}

	m.status = m.session.Status()
	return m.bar.SetTarget(m.status.RealmProgress, e.LevelUp.Advanced())
}

func (m *Model) itemLine(verb, id string, qty int) string {
	name, color := id, ColorCommon
	if it, ok := m.session.Items().Get(id); ok {
		name, color = it.Name, RarityColor(it.Rarity)
	}
	text := fmt.Sprintf("%s %s", verb, name)
	if qty > 1 {
		text += fmt.Sprintf(" ×%d", qty)
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

func trackerLabel(k progression.TrackerKind) string {
	switch k {
	case progression.TrackerTasks:
		return "Task"
	case progression.TrackerAchievements:
		return "Achievement"
	case progression.TrackerTreasures:
		return "Treasure"
	case progression.TrackerConcepts:
		return "Mastery"
	case progression.TrackerStreak:
		return "Streak"
	default:
		return string(k)
	}
}

func (m *Model) nextProblem() {
	m.current = m.gen.Next(problem.DifficultyForRealm(m.session.Player.Realm))
}

func (m Model) autosaveDue() bool {
	return m.cfg.Saver != nil && m.cfg.AutosaveEvery > 0 && m.answered%m.cfg.AutosaveEvery == 0
}

// autosave captures the session now and saves it off the update loop.
func (m Model) autosave() tea.Cmd {
	doc := save.Capture(m.session, m.cfg.PlayerID)
	saver, id := m.cfg.Saver, m.cfg.PlayerID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		return savedMsg{result: saver.Save(ctx, id, doc)}
	}
}

func (m *Model) addEntry(line string) {
	m.entries = append(m.entries, line)
	if len(m.entries) > maxLogEntries {
		m.entries = m.entries[len(m.entries)-maxLogEntries:]
	}
	m.log.SetContent(strings.Join(m.entries, "\n"))
	m.log.GotoBottom()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	st := m.status
	realm := lipgloss.NewStyle().Foreground(RealmColor(m.session.Player.Realm)).Bold(true).Render(st.Realm)
	progress := fmt.Sprintf("%d exp", st.Exp)
	if st.NextRealm != "" {
		progress = fmt.Sprintf("%d / %d exp to %s", st.Exp, st.NextThreshold, st.NextRealm)
	}
	barWidth := max(m.width-8, 10)
	stats := fmt.Sprintf("HP %d/%d  MP %d/%d  Stones %d  Accuracy %d%%  Streak %d",
		st.Health, st.MaxHealth, st.Mana, st.MaxMana, st.Currency, st.Accuracy, st.Streak.ConsecutiveDays)

	header := StyleBorder.Width(max(m.width-2, 20)).Render(lipgloss.JoinVertical(lipgloss.Left,
		realm+"  "+StyleDimmed.Render(progress),
		m.bar.View(barWidth, RealmColor(m.session.Player.Realm)),
		StyleDimmed.Render(stats),
	))

	prompt := StylePrompt.Render(fmt.Sprintf("%s = ?", m.current.Prompt())) +
		StyleDimmed.Render(fmt.Sprintf("  [%s, difficulty %d]", m.current.ConceptID, m.current.Difficulty))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.log.View(),
		prompt,
		m.input.View(),
		m.help.ShortHelpView(m.keys.help()),
	)
}
