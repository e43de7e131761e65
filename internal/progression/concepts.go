package progression

import (
	"fmt"
	"math"
	"time"
)

// MasteryPercent is the progress at which a concept is mastered.
const MasteryPercent = 100.0

// ConceptDef is a node of the concept tree.
type ConceptDef struct {
	ID          string
	Name        string
	Description string
	Reward      RewardSpec
}

// ConceptRules sets how answers feed concept progress.
type ConceptRules struct {
	CorrectDelta   float64
	IncorrectDelta float64
}

// DefaultConceptRules returns +10 per correct and -4 per incorrect answer.
func DefaultConceptRules() ConceptRules {
	return ConceptRules{CorrectDelta: 10, IncorrectDelta: -4}
}

// ConceptResult reports the outcome of a progress update.
type ConceptResult struct {
	ConceptID string         `json:"conceptId"`
	Progress  float64        `json:"progress"`
	Mastered  bool           `json:"mastered"`
	Goal      *GoalCompleted `json:"goal,omitempty"`
}

// ConceptTracker tracks fractional mastery per concept. Reaching 100 marks
// the concept mastered once, grants its reward and raises concept_mastery.
type ConceptTracker struct {
	goals *GoalTracker
	rules ConceptRules
}

// NewConceptTracker builds the concept catalog.
func NewConceptTracker(defs []ConceptDef, rules ConceptRules) (*ConceptTracker, error) {
	goals := make([]GoalDef, len(defs))
	for i, d := range defs {
		goals[i] = GoalDef{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Condition:   Mastery{ConceptID: d.ID},
			Reward:      d.Reward,
		}
	}
	t, err := newGoalTracker(TrackerConcepts, goals, func(c Condition) bool {
		_, ok := c.(Mastery)
		return ok
	})
	if err != nil {
		return nil, err
	}
	return &ConceptTracker{goals: t, rules: rules}, nil
}

// UpdateProgress adds delta to the concept's progress, clamped to [0,100].
// Updates to an already mastered concept change nothing.
func (t *ConceptTracker) UpdateProgress(id string, delta float64, p *Player) (ConceptResult, error) {
	g, ok := t.goals.index[id]
	if !ok {
		return ConceptResult{ConceptID: id}, fmt.Errorf("%w: %s", ErrUnknownConcept, id)
	}
	if g.Completed {
		return ConceptResult{ConceptID: id, Progress: MasteryPercent}, nil
	}
	if math.IsNaN(delta) {
		delta = 0
	}

	g.Progress = min(max(g.Progress+delta, 0), MasteryPercent)
	p.ConceptProgress[id] = g.Progress
	res := ConceptResult{ConceptID: id, Progress: g.Progress}
	if g.Progress < MasteryPercent {
		return res, nil
	}

	done := t.goals.complete(g, p)
	p.MasteredConcepts[id] = true
	p.emit(Event{Type: EventConceptMastery, ConceptID: id})
	res.Mastered = true
	res.Goal = &done
	return res, nil
}

// Handle applies the answer deltas for problem_answered events tagged with a
// known concept. Other events are ignored.
func (t *ConceptTracker) Handle(ev Event, p *Player) []GoalCompleted {
	if ev.Type != EventProblemAnswered || ev.ConceptID == "" {
		return nil
	}
	delta := t.rules.IncorrectDelta
	if ev.Correct {
		delta = t.rules.CorrectDelta
	}
	res, err := t.UpdateProgress(ev.ConceptID, delta, p)
	if err != nil || res.Goal == nil {
		return nil
	}
	return []GoalCompleted{*res.Goal}
}

// Progress returns the concept's current progress.
func (t *ConceptTracker) Progress(id string) (float64, bool) {
	g, ok := t.goals.index[id]
	if !ok {
		return 0, false
	}
	return g.Progress, true
}

// Known reports whether id is in the catalog.
func (t *ConceptTracker) Known(id string) bool {
	_, ok := t.goals.index[id]
	return ok
}

// Sync copies tracker progress into the player's concept maps.
func (t *ConceptTracker) Sync(p *Player) {
	for _, g := range t.goals.goals {
		if g.Progress > 0 || g.Completed {
			p.ConceptProgress[g.ID] = g.Progress
		}
		if g.Completed {
			p.MasteredConcepts[g.ID] = true
		}
	}
}

func (t *ConceptTracker) Goals() []Goal                     { return t.goals.Goals() }
func (t *ConceptTracker) States() []GoalState               { return t.goals.States() }
func (t *ConceptTracker) Restore(states []GoalState) []Issue { return t.goals.Restore(states) }
func (t *ConceptTracker) SetClock(now func() time.Time)     { t.goals.SetClock(now) }
