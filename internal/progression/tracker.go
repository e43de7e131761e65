package progression

import (
	"fmt"
	"math"
	"time"
)

// GoalTracker owns a catalog of goals and advances them from dispatched
// events. Tasks and achievements are GoalTrackers; treasures and concepts
// wrap one.
type GoalTracker struct {
	kind  TrackerKind
	goals []*Goal
	index map[string]*Goal
	now   func() time.Time
}

func newGoalTracker(kind TrackerKind, defs []GoalDef, allowed func(Condition) bool) (*GoalTracker, error) {
	t := &GoalTracker{
		kind:  kind,
		index: make(map[string]*Goal, len(defs)),
		now:   time.Now,
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("%s: goal with empty id", kind)
		}
		if _, dup := t.index[d.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate goal id %q", kind, d.ID)
		}
		if err := validateCondition(d.Condition); err != nil {
			return nil, fmt.Errorf("%s: goal %q: %w", kind, d.ID, err)
		}
		if !allowed(d.Condition) {
			return nil, fmt.Errorf("%s: goal %q: condition %T not supported here", kind, d.ID, d.Condition)
		}
		g := &Goal{GoalDef: d}
		t.goals = append(t.goals, g)
		t.index[d.ID] = g
	}
	return t, nil
}

func eventCondition(c Condition) bool {
	switch c.(type) {
	case CountThreshold, ComboThreshold, RealmReached, CollectCount, AccuracyThreshold, SetCompleteness:
		return true
	}
	return false
}

// NewTaskTracker builds the task catalog. Tasks accept every event-driven
// condition.
func NewTaskTracker(defs []GoalDef) (*GoalTracker, error) {
	return newGoalTracker(TrackerTasks, defs, eventCondition)
}

// NewAchievementTracker builds the achievement catalog. Achievements may not
// use AccuracyThreshold.
func NewAchievementTracker(defs []GoalDef) (*GoalTracker, error) {
	return newGoalTracker(TrackerAchievements, defs, func(c Condition) bool {
		if _, ok := c.(AccuracyThreshold); ok {
			return false
		}
		return eventCondition(c)
	})
}

// Kind returns which tracker this is.
func (t *GoalTracker) Kind() TrackerKind {
	return t.kind
}

// SetClock replaces the time source used for completion timestamps.
func (t *GoalTracker) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Handle advances every pending goal whose condition listens for ev.Type and
// grants rewards for goals that complete. Completed goals are never visited
// again.
func (t *GoalTracker) Handle(ev Event, p *Player) []GoalCompleted {
	var out []GoalCompleted
	for _, g := range t.goals {
		if g.Completed {
			continue
		}
		if t.advance(g, ev, p) {
			out = append(out, t.complete(g, p))
		}
	}
	return out
}

// advance updates g's progress for ev and reports whether g is now complete.
func (t *GoalTracker) advance(g *Goal, ev Event, p *Player) bool {
	switch c := g.Condition.(type) {
	case CountThreshold:
		if ev.Type != c.Event {
			return false
		}
		g.Progress++
		return g.Progress >= float64(c.Target)

	case ComboThreshold:
		if ev.Type != EventComboAchieved {
			return false
		}
		if ev.Combo >= c.Target {
			g.Progress = float64(c.Target)
			return true
		}
		g.Progress = max(g.Progress, float64(ev.Combo))
		return false

	case RealmReached:
		if ev.Type != EventRealmUp {
			return false
		}
		reached := ev.Realm
		if reached == RealmMortal {
			reached = p.Realm
		}
		return reached == c.Realm

	case CollectCount:
		if ev.Type != EventItemCollected && ev.Type != EventResourceCollected {
			return false
		}
		g.Progress = float64(p.TotalCollectibles())
		return g.Progress >= float64(c.Target)

	case AccuracyThreshold:
		if ev.Type != EventProblemAnswered {
			return false
		}
		g.Total++
		if ev.Correct {
			g.Correct++
		}
		pct := 100 * float64(g.Correct) / float64(g.Total)
		g.Progress = pct
		return g.Total >= c.MinSample && pct >= c.Percent

	case SetCompleteness:
		if ev.Type != EventZoneEntered {
			return false
		}
		seen := make(map[string]bool, len(ev.ExploredZones))
		for _, z := range ev.ExploredZones {
			seen[z] = true
		}
		have := 0
		for _, m := range c.Members {
			if seen[m] {
				have++
			}
		}
		g.Progress = float64(have)
		return have == len(c.Members)

	case Discovery, Mastery:
		return false

	default:
		unregistered(c)
		return false
	}
}

func (t *GoalTracker) complete(g *Goal, p *Player) GoalCompleted {
	g.Completed = true
	g.CompletedAt = t.now().UTC()
	g.Progress = g.Target()
	g.Reward.grant(p)
	return GoalCompleted{
		Tracker: t.kind,
		GoalID:  g.ID,
		Name:    g.Name,
		Reward:  g.Reward,
	}
}

// Goals returns copies of every goal in catalog order.
func (t *GoalTracker) Goals() []Goal {
	out := make([]Goal, len(t.goals))
	for i, g := range t.goals {
		out[i] = *g
	}
	return out
}

// Get returns a copy of the goal with id.
func (t *GoalTracker) Get(id string) (Goal, bool) {
	g, ok := t.index[id]
	if !ok {
		return Goal{}, false
	}
	return *g, true
}

// CompletedCount returns how many goals are complete.
func (t *GoalTracker) CompletedCount() int {
	n := 0
	for _, g := range t.goals {
		if g.Completed {
			n++
		}
	}
	return n
}

// States returns the runtime state of every goal in catalog order.
func (t *GoalTracker) States() []GoalState {
	out := make([]GoalState, len(t.goals))
	for i, g := range t.goals {
		s := GoalState{
			ID:        g.ID,
			Progress:  g.Progress,
			Completed: g.Completed,
			Correct:   g.Correct,
			Total:     g.Total,
		}
		if !g.CompletedAt.IsZero() {
			at := g.CompletedAt
			s.CompletedAt = &at
		}
		out[i] = s
	}
	return out
}

// Restore applies persisted goal states. Unknown ids are skipped,
// out-of-range values are clamped and a completed goal is never reopened.
func (t *GoalTracker) Restore(states []GoalState) []Issue {
	var issues []Issue
	for _, s := range states {
		path := fmt.Sprintf("%s.%s", t.kind, s.ID)
		g, ok := t.index[s.ID]
		if !ok {
			issues = append(issues, Issue{Path: path, Message: "unknown goal ignored"})
			continue
		}

		target := g.Target()
		progress := s.Progress
		if math.IsNaN(progress) {
			progress = -1
		}
		if progress < 0 || progress > target {
			issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("progress %v clamped", s.Progress)})
			progress = min(max(progress, 0), target)
		}

		total, correct := s.Total, s.Correct
		if total < 0 || correct < 0 || correct > total {
			issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("answer counts %d/%d repaired", correct, total)})
			total = max(total, 0)
			correct = min(max(correct, 0), total)
		}

		if !g.Completed {
			g.Progress = progress
			g.Correct = correct
			g.Total = total
		}
		if s.Completed && !g.Completed {
			g.Completed = true
			g.Progress = target
			if s.CompletedAt != nil {
				g.CompletedAt = s.CompletedAt.UTC()
			}
		}
	}
	return issues
}
