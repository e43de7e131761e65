package progression

import (
	"fmt"
	"time"
)

// TreasureRegistry holds one goal per treasure. Treasures are completed by
// Discover, never by events.
type TreasureRegistry struct {
	goals *GoalTracker
}

// DiscoverResult is returned by Discover. A repeated discovery reports
// Success false and grants nothing.
type DiscoverResult struct {
	Success    bool           `json:"success"`
	TreasureID string         `json:"treasureId"`
	Goal       *GoalCompleted `json:"goal,omitempty"`
}

// NewTreasureRegistry builds the treasure catalog. Every entry must use the
// Discovery condition.
func NewTreasureRegistry(defs []GoalDef) (*TreasureRegistry, error) {
	t, err := newGoalTracker(TrackerTreasures, defs, func(c Condition) bool {
		_, ok := c.(Discovery)
		return ok
	})
	if err != nil {
		return nil, err
	}
	return &TreasureRegistry{goals: t}, nil
}

// Discover marks the treasure found and grants its reward the first time.
func (r *TreasureRegistry) Discover(id string, p *Player) (DiscoverResult, error) {
	g, ok := r.goals.index[id]
	if !ok {
		return DiscoverResult{TreasureID: id}, fmt.Errorf("%w: treasure %s", ErrUnknownGoal, id)
	}
	if g.Completed {
		return DiscoverResult{TreasureID: id}, nil
	}
	done := r.goals.complete(g, p)
	return DiscoverResult{Success: true, TreasureID: id, Goal: &done}, nil
}

// Handle satisfies Handler. Treasures do not react to events.
func (r *TreasureRegistry) Handle(ev Event, p *Player) []GoalCompleted {
	return r.goals.Handle(ev, p)
}

// Discovered reports whether id has been found.
func (r *TreasureRegistry) Discovered(id string) bool {
	g, ok := r.goals.index[id]
	return ok && g.Completed
}

func (r *TreasureRegistry) Goals() []Goal                     { return r.goals.Goals() }
func (r *TreasureRegistry) States() []GoalState               { return r.goals.States() }
func (r *TreasureRegistry) Restore(states []GoalState) []Issue { return r.goals.Restore(states) }
func (r *TreasureRegistry) SetClock(now func() time.Time)     { r.goals.SetClock(now) }
