package progression

import (
	"fmt"
	"time"
)

// Condition is the closed set of goal conditions. Only the variants in this
// file implement it.
type Condition interface {
	condition()
}

// CountThreshold completes after Target occurrences of Event.
type CountThreshold struct {
	Event  EventType
	Target int
}

// ComboThreshold completes when a combo_achieved event reports at least
// Target.
type ComboThreshold struct {
	Target int
}

// RealmReached completes when the player enters exactly Realm.
type RealmReached struct {
	Realm Realm
}

// CollectCount completes when the live inventory holds at least Target
// items in total.
type CollectCount struct {
	Target int
}

// AccuracyThreshold completes once the goal has seen at least MinSample
// answers and its own accuracy is at least Percent.
type AccuracyThreshold struct {
	MinSample int
	Percent   float64
}

// SetCompleteness completes when every member appears in the explored set
// carried by zone_entered.
type SetCompleteness struct {
	Members []string
}

// Discovery is the condition of a treasure. It is completed by a direct
// Discover call rather than an event.
type Discovery struct{}

// Mastery is the condition of a concept. It is completed when the concept's
// progress reaches 100.
type Mastery struct {
	ConceptID string
}

func (CountThreshold) condition()    {}
func (ComboThreshold) condition()    {}
func (RealmReached) condition()      {}
func (CollectCount) condition()      {}
func (AccuracyThreshold) condition() {}
func (SetCompleteness) condition()   {}
func (Discovery) condition()         {}
func (Mastery) condition()           {}

// unregistered panics. Reaching it means a Condition variant was added
// without teaching the engine about it.
func unregistered(c Condition) {
	panic(fmt.Sprintf("progression: unregistered condition %T", c))
}

// conditionTarget is the progress value at which a goal is complete.
func conditionTarget(c Condition) float64 {
	switch c := c.(type) {
	case CountThreshold:
		return float64(c.Target)
	case ComboThreshold:
		return float64(c.Target)
	case RealmReached:
		return 1
	case CollectCount:
		return float64(c.Target)
	case AccuracyThreshold:
		return 100
	case SetCompleteness:
		return float64(len(c.Members))
	case Discovery:
		return 1
	case Mastery:
		return 100
	default:
		unregistered(c)
		return 0
	}
}

func validateCondition(c Condition) error {
	switch c := c.(type) {
	case nil:
		return fmt.Errorf("missing condition")
	case CountThreshold:
		if !c.Event.Known() {
			return fmt.Errorf("count_threshold: unknown event %q", c.Event)
		}
		if c.Target < 1 {
			return fmt.Errorf("count_threshold: target must be positive")
		}
	case ComboThreshold:
		if c.Target < 1 {
			return fmt.Errorf("combo_threshold: target must be positive")
		}
	case RealmReached:
		if !c.Realm.Valid() || c.Realm == RealmMortal {
			return fmt.Errorf("realm_reached: realm %d cannot be entered", c.Realm)
		}
	case CollectCount:
		if c.Target < 1 {
			return fmt.Errorf("collect_count: target must be positive")
		}
	case AccuracyThreshold:
		if c.MinSample < 1 {
			return fmt.Errorf("accuracy_threshold: min sample must be positive")
		}
		if c.Percent <= 0 || c.Percent > 100 {
			return fmt.Errorf("accuracy_threshold: percent %.1f out of range", c.Percent)
		}
	case SetCompleteness:
		if len(c.Members) == 0 {
			return fmt.Errorf("set_completeness: no members")
		}
	case Discovery:
	case Mastery:
		if c.ConceptID == "" {
			return fmt.Errorf("mastery: missing concept id")
		}
	default:
		unregistered(c)
	}
	return nil
}

// RewardSpec is what a goal grants on completion.
type RewardSpec struct {
	Exp   uint64      `json:"exp"`
	Items []ItemGrant `json:"items,omitempty"`
}

// Empty reports whether the reward grants nothing.
func (r RewardSpec) Empty() bool {
	return r.Exp == 0 && len(r.Items) == 0
}

// grant applies r to p.
func (r RewardSpec) grant(p *Player) LevelUp {
	for _, it := range r.Items {
		if it.Quantity > 0 {
			_ = p.AddCollectible(it.ItemID, it.Quantity)
		}
	}
	return p.GrantExp(r.Exp)
}

// GoalDef is a static catalog entry.
type GoalDef struct {
	ID          string
	Name        string
	Description string
	Condition   Condition
	Reward      RewardSpec
}

// Goal is a catalog entry plus its runtime state. Completed only ever moves
// from false to true.
type Goal struct {
	GoalDef
	Progress    float64
	Completed   bool
	CompletedAt time.Time
	// Correct and Total are the goal-local answer counts used by
	// AccuracyThreshold.
	Correct int
	Total   int
}

// Target returns the progress value at which the goal completes.
func (g *Goal) Target() float64 {
	return conditionTarget(g.Condition)
}

// GoalState is the persisted form of a goal's runtime state.
type GoalState struct {
	ID          string     `json:"id"`
	Progress    float64    `json:"progress"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Correct     int        `json:"correct,omitempty"`
	Total       int        `json:"total,omitempty"`
}

// TrackerKind names the tracker a completion came from.
type TrackerKind string

const (
	TrackerTasks        TrackerKind = "tasks"
	TrackerAchievements TrackerKind = "achievements"
	TrackerTreasures    TrackerKind = "treasures"
	TrackerConcepts     TrackerKind = "concepts"
	TrackerStreak       TrackerKind = "streak"
)

// GoalCompleted reports a goal that completed and the reward it granted.
type GoalCompleted struct {
	Tracker TrackerKind `json:"tracker"`
	GoalID  string      `json:"goalId"`
	Name    string      `json:"name"`
	Reward  RewardSpec  `json:"reward"`
}

// Issue describes a value that was repaired or dropped while restoring
// persisted state.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	return i.Path + ": " + i.Message
}
