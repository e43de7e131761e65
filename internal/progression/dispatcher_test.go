package progression

import (
	"fmt"
	"testing"
)

type recorder struct {
	name string
	log  *[]string
}

func (r recorder) Handle(ev Event, p *Player) []GoalCompleted {
	*r.log = append(*r.log, fmt.Sprintf("%s:%s", r.name, ev.Type))
	return nil
}

func TestDispatch_FixedOrder(t *testing.T) {
	var log []string
	d := NewDispatcher(recorder{"tasks", &log}, nil, recorder{"achievements", &log}, recorder{"streak", &log})
	d.Dispatch(Event{Type: EventProblemSolved}, NewPlayer())

	want := []string{"tasks:problem_solved", "achievements:problem_solved", "streak:problem_solved"}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", log, want)
	}
}

func TestDispatch_DeliversOutboxAfterInbound(t *testing.T) {
	var log []string
	d := NewDispatcher(recorder{"a", &log})
	p := NewPlayer()
	p.GainExp(100)

	d.Dispatch(Event{Type: EventProblemSolved}, p)
	want := []string{"a:problem_solved", "a:realm_up"}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

func TestDispatch_CascadesRewardRealmUp(t *testing.T) {
	tasks := mustTasks(t, GoalDef{
		ID: "big", Condition: CountThreshold{Event: EventProblemSolved, Target: 1},
		Reward: RewardSpec{Exp: 600},
	})
	achievements, err := NewAchievementTracker([]GoalDef{
		{ID: "qi", Condition: RealmReached{Realm: RealmQiRefining}},
		{ID: "foundation", Condition: RealmReached{Realm: RealmFoundation}},
		{ID: "core", Condition: RealmReached{Realm: RealmCoreFormation}},
	})
	if err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(tasks, achievements)
	p := NewPlayer()

	got := completedIDs(d.Dispatch(Event{Type: EventProblemSolved}, p))
	for _, id := range []string{"big", "qi", "foundation"} {
		if !got[id] {
			t.Errorf("%s not completed in cascade: %v", id, got)
		}
	}
	if got["core"] {
		t.Error("core should not complete at 600 exp")
	}
}

type mutator struct{}

func (mutator) Handle(ev Event, p *Player) []GoalCompleted {
	if len(ev.ExploredZones) > 0 {
		ev.ExploredZones[0] = "tampered"
	}
	return nil
}

func TestDispatch_SnapshotsPayload(t *testing.T) {
	zones := []string{"bamboo_grove"}
	NewDispatcher(mutator{}).Dispatch(Event{Type: EventZoneEntered, ExploredZones: zones}, NewPlayer())
	if zones[0] != "bamboo_grove" {
		t.Errorf("caller slice mutated to %q", zones[0])
	}
}

func TestDrain_OnlyOutbox(t *testing.T) {
	var log []string
	d := NewDispatcher(recorder{"a", &log})
	p := NewPlayer()
	if got := d.Drain(p); got != nil || len(log) != 0 {
		t.Errorf("empty drain delivered %v", log)
	}
	p.GrantExp(500)
	d.Drain(p)
	if len(log) != 2 {
		t.Errorf("log = %v, want two realm_up deliveries", log)
	}
}
