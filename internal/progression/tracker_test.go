package progression

import (
	"strings"
	"testing"
	"time"
)

func mustTasks(t *testing.T, defs ...GoalDef) *GoalTracker {
	t.Helper()
	tr, err := NewTaskTracker(defs)
	if err != nil {
		t.Fatalf("NewTaskTracker: %v", err)
	}
	tr.SetClock(fixedClock(testNow))
	return tr
}

func TestCountThreshold_CompletesOnceAndGrantsOnce(t *testing.T) {
	tr := mustTasks(t, GoalDef{
		ID: "solve_3", Name: "Solve Three",
		Condition: CountThreshold{Event: EventProblemSolved, Target: 3},
		Reward:    RewardSpec{Exp: 50, Items: []ItemGrant{{ItemID: "qi_pill", Quantity: 1}}},
	})
	p := NewPlayer()
	ev := Event{Type: EventProblemSolved}

	for i := range 2 {
		if got := tr.Handle(ev, p); len(got) != 0 {
			t.Fatalf("event %d completed early: %+v", i+1, got)
		}
	}
	got := tr.Handle(ev, p)
	if len(got) != 1 || got[0].GoalID != "solve_3" || got[0].Tracker != TrackerTasks {
		t.Fatalf("third event = %+v, want solve_3 completion", got)
	}
	if p.Exp != 50 || p.Quantity("qi_pill") != 1 {
		t.Errorf("reward applied as exp=%d pills=%d, want 50/1", p.Exp, p.Quantity("qi_pill"))
	}

	for range 5 {
		if again := tr.Handle(ev, p); len(again) != 0 {
			t.Fatalf("completed goal fired again: %+v", again)
		}
	}
	if p.Exp != 50 || p.Quantity("qi_pill") != 1 {
		t.Errorf("reward granted twice: exp=%d pills=%d", p.Exp, p.Quantity("qi_pill"))
	}

	g, _ := tr.Get("solve_3")
	if !g.CompletedAt.Equal(testNow) {
		t.Errorf("CompletedAt = %v, want %v", g.CompletedAt, testNow)
	}
}

func TestHandle_IgnoresUnrelatedEvents(t *testing.T) {
	tr := mustTasks(t, GoalDef{ID: "solve", Condition: CountThreshold{Event: EventProblemSolved, Target: 1}})
	p := NewPlayer()
	for _, ev := range []Event{{Type: EventZoneEntered}, {Type: "weather_changed"}, {Type: EventItemCollected}} {
		if got := tr.Handle(ev, p); len(got) != 0 {
			t.Errorf("event %s completed %+v", ev.Type, got)
		}
	}
	if g, _ := tr.Get("solve"); g.Progress != 0 {
		t.Errorf("Progress = %v, want 0", g.Progress)
	}
}

func TestComboThreshold_SnapsToTarget(t *testing.T) {
	tr := mustTasks(t, GoalDef{ID: "combo", Condition: ComboThreshold{Target: 10}})
	p := NewPlayer()

	tr.Handle(Event{Type: EventComboAchieved, Combo: 4}, p)
	if g, _ := tr.Get("combo"); g.Progress != 4 || g.Completed {
		t.Errorf("after combo 4: progress=%v completed=%v", g.Progress, g.Completed)
	}
	got := tr.Handle(Event{Type: EventComboAchieved, Combo: 25}, p)
	if len(got) != 1 {
		t.Fatal("combo 25 should complete a target of 10")
	}
	if g, _ := tr.Get("combo"); g.Progress != 10 {
		t.Errorf("Progress = %v, want snap to 10", g.Progress)
	}
}

func TestRealmReached_ExactRealmFromPayload(t *testing.T) {
	tr := mustTasks(t, GoalDef{ID: "foundation", Condition: RealmReached{Realm: RealmFoundation}})
	p := NewPlayer()
	p.GrantExp(2_000) // jumps to Core Formation

	if got := tr.Handle(Event{Type: EventRealmUp, Realm: RealmQiRefining}, p); len(got) != 0 {
		t.Errorf("Qi Refining crossing completed %+v", got)
	}
	if got := tr.Handle(Event{Type: EventRealmUp, Realm: RealmFoundation}, p); len(got) != 1 {
		t.Error("Foundation crossing should complete even though the player is past it")
	}
}

func TestRealmReached_FallsBackToLiveRealm(t *testing.T) {
	tr := mustTasks(t, GoalDef{ID: "qi", Condition: RealmReached{Realm: RealmQiRefining}})
	p := NewPlayer()
	p.GrantExp(100)
	if got := tr.Handle(Event{Type: EventRealmUp}, p); len(got) != 1 {
		t.Error("realm_up without payload should use the player's realm")
	}
}

func TestCollectCount_RecomputedFromInventory(t *testing.T) {
	tr := mustTasks(t, GoalDef{ID: "hoard", Condition: CollectCount{Target: 5}})
	p := NewPlayer()

	p.AddCollectible("qi_pill", 3)
	tr.Handle(Event{Type: EventItemCollected, ItemID: "qi_pill"}, p)
	p.RemoveCollectible("qi_pill", 2)
	tr.Handle(Event{Type: EventItemCollected, ItemID: "qi_pill"}, p)
	if g, _ := tr.Get("hoard"); g.Progress != 1 {
		t.Errorf("Progress = %v, want 1 after inventory shrank", g.Progress)
	}

	p.AddCollectible("spirit_herb", 4)
	if got := tr.Handle(Event{Type: EventResourceCollected}, p); len(got) != 1 {
		t.Error("resource_collected with 5 items held should complete")
	}
}

func TestAccuracyThreshold_RespectsSampleFloor(t *testing.T) {
	tr := mustTasks(t, GoalDef{ID: "precise", Condition: AccuracyThreshold{MinSample: 50, Percent: 90}})
	p := NewPlayer()
	ev := Event{Type: EventProblemAnswered, Correct: true}

	for range 10 {
		if got := tr.Handle(ev, p); len(got) != 0 {
			t.Fatal("completed before reaching the minimum sample")
		}
	}
	g, _ := tr.Get("precise")
	if g.Progress != 100 || g.Total != 10 {
		t.Errorf("progress=%v total=%d, want 100/10", g.Progress, g.Total)
	}

	var done []GoalCompleted
	for range 40 {
		done = append(done, tr.Handle(ev, p)...)
	}
	if len(done) != 1 {
		t.Errorf("completions after 50 answers = %d, want 1", len(done))
	}
}

func TestAccuracyThreshold_LocalCounts(t *testing.T) {
	tr := mustTasks(t, GoalDef{ID: "precise", Condition: AccuracyThreshold{MinSample: 4, Percent: 75}})
	p := NewPlayer()
	// Global accuracy is perfect; the goal only counts what it observes.
	for range 20 {
		p.RecordAnswer(true)
	}
	for _, correct := range []bool{true, false, false, true} {
		tr.Handle(Event{Type: EventProblemAnswered, Correct: correct}, p)
	}
	if g, _ := tr.Get("precise"); g.Completed {
		t.Error("2/4 local accuracy should not complete a 75% goal")
	}
}

func TestSetCompleteness(t *testing.T) {
	tr := mustTasks(t, GoalDef{ID: "all", Condition: SetCompleteness{Members: []string{"a", "b", "c"}}})
	p := NewPlayer()

	tr.Handle(Event{Type: EventZoneEntered, ExploredZones: []string{"a", "x"}}, p)
	if g, _ := tr.Get("all"); g.Progress != 1 {
		t.Errorf("Progress = %v, want 1", g.Progress)
	}
	if got := tr.Handle(Event{Type: EventZoneEntered, ExploredZones: []string{"c", "b", "a"}}, p); len(got) != 1 {
		t.Error("all members present should complete")
	}
}

func TestNewAchievementTracker_RejectsAccuracy(t *testing.T) {
	_, err := NewAchievementTracker([]GoalDef{
		{ID: "sharp", Condition: AccuracyThreshold{MinSample: 10, Percent: 90}},
	})
	if err == nil {
		t.Fatal("expected error for accuracy achievement")
	}
}

func TestNewTaskTracker_Validation(t *testing.T) {
	tests := []struct {
		name string
		defs []GoalDef
		want string
	}{
		{"empty id", []GoalDef{{Condition: ComboThreshold{Target: 1}}}, "empty id"},
		{"duplicate", []GoalDef{
			{ID: "a", Condition: ComboThreshold{Target: 1}},
			{ID: "a", Condition: ComboThreshold{Target: 2}},
		}, "duplicate"},
		{"nil condition", []GoalDef{{ID: "a"}}, "missing condition"},
		{"zero target", []GoalDef{{ID: "a", Condition: CountThreshold{Event: EventProblemSolved}}}, "target"},
		{"unknown event", []GoalDef{{ID: "a", Condition: CountThreshold{Event: "dance", Target: 1}}}, "unknown event"},
		{"mortal realm", []GoalDef{{ID: "a", Condition: RealmReached{Realm: RealmMortal}}}, "cannot be entered"},
		{"discovery on task", []GoalDef{{ID: "a", Condition: Discovery{}}}, "not supported"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTaskTracker(tc.defs)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

type unknownCondition struct{}

func (unknownCondition) condition() {}

func TestHandle_PanicsOnUnregisteredCondition(t *testing.T) {
	tr := mustTasks(t)
	g := &Goal{GoalDef: GoalDef{ID: "odd", Condition: unknownCondition{}}}
	tr.goals = append(tr.goals, g)
	tr.index[g.ID] = g

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unregistered condition")
		}
	}()
	tr.Handle(Event{Type: EventProblemSolved}, NewPlayer())
}

func TestStatesRestore_RoundTrip(t *testing.T) {
	defs := []GoalDef{
		{ID: "solve_5", Condition: CountThreshold{Event: EventProblemSolved, Target: 5}},
		{ID: "combo_3", Condition: ComboThreshold{Target: 3}},
	}
	src := mustTasks(t, defs...)
	p := NewPlayer()
	src.Handle(Event{Type: EventProblemSolved}, p)
	src.Handle(Event{Type: EventProblemSolved}, p)
	src.Handle(Event{Type: EventComboAchieved, Combo: 3}, p)

	dst := mustTasks(t, defs...)
	if issues := dst.Restore(src.States()); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	got, want := dst.States(), src.States()
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Progress != want[i].Progress || got[i].Completed != want[i].Completed {
			t.Errorf("state %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !got[1].CompletedAt.Equal(*want[1].CompletedAt) {
		t.Errorf("CompletedAt = %v, want %v", got[1].CompletedAt, want[1].CompletedAt)
	}
}

func TestRestore_RepairsAndNeverReopens(t *testing.T) {
	tr := mustTasks(t,
		GoalDef{ID: "solve_5", Condition: CountThreshold{Event: EventProblemSolved, Target: 5}},
		GoalDef{ID: "acc", Condition: AccuracyThreshold{MinSample: 5, Percent: 80}},
	)
	at := testNow.Add(-time.Hour)
	issues := tr.Restore([]GoalState{
		{ID: "solve_5", Progress: 5, Completed: true, CompletedAt: &at},
		{ID: "acc", Progress: -3, Correct: 9, Total: 4},
		{ID: "ghost", Progress: 1},
	})
	if len(issues) != 3 {
		t.Errorf("issues = %v, want 3 (acc progress, acc counts, ghost)", issues)
	}

	g, _ := tr.Get("solve_5")
	if !g.Completed || g.Progress != 5 {
		t.Errorf("solve_5 = completed %v progress %v, want true/5", g.Completed, g.Progress)
	}
	acc, _ := tr.Get("acc")
	if acc.Progress != 0 || acc.Correct != 4 || acc.Total != 4 {
		t.Errorf("acc = %v %d/%d, want 0 4/4", acc.Progress, acc.Correct, acc.Total)
	}

	tr.Restore([]GoalState{{ID: "solve_5", Progress: 1, Completed: false}})
	if g, _ := tr.Get("solve_5"); !g.Completed {
		t.Error("restore must not reopen a completed goal")
	}
}
