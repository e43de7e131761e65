package progression

import (
	"errors"
	"testing"
)

func TestNewSession_RejectsBadDefinitions(t *testing.T) {
	defs := testDefinitions(t)
	defs.DropPool = append(defs.DropPool, "dragon_scale")
	if _, err := NewSession(defs, DefaultOptions()); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("err = %v, want ErrUnknownItem", err)
	}

	defs = testDefinitions(t)
	defs.Zones = append(defs.Zones, ZoneDef{ID: "abyss"})
	if _, err := NewSession(defs, DefaultOptions()); err == nil {
		t.Error("duplicate zone should be rejected")
	}
}

func TestSubmitAnswer_Incorrect(t *testing.T) {
	s := newTestSession(t, &scriptRNG{})
	s.SubmitAnswer(AnswerInput{Correct: true, Difficulty: 1})
	out := s.SubmitAnswer(AnswerInput{Correct: false, Difficulty: 1})

	if out.Combo != 0 || s.Player.Combo != 0 {
		t.Errorf("combo = %d, want reset", out.Combo)
	}
	if out.Reward.Exp != 0 || out.Drop != nil {
		t.Errorf("incorrect outcome = %+v, want no reward", out)
	}
	if s.Player.TotalAnswers != 2 || s.Player.TotalProblemsSolved != 1 {
		t.Errorf("answers=%d solved=%d, want 2/1", s.Player.TotalAnswers, s.Player.TotalProblemsSolved)
	}
}

func TestSubmitAnswer_FiveCorrect(t *testing.T) {
	s := newTestSession(t, &scriptRNG{})
	done := make(map[string]bool)
	var last AnswerOutcome
	for range 5 {
		last = s.SubmitAnswer(AnswerInput{Correct: true, Difficulty: 1})
		for id := range completedIDs(last.Completed) {
			done[id] = true
		}
	}

	// Answers pay 11, 12, 13, 14 and 15+50. first_steps (+30) completes on
	// the third; steady_hand (+20) on the fifth lifts the player into Qi
	// Refining, which completes reach_qi; combo_5 adds 25.
	if s.Player.Exp != 190 {
		t.Errorf("Exp = %d, want 190", s.Player.Exp)
	}
	for _, id := range []string{"first_steps", "steady_hand", "reach_qi", "combo_5"} {
		if !done[id] {
			t.Errorf("%s not completed; got %v", id, done)
		}
	}
	if !last.LevelUp.Advanced() || last.LevelUp.To != RealmQiRefining {
		t.Errorf("LevelUp = %+v, want advance to Qi Refining", last.LevelUp)
	}
	if s.Player.Quantity("qi_pill") != 2 {
		t.Errorf("qi_pill = %d, want 2 from reach_qi", s.Player.Quantity("qi_pill"))
	}
	if s.Player.Currency != 5+6+6+7+7 {
		t.Errorf("Currency = %d, want 31", s.Player.Currency)
	}
}

func TestSubmitAnswer_Drop(t *testing.T) {
	rng := &scriptRNG{floats: []float64{0.99, 0}, ints: []int{0, 0}}
	s := newTestSession(t, rng)
	out := s.SubmitAnswer(AnswerInput{Correct: true, Difficulty: 2})
	if out.Drop == nil || out.Drop.ItemID != "qi_pill" || out.Drop.Quantity != 1 {
		t.Fatalf("Drop = %+v, want qi_pill x1", out.Drop)
	}
	if s.Player.Quantity("qi_pill") != 1 {
		t.Errorf("qi_pill = %d, want 1", s.Player.Quantity("qi_pill"))
	}
}

func TestSubmitAnswer_DifficultyClamped(t *testing.T) {
	top := newTestSession(t, &scriptRNG{})
	want := top.SubmitAnswer(AnswerInput{Correct: true, Difficulty: MaxDifficulty})

	s := newTestSession(t, &scriptRNG{})
	got := s.SubmitAnswer(AnswerInput{Correct: true, Difficulty: 1 << 62})
	if got.Reward.Exp != want.Reward.Exp || s.Player.Exp != top.Player.Exp {
		t.Errorf("exp = %d (player %d), want %d (player %d)", got.Reward.Exp, s.Player.Exp, want.Reward.Exp, top.Player.Exp)
	}
	if got.Reward.Exp != 55 {
		t.Errorf("reward exp = %d, want 55", got.Reward.Exp)
	}
}

func TestSubmitAnswer_FeedsConcept(t *testing.T) {
	s := newTestSession(t, &scriptRNG{})
	s.SubmitAnswer(AnswerInput{Correct: true, Difficulty: 1, ConceptID: "division"})
	if got, _ := s.Concepts.Progress("division"); got != 10 {
		t.Errorf("division progress = %v, want 10", got)
	}
}

func TestCollectItem(t *testing.T) {
	s := newTestSession(t, nil)
	if _, err := s.CollectItem("dragon_scale", 1); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("err = %v, want ErrUnknownItem", err)
	}
	if _, err := s.CollectItem("qi_pill", -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
	out, err := s.CollectItem("spirit_herb", 3)
	if err != nil {
		t.Fatal(err)
	}
	if out.Total != 3 {
		t.Errorf("Total = %d, want 3", out.Total)
	}
}

func TestEnterZone(t *testing.T) {
	s := newTestSession(t, nil)
	if _, err := s.EnterZone("moon"); !errors.Is(err, ErrUnknownZone) {
		t.Errorf("err = %v, want ErrUnknownZone", err)
	}
	if _, err := s.EnterZone("abyss"); !errors.Is(err, ErrZoneLocked) {
		t.Errorf("err = %v, want ErrZoneLocked", err)
	}

	first, _ := s.EnterZone("bamboo_grove")
	if !first.New || len(first.Completed) != 0 {
		t.Errorf("first zone = %+v", first)
	}
	second, _ := s.EnterZone("misty_peak")
	if !completedIDs(second.Completed)["wanderer"] {
		t.Errorf("wanderer should complete, got %+v", second.Completed)
	}
	again, _ := s.EnterZone("bamboo_grove")
	if again.New || len(again.Completed) != 0 {
		t.Errorf("revisit = %+v, want not new and nothing completed", again)
	}
	if s.Player.CurrentZone != "bamboo_grove" {
		t.Errorf("CurrentZone = %q", s.Player.CurrentZone)
	}
}

func TestCheckIn_Session(t *testing.T) {
	s := newTestSession(t, nil)
	first := s.CheckIn()
	if !first.Success || first.ConsecutiveDays != 1 {
		t.Fatalf("first = %+v", first)
	}
	if second := s.CheckIn(); second.Success {
		t.Error("second check-in on the same day should fail")
	}
	if !s.Status().CheckedInToday {
		t.Error("Status should report today's check-in")
	}
}

func TestDiscoverAndEquip(t *testing.T) {
	s := newTestSession(t, nil)
	if _, err := s.Discover("atlantis"); !errors.Is(err, ErrUnknownGoal) {
		t.Errorf("err = %v, want ErrUnknownGoal", err)
	}

	out, err := s.Discover("sunken_chest")
	if err != nil || !out.Success {
		t.Fatalf("Discover = %+v, %v", out, err)
	}
	if !completedIDs(out.Completed)["sunken_chest"] {
		t.Errorf("Completed = %+v, want sunken_chest", out.Completed)
	}
	if again, _ := s.Discover("sunken_chest"); again.Success {
		t.Error("second discovery should fail")
	}

	eq, err := s.Equip("jade_sword")
	if err != nil || eq.Slot != SlotWeapon {
		t.Fatalf("Equip = %+v, %v", eq, err)
	}
	if _, err := s.Equip("unobtainium"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("err = %v, want ErrUnknownItem", err)
	}
	id, err := s.Unequip(SlotWeapon)
	if err != nil || id != "jade_sword" {
		t.Errorf("Unequip = %q, %v", id, err)
	}
}

func TestUpdateConcept_MasteryCascadesToAchievement(t *testing.T) {
	s := newTestSession(t, nil)
	out, err := s.UpdateConcept("addition", 100)
	if err != nil {
		t.Fatal(err)
	}
	ids := completedIDs(out.Completed)
	if !ids["addition"] || !ids["first_mastery"] {
		t.Errorf("Completed = %v, want addition and first_mastery", ids)
	}
	if s.Player.Exp != 70 {
		t.Errorf("Exp = %d, want 70", s.Player.Exp)
	}
	if _, err := s.UpdateConcept("alchemy", 5); !errors.Is(err, ErrUnknownConcept) {
		t.Errorf("err = %v, want ErrUnknownConcept", err)
	}
}

func TestStatus(t *testing.T) {
	s := newTestSession(t, nil)
	s.Player.GrantExp(300)
	st := s.Status()
	if st.Realm != "Qi Refining" || st.NextRealm != "Foundation Establishment" || st.NextThreshold != 500 {
		t.Errorf("status realm fields = %q %q %d", st.Realm, st.NextRealm, st.NextThreshold)
	}
	if st.RealmProgress != 0.5 {
		t.Errorf("RealmProgress = %v, want 0.5", st.RealmProgress)
	}
	if st.TasksTotal != 2 {
		t.Errorf("TasksTotal = %d, want 2", st.TasksTotal)
	}

	s.Player.GrantExp(1 << 30)
	if st := s.Status(); st.NextRealm != "" || st.RealmProgress != 1 {
		t.Errorf("max realm status = %q %v", st.NextRealm, st.RealmProgress)
	}
}

func TestPenalize_Session(t *testing.T) {
	s := newTestSession(t, nil)
	s.Player.GrantExp(120)
	if lost := s.Penalize(50); lost != 20 {
		t.Errorf("lost = %d, want 20", lost)
	}
}
