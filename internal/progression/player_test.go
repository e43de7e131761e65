package progression

import (
	"errors"
	"math"
	"testing"
)

func TestNewPlayer_StartingStats(t *testing.T) {
	p := NewPlayer()
	if p.Realm != RealmMortal || p.RealmLevel != 0 {
		t.Errorf("realm = %v/%d, want Mortal/0", p.Realm, p.RealmLevel)
	}
	if p.Health != 100 || p.MaxHealth != 100 || p.Mana != 50 || p.MaxMana != 50 {
		t.Errorf("stats = %d/%d %d/%d, want 100/100 50/50", p.Health, p.MaxHealth, p.Mana, p.MaxMana)
	}
	if p.Collectibles == nil || p.Equipped == nil || p.ConceptProgress == nil {
		t.Error("maps should be initialised")
	}
}

func TestGainExp_CrossesOneRealm(t *testing.T) {
	p := NewPlayer()
	p.Health = 10

	lu := p.GainExp(100)
	if !lu.Advanced() {
		t.Fatal("GainExp(100) should advance")
	}
	if p.Realm != RealmQiRefining || p.RealmLevel != 1 {
		t.Errorf("realm = %v/%d, want Qi Refining/1", p.Realm, p.RealmLevel)
	}
	if p.MaxHealth != 120 || p.Health != 120 {
		t.Errorf("health = %d/%d, want 120/120 (full heal)", p.Health, p.MaxHealth)
	}
	if p.MaxMana != 60 || p.Mana != 60 {
		t.Errorf("mana = %d/%d, want 60/60", p.Mana, p.MaxMana)
	}
	if p.TotalProblemsSolved != 1 {
		t.Errorf("TotalProblemsSolved = %d, want 1", p.TotalProblemsSolved)
	}
}

func TestGainExp_BelowThresholdDoesNotAdvance(t *testing.T) {
	p := NewPlayer()
	if lu := p.GainExp(99); lu.Advanced() {
		t.Errorf("GainExp(99) advanced to %v", lu.To)
	}
	if len(p.drainOutbox()) != 0 {
		t.Error("no realm_up expected below threshold")
	}
}

func TestGainExp_MultiThresholdJumpMatchesSteps(t *testing.T) {
	deltas := []uint64{100, 400, 1000} // cumulative 100, 500, 1500

	stepwise := NewPlayer()
	for _, d := range deltas {
		stepwise.GainExp(d)
	}

	jump := NewPlayer()
	lu := jump.GainExp(deltas[0] + deltas[1] + deltas[2])

	if jump.Realm != stepwise.Realm {
		t.Errorf("jump realm = %v, stepwise realm = %v", jump.Realm, stepwise.Realm)
	}
	if jump.Realm != RealmCoreFormation {
		t.Errorf("realm = %v, want Core Formation", jump.Realm)
	}
	if jump.MaxHealth != stepwise.MaxHealth || jump.MaxMana != stepwise.MaxMana {
		t.Errorf("jump stats %d/%d differ from stepwise %d/%d",
			jump.MaxHealth, jump.MaxMana, stepwise.MaxHealth, stepwise.MaxMana)
	}
	if len(lu.Crossed) != 3 || lu.From != RealmMortal || lu.To != RealmCoreFormation {
		t.Errorf("LevelUp = %+v, want Mortal->Core Formation crossing 3", lu)
	}
}

func TestGainExp_EmitsOneRealmUpPerCrossing(t *testing.T) {
	p := NewPlayer()
	p.GainExp(4_000)

	events := p.drainOutbox()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	for i, ev := range events {
		if ev.Type != EventRealmUp {
			t.Errorf("event %d type = %s, want realm_up", i, ev.Type)
		}
		if want := Realm(i + 1); ev.Realm != want {
			t.Errorf("event %d realm = %v, want %v", i, ev.Realm, want)
		}
	}
	if p.drainOutbox() != nil {
		t.Error("outbox should be empty after drain")
	}
}

func TestGainExp_GrantsPerksOnce(t *testing.T) {
	p := NewPlayer()
	p.GainExp(500)
	if !p.ActivePerks["steady_mind"] {
		t.Error("steady_mind should be granted at Foundation Establishment")
	}
	if p.GrantPerk("steady_mind") {
		t.Error("GrantPerk on an active perk should report false")
	}
}

func TestGainExp_MonotonicRealm(t *testing.T) {
	p := NewPlayer()
	prev := p.Realm
	deltas := []uint64{7, 93, 0, 350, 2, 1_200, 9_999, 1, 40_000, 100_000, 5}
	for _, d := range deltas {
		p.GainExp(d)
		if p.Realm < prev {
			t.Fatalf("realm regressed from %v to %v", prev, p.Realm)
		}
		if want := RealmForExp(p.Exp); p.Realm != want {
			t.Fatalf("realm = %v at exp %d, want %v", p.Realm, p.Exp, want)
		}
		prev = p.Realm
	}
}

func TestCatchUp_MatchesGainExpWithoutEvents(t *testing.T) {
	gained := NewPlayer()
	gained.GainExp(1_500)

	p := NewPlayer()
	p.Exp = 1_500
	applied := p.CatchUp()

	if len(applied) != 3 || p.Realm != RealmCoreFormation || p.RealmLevel != RealmCoreFormation.Rank() {
		t.Errorf("applied %v, realm %v, want 3 realms up to Core Formation", applied, p.Realm)
	}
	if p.MaxHealth != gained.MaxHealth || p.MaxMana != gained.MaxMana {
		t.Errorf("stats %d/%d, want %d/%d", p.MaxHealth, p.MaxMana, gained.MaxHealth, gained.MaxMana)
	}
	if !p.ActivePerks["steady_mind"] {
		t.Error("steady_mind should be granted")
	}
	if events := p.drainOutbox(); len(events) != 0 {
		t.Errorf("got %d events, want none", len(events))
	}
	if again := p.CatchUp(); len(again) != 0 {
		t.Errorf("second CatchUp applied %v", again)
	}
}

func TestGrantExp_DoesNotCountAsSolved(t *testing.T) {
	p := NewPlayer()
	p.GrantExp(50)
	if p.TotalProblemsSolved != 0 {
		t.Errorf("TotalProblemsSolved = %d, want 0", p.TotalProblemsSolved)
	}
	if p.Exp != 50 {
		t.Errorf("Exp = %d, want 50", p.Exp)
	}
}

func TestGrantExp_SaturatesAtMaxRealm(t *testing.T) {
	p := NewPlayer()
	p.GrantExp(math.MaxUint64)
	p.GrantExp(10)
	if p.Exp != math.MaxUint64 {
		t.Errorf("Exp = %d, want saturation at MaxUint64", p.Exp)
	}
	if p.Realm != MaxRealm {
		t.Errorf("Realm = %v, want %v", p.Realm, MaxRealm)
	}
}

func TestPenalizeExp_FlooredAtRealmThreshold(t *testing.T) {
	p := NewPlayer()
	p.GainExp(150)

	lost := p.PenalizeExp(80)
	if lost != 50 {
		t.Errorf("lost = %d, want 50", lost)
	}
	if p.Exp != 100 || p.Realm != RealmQiRefining {
		t.Errorf("after penalty exp=%d realm=%v, want 100 Qi Refining", p.Exp, p.Realm)
	}
	if lost := p.PenalizeExp(10); lost != 0 {
		t.Errorf("penalty at floor removed %d, want 0", lost)
	}
}

func TestRecordAnswer_ComboReset(t *testing.T) {
	p := NewPlayer()
	for range 7 {
		p.RecordAnswer(true)
	}
	p.RecordAnswer(false)
	if p.Combo != 0 {
		t.Errorf("Combo = %d after wrong answer, want 0", p.Combo)
	}
	if p.MaxCombo != 7 {
		t.Errorf("MaxCombo = %d, want 7", p.MaxCombo)
	}
	if p.TotalAnswers != 8 || p.CorrectAnswers != 7 {
		t.Errorf("answers = %d/%d, want 7/8", p.CorrectAnswers, p.TotalAnswers)
	}
}

func TestAccuracy(t *testing.T) {
	p := NewPlayer()
	if got := p.Accuracy(); got != 0 {
		t.Errorf("Accuracy with no answers = %d, want 0", got)
	}
	p.RecordAnswer(true)
	p.RecordAnswer(true)
	p.RecordAnswer(false)
	if got := p.Accuracy(); got != 67 {
		t.Errorf("Accuracy = %d, want 67", got)
	}
}

func TestCollectibles_MergeAndPrune(t *testing.T) {
	p := NewPlayer()
	if err := p.AddCollectible("qi_pill", 2); err != nil {
		t.Fatal(err)
	}
	if err := p.AddCollectible("qi_pill", 3); err != nil {
		t.Fatal(err)
	}
	if len(p.Collectibles) != 1 || p.Quantity("qi_pill") != 5 {
		t.Errorf("Collectibles = %v, want single qi_pill entry of 5", p.Collectibles)
	}
	if err := p.RemoveCollectible("qi_pill", 5); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Collectibles["qi_pill"]; ok {
		t.Error("zero-quantity entry should be pruned")
	}
	if err := p.RemoveCollectible("qi_pill", 1); !errors.Is(err, ErrInsufficientQuantity) {
		t.Errorf("err = %v, want ErrInsufficientQuantity", err)
	}
	if err := p.AddCollectible("qi_pill", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestCollectibles_OverflowRejected(t *testing.T) {
	p := NewPlayer()
	if err := p.AddCollectible("qi_pill", math.MaxInt); err != nil {
		t.Fatal(err)
	}
	if err := p.AddCollectible("qi_pill", 1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
	if got := p.Quantity("qi_pill"); got != math.MaxInt {
		t.Errorf("Quantity = %d, want unchanged %d", got, math.MaxInt)
	}

	if err := p.AddCollectible("spirit_herb", 5); err != nil {
		t.Fatal(err)
	}
	if got := p.TotalCollectibles(); got != math.MaxInt {
		t.Errorf("TotalCollectibles = %d, want saturated %d", got, math.MaxInt)
	}
}

func TestEquip_Errors(t *testing.T) {
	items := testItems(t)
	p := NewPlayer()

	pill, _ := items.Get("qi_pill")
	p.AddCollectible("qi_pill", 1)
	if _, err := p.Equip(pill); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("equip consumable err = %v, want ErrInvalidItem", err)
	}

	sword, _ := items.Get("iron_sword")
	if _, err := p.Equip(sword); !errors.Is(err, ErrNotOwned) {
		t.Errorf("equip unowned err = %v, want ErrNotOwned", err)
	}
}

func TestEquip_SwapReturnsPreviousToInventory(t *testing.T) {
	items := testItems(t)
	p := NewPlayer()
	iron, _ := items.Get("iron_sword")
	jade, _ := items.Get("jade_sword")
	p.AddCollectible("iron_sword", 1)
	p.AddCollectible("jade_sword", 1)

	if prev, err := p.Equip(iron); err != nil || prev != "" {
		t.Fatalf("first equip = %q, %v", prev, err)
	}
	if p.Quantity("iron_sword") != 0 {
		t.Errorf("iron_sword quantity = %d, want 0 while equipped", p.Quantity("iron_sword"))
	}

	prev, err := p.Equip(jade)
	if err != nil {
		t.Fatal(err)
	}
	if prev != "iron_sword" {
		t.Errorf("previous = %q, want iron_sword", prev)
	}
	if p.Equipped[SlotWeapon] != "jade_sword" {
		t.Errorf("weapon slot = %q, want jade_sword", p.Equipped[SlotWeapon])
	}
	if p.Quantity("iron_sword") != 1 {
		t.Errorf("iron_sword quantity = %d, want 1 after swap", p.Quantity("iron_sword"))
	}
}

func TestUnequip(t *testing.T) {
	items := testItems(t)
	p := NewPlayer()
	if id, err := p.Unequip(SlotArmor); err != nil || id != "" {
		t.Errorf("unequip empty slot = %q, %v, want no-op", id, err)
	}
	if _, err := p.Unequip(Slot("cape")); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("err = %v, want ErrUnknownSlot", err)
	}

	talisman, _ := items.Get("jade_talisman")
	p.AddCollectible("jade_talisman", 1)
	p.Equip(talisman)
	id, err := p.Unequip(SlotAccessory)
	if err != nil || id != "jade_talisman" {
		t.Fatalf("Unequip = %q, %v", id, err)
	}
	if p.Quantity("jade_talisman") != 1 {
		t.Error("unequipped item should return to collectibles")
	}
}

func TestClone_IsDeep(t *testing.T) {
	p := NewPlayer()
	p.AddCollectible("qi_pill", 1)
	p.ExploreZone("bamboo_grove")
	p.GainExp(100)

	cp := p.Clone()
	cp.Collectibles["qi_pill"] = 99
	cp.ExploredZones["abyss"] = true
	cp.ActivePerks["x"] = true

	if p.Quantity("qi_pill") != 1 {
		t.Error("clone shares Collectibles")
	}
	if p.ExploredZones["abyss"] || p.ActivePerks["x"] {
		t.Error("clone shares sets")
	}
	if cp.outbox != nil {
		t.Error("clone should not copy the outbox")
	}
}

func TestExploreZone_Idempotent(t *testing.T) {
	p := NewPlayer()
	if !p.ExploreZone("misty_peak") {
		t.Error("first visit should be new")
	}
	if p.ExploreZone("misty_peak") {
		t.Error("second visit should not be new")
	}
	if p.CurrentZone != "misty_peak" {
		t.Errorf("CurrentZone = %q", p.CurrentZone)
	}
}
