package progression

import (
	"testing"
	"time"
)

// scriptRNG replays fixed values. Once a script is exhausted Float64 returns
// 0.99 (no critical, no drop) and IntN returns 0.
type scriptRNG struct {
	floats []float64
	ints   []int
}

func (r *scriptRNG) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.99
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *scriptRNG) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return min(v, n-1)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testItems(t *testing.T) *ItemCatalog {
	t.Helper()
	c, err := NewItemCatalog([]ItemDef{
		{ID: "qi_pill", Name: "Qi Pill", Category: CategoryConsumable, Rarity: RarityCommon, MaxQuantity: 3},
		{ID: "spirit_herb", Name: "Spirit Herb", Category: CategoryMaterial, Rarity: RarityUncommon, MaxQuantity: 2},
		{ID: "jade_talisman", Name: "Jade Talisman", Category: CategoryAccessory, Rarity: RarityRare, MaxQuantity: 1},
		{ID: "iron_sword", Name: "Iron Sword", Category: CategoryWeapon, Rarity: RarityCommon, MaxQuantity: 1},
		{ID: "jade_sword", Name: "Jade Sword", Category: CategoryWeapon, Rarity: RarityRare, MaxQuantity: 1},
		{ID: "phoenix_feather", Name: "Phoenix Feather", Category: CategoryTreasure, Rarity: RarityLegendary, MaxQuantity: 1},
	})
	if err != nil {
		t.Fatalf("NewItemCatalog: %v", err)
	}
	return c
}

func testDefinitions(t *testing.T) Definitions {
	t.Helper()
	return Definitions{
		Items: testItems(t),
		Zones: []ZoneDef{
			{ID: "bamboo_grove", Name: "Bamboo Grove"},
			{ID: "misty_peak", Name: "Misty Peak"},
			{ID: "abyss", Name: "Abyss", MinRealm: RealmFoundation},
		},
		Tasks: []GoalDef{
			{ID: "first_steps", Name: "First Steps", Condition: CountThreshold{Event: EventProblemSolved, Target: 3}, Reward: RewardSpec{Exp: 30}},
			{ID: "steady_hand", Name: "Steady Hand", Condition: AccuracyThreshold{MinSample: 5, Percent: 80}, Reward: RewardSpec{Exp: 20}},
		},
		Achievements: []GoalDef{
			{ID: "combo_5", Name: "Flowing Qi", Condition: ComboThreshold{Target: 5}, Reward: RewardSpec{Exp: 25}},
			{ID: "reach_qi", Name: "Qi Awakened", Condition: RealmReached{Realm: RealmQiRefining}, Reward: RewardSpec{Items: []ItemGrant{{ItemID: "qi_pill", Quantity: 2}}}},
			{ID: "wanderer", Name: "Wanderer", Condition: SetCompleteness{Members: []string{"bamboo_grove", "misty_peak"}}, Reward: RewardSpec{Exp: 40}},
			{ID: "first_mastery", Name: "Enlightened", Condition: CountThreshold{Event: EventConceptMastery, Target: 1}, Reward: RewardSpec{Exp: 10}},
		},
		Treasures: []GoalDef{
			{ID: "sunken_chest", Name: "Sunken Chest", Condition: Discovery{}, Reward: RewardSpec{Exp: 80, Items: []ItemGrant{{ItemID: "jade_sword", Quantity: 1}}}},
		},
		Concepts: []ConceptDef{
			{ID: "addition", Name: "Addition", Reward: RewardSpec{Exp: 60}},
			{ID: "division", Name: "Division", Reward: RewardSpec{Exp: 60}},
		},
		DropPool: []string{"qi_pill", "spirit_herb"},
	}
}

func newTestSession(t *testing.T, rng RNG) *Session {
	t.Helper()
	opts := DefaultOptions()
	opts.RNG = rng
	opts.Clock = fixedClock(testNow)
	opts.Streak.Location = time.UTC
	s, err := NewSession(testDefinitions(t), opts)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func completedIDs(cs []GoalCompleted) map[string]bool {
	ids := make(map[string]bool, len(cs))
	for _, c := range cs {
		ids[c.GoalID] = true
	}
	return ids
}
