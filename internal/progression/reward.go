package progression

import (
	"math"
	"math/rand/v2"
	"sort"
)

// RNG is the randomness source used for criticals and drops. Tests inject a
// scripted implementation.
type RNG interface {
	Float64() float64
	IntN(n int) int
}

type defaultRNG struct{}

func (defaultRNG) Float64() float64 { return rand.Float64() }
func (defaultRNG) IntN(n int) int   { return rand.IntN(n) }

// Difficulty range the reward formula accepts. Values outside it are clamped.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// ClampDifficulty limits d to MinDifficulty..MaxDifficulty.
func ClampDifficulty(d int) int {
	return min(max(d, MinDifficulty), MaxDifficulty)
}

// SkillSource supplies the external skill multiplier applied to answer
// rewards.
type SkillSource interface {
	ExpMultiplier() float64
}

// FixedSkill is a SkillSource returning a constant multiplier.
type FixedSkill float64

func (f FixedSkill) ExpMultiplier() float64 { return float64(f) }

// RewardConfig holds the tunables of the reward formula. Zero values are not
// meaningful; start from DefaultRewardConfig.
type RewardConfig struct {
	BaseExpPerDifficulty      uint64
	BaseCurrencyPerDifficulty uint64
	ComboStep                 float64
	// MaxComboMultiplier caps 1+ComboStep*combo. Zero leaves it uncapped.
	MaxComboMultiplier float64
	// RealmMultipliers is indexed by realm rank. Realms past the end use the
	// last entry.
	RealmMultipliers []float64
	CritChance       float64
	// ComboMilestones maps an exact combo count to its bonus exp.
	ComboMilestones map[int]uint64

	DropBase          float64
	DropPerDifficulty float64
	DropPerCombo      float64
	DropCap           float64
	// RarityWeights are the relative drop weights. The legendary weight is
	// multiplied by the difficulty.
	RarityWeights map[Rarity]int
}

// DefaultRewardConfig returns the shipped balance values.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		BaseExpPerDifficulty:      10,
		BaseCurrencyPerDifficulty: 5,
		ComboStep:                 0.1,
		MaxComboMultiplier:        5.0,
		RealmMultipliers:          []float64{1.0, 1.25, 1.5, 1.75, 2.0, 2.25, 2.5, 2.75, 3.0},
		CritChance:                0.05,
		ComboMilestones:           map[int]uint64{5: 50, 10: 150, 20: 500},
		DropBase:                  0.10,
		DropPerDifficulty:         0.05,
		DropPerCombo:              0.02,
		DropCap:                   0.50,
		RarityWeights: map[Rarity]int{
			RarityCommon:    60,
			RarityUncommon:  25,
			RarityRare:      12,
			RarityLegendary: 3,
		},
	}
}

// BonusKind tags a bonus line in an AnswerReward.
type BonusKind string

const (
	BonusCritical       BonusKind = "critical"
	BonusComboMilestone BonusKind = "combo_milestone"
)

// BonusEvent is an extra payout reported alongside an answer reward.
type BonusEvent struct {
	Kind  BonusKind `json:"kind"`
	Combo int       `json:"combo,omitempty"`
	Exp   uint64    `json:"exp"`
}

// AnswerContext is the input to ComputeAnswerReward.
type AnswerContext struct {
	Correct         bool
	Combo           int
	Difficulty      int
	Realm           Realm
	SkillMultiplier float64
}

// AnswerReward is the payout for a single answer.
type AnswerReward struct {
	Exp      uint64       `json:"exp"`
	Currency uint64       `json:"currency"`
	Critical bool         `json:"critical"`
	Bonuses  []BonusEvent `json:"bonuses,omitempty"`
}

// Calculator turns answer outcomes into rewards. It has no side effects
// beyond drawing from its RNG.
type Calculator struct {
	cfg  RewardConfig
	rng  RNG
	pool []ItemDef
}

// NewCalculator builds a calculator. pool is the drop pool; items with an
// unknown rarity are left out. A nil rng uses math/rand/v2.
func NewCalculator(cfg RewardConfig, pool []ItemDef, rng RNG) *Calculator {
	if rng == nil {
		rng = defaultRNG{}
	}
	c := &Calculator{cfg: cfg, rng: rng}
	for _, it := range pool {
		if it.Rarity.Valid() {
			c.pool = append(c.pool, it)
		}
	}
	sort.Slice(c.pool, func(i, j int) bool { return c.pool[i].ID < c.pool[j].ID })
	return c
}

// Config returns the calculator's configuration.
func (c *Calculator) Config() RewardConfig {
	return c.cfg
}

// ComboMultiplier returns 1+ComboStep*combo, capped when a cap is set.
func (c *Calculator) ComboMultiplier(combo int) float64 {
	m := 1 + c.cfg.ComboStep*float64(max(combo, 0))
	if c.cfg.MaxComboMultiplier > 0 {
		m = min(m, c.cfg.MaxComboMultiplier)
	}
	return m
}

// RealmMultiplier looks up the multiplier for r.
func (c *Calculator) RealmMultiplier(r Realm) float64 {
	if len(c.cfg.RealmMultipliers) == 0 {
		return 1
	}
	i := min(r.Rank(), len(c.cfg.RealmMultipliers)-1)
	return c.cfg.RealmMultipliers[i]
}

// ComputeAnswerReward applies the reward formula. Incorrect answers earn
// nothing. Difficulty is clamped to MinDifficulty..MaxDifficulty.
func (c *Calculator) ComputeAnswerReward(ctx AnswerContext) AnswerReward {
	if !ctx.Correct {
		return AnswerReward{}
	}
	difficulty := uint64(ClampDifficulty(ctx.Difficulty))
	skill := ctx.SkillMultiplier
	if skill <= 0 {
		skill = 1
	}
	mult := c.ComboMultiplier(ctx.Combo) * c.RealmMultiplier(ctx.Realm) * skill

	r := AnswerReward{
		Exp:      scale(c.cfg.BaseExpPerDifficulty*difficulty, mult),
		Currency: scale(c.cfg.BaseCurrencyPerDifficulty*difficulty, mult),
	}
	if c.rng.Float64() < c.cfg.CritChance {
		r.Critical = true
		r.Bonuses = append(r.Bonuses, BonusEvent{Kind: BonusCritical, Exp: r.Exp})
		r.Exp = addSat(r.Exp, r.Exp)
		r.Currency = addSat(r.Currency, r.Currency)
	}
	if bonus, ok := c.cfg.ComboMilestones[ctx.Combo]; ok {
		r.Bonuses = append(r.Bonuses, BonusEvent{Kind: BonusComboMilestone, Combo: ctx.Combo, Exp: bonus})
		r.Exp = addSat(r.Exp, bonus)
	}
	return r
}

// scale returns floor(base*mult). The epsilon absorbs products such as
// 10*1.3 landing just under the integer.
func scale(base uint64, mult float64) uint64 {
	v := math.Floor(float64(base)*mult + 1e-9)
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(v)
}

func addSat(a, b uint64) uint64 {
	if b > math.MaxUint64-a {
		return math.MaxUint64
	}
	return a + b
}

// DropChance is clamp(DropBase + DropPerDifficulty*d + DropPerCombo*c, 0, DropCap)
// with d clamped like ComputeAnswerReward.
func (c *Calculator) DropChance(difficulty, combo int) float64 {
	d := ClampDifficulty(difficulty)
	p := c.cfg.DropBase + c.cfg.DropPerDifficulty*float64(d) + c.cfg.DropPerCombo*float64(max(combo, 0))
	return min(max(p, 0), c.cfg.DropCap)
}

// RandomDrop rolls for a drop. On success it picks an item by rarity weight
// and a quantity uniform in [1, MaxQuantity].
func (c *Calculator) RandomDrop(difficulty, combo int) (ItemGrant, bool) {
	if len(c.pool) == 0 {
		return ItemGrant{}, false
	}
	if c.rng.Float64() >= c.DropChance(difficulty, combo) {
		return ItemGrant{}, false
	}

	weights := make([]int, len(c.pool))
	total := 0
	for i, it := range c.pool {
		w := c.cfg.RarityWeights[it.Rarity]
		if it.Rarity == RarityLegendary {
			w *= ClampDifficulty(difficulty)
		}
		weights[i] = max(w, 0)
		total += weights[i]
	}
	if total == 0 {
		return ItemGrant{}, false
	}

	pick := c.rng.IntN(total)
	for i, w := range weights {
		if pick < w {
			it := c.pool[i]
			return ItemGrant{ItemID: it.ID, Quantity: 1 + c.rng.IntN(max(it.MaxQuantity, 1))}, true
		}
		pick -= w
	}
	return ItemGrant{}, false
}
