package progression

import (
	"fmt"
	"time"
)

// ZoneDef is an explorable zone. Entering requires MinRealm.
type ZoneDef struct {
	ID       string
	Name     string
	MinRealm Realm
}

// Definitions is the static content a session is built from.
type Definitions struct {
	Items        *ItemCatalog
	Zones        []ZoneDef
	Tasks        []GoalDef
	Achievements []GoalDef
	Treasures    []GoalDef
	Concepts     []ConceptDef
	// DropPool lists the item ids eligible for random drops.
	DropPool []string
}

// Options carries the tunables and injected capabilities of a session.
type Options struct {
	Rewards  RewardConfig
	Streak   StreakRules
	Concepts ConceptRules
	RNG      RNG
	Skills   SkillSource
	Clock    func() time.Time
}

// DefaultOptions returns the shipped balance with a real clock and RNG.
func DefaultOptions() Options {
	return Options{
		Rewards:  DefaultRewardConfig(),
		Streak:   DefaultStreakRules(),
		Concepts: DefaultConceptRules(),
	}
}

// Session is the explicit context of one player's game: the player plus
// every tracker and the calculator. A Session is not safe for concurrent
// use.
type Session struct {
	Player       *Player
	Tasks        *GoalTracker
	Achievements *GoalTracker
	Concepts     *ConceptTracker
	Treasures    *TreasureRegistry
	Streak       *DailyStreak
	Calculator   *Calculator
	Dispatcher   *Dispatcher

	items  *ItemCatalog
	zones  map[string]ZoneDef
	order  []string
	skills SkillSource
	clock  func() time.Time
}

// NewSession builds a session around a fresh player.
func NewSession(defs Definitions, opts Options) (*Session, error) {
	if defs.Items == nil {
		empty, _ := NewItemCatalog(nil)
		defs.Items = empty
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Skills == nil {
		opts.Skills = FixedSkill(1)
	}

	tasks, err := NewTaskTracker(defs.Tasks)
	if err != nil {
		return nil, err
	}
	achievements, err := NewAchievementTracker(defs.Achievements)
	if err != nil {
		return nil, err
	}
	concepts, err := NewConceptTracker(defs.Concepts, opts.Concepts)
	if err != nil {
		return nil, err
	}
	treasures, err := NewTreasureRegistry(defs.Treasures)
	if err != nil {
		return nil, err
	}
	tasks.SetClock(opts.Clock)
	achievements.SetClock(opts.Clock)
	concepts.SetClock(opts.Clock)
	treasures.SetClock(opts.Clock)

	pool := make([]ItemDef, 0, len(defs.DropPool))
	for _, id := range defs.DropPool {
		it, ok := defs.Items.Get(id)
		if !ok {
			return nil, fmt.Errorf("drop pool: %w: %s", ErrUnknownItem, id)
		}
		pool = append(pool, it)
	}

	s := &Session{
		Player:       NewPlayer(),
		Tasks:        tasks,
		Achievements: achievements,
		Concepts:     concepts,
		Treasures:    treasures,
		Streak:       NewDailyStreak(opts.Streak),
		Calculator:   NewCalculator(opts.Rewards, pool, opts.RNG),
		items:        defs.Items,
		zones:        make(map[string]ZoneDef, len(defs.Zones)),
		skills:       opts.Skills,
		clock:        opts.Clock,
	}
	for _, z := range defs.Zones {
		if _, dup := s.zones[z.ID]; dup {
			return nil, fmt.Errorf("duplicate zone id %q", z.ID)
		}
		s.zones[z.ID] = z
		s.order = append(s.order, z.ID)
	}
	s.Dispatcher = NewDispatcher(s.Tasks, s.Achievements, s.Concepts, s.Treasures, s.Streak)
	return s, nil
}

// Items returns the item catalog.
func (s *Session) Items() *ItemCatalog {
	return s.items
}

// Zones returns the zone catalog in definition order.
func (s *Session) Zones() []ZoneDef {
	out := make([]ZoneDef, len(s.order))
	for i, id := range s.order {
		out[i] = s.zones[id]
	}
	return out
}

// Now returns the session clock's current time.
func (s *Session) Now() time.Time {
	return s.clock()
}

// Effects are the progression side effects of one session operation.
type Effects struct {
	LevelUp   LevelUp         `json:"levelUp"`
	Completed []GoalCompleted `json:"completed,omitempty"`
}

// observe runs fn and reports the realms crossed while it ran.
func (s *Session) observe(fn func() []GoalCompleted) Effects {
	from := s.Player.Realm
	completed := fn()
	lu := LevelUp{From: from, To: s.Player.Realm}
	for r := from + 1; r <= s.Player.Realm; r++ {
		lu.Crossed = append(lu.Crossed, r)
	}
	return Effects{LevelUp: lu, Completed: completed}
}

// AnswerInput is one answered problem from the game loop.
type AnswerInput struct {
	Correct    bool   `json:"correct"`
	Difficulty int    `json:"difficulty"`
	ConceptID  string `json:"conceptId,omitempty"`
}

// AnswerOutcome reports everything an answer caused.
type AnswerOutcome struct {
	Effects
	Correct bool         `json:"correct"`
	Combo   int          `json:"combo"`
	Reward  AnswerReward `json:"reward"`
	Drop    *ItemGrant   `json:"drop,omitempty"`
}

// SubmitAnswer records an answer, pays its reward, rolls for a drop and
// dispatches the resulting events.
func (s *Session) SubmitAnswer(in AnswerInput) AnswerOutcome {
	p := s.Player
	in.Difficulty = ClampDifficulty(in.Difficulty)
	out := AnswerOutcome{Correct: in.Correct}
	out.Effects = s.observe(func() []GoalCompleted {
		p.RecordAnswer(in.Correct)
		out.Combo = p.Combo
		out.Reward = s.Calculator.ComputeAnswerReward(AnswerContext{
			Correct:         in.Correct,
			Combo:           p.Combo,
			Difficulty:      in.Difficulty,
			Realm:           p.Realm,
			SkillMultiplier: s.skills.ExpMultiplier(),
		})

		var completed []GoalCompleted
		completed = append(completed, s.Dispatcher.Dispatch(Event{
			Type:      EventProblemAnswered,
			Correct:   in.Correct,
			ConceptID: in.ConceptID,
		}, p)...)
		if !in.Correct {
			return completed
		}

		p.GainExp(out.Reward.Exp)
		p.Currency += out.Reward.Currency
		completed = append(completed, s.Dispatcher.Dispatch(Event{Type: EventProblemSolved}, p)...)
		completed = append(completed, s.Dispatcher.Dispatch(Event{Type: EventComboAchieved, Combo: p.Combo}, p)...)

		if drop, ok := s.Calculator.RandomDrop(in.Difficulty, p.Combo); ok {
			if err := p.AddCollectible(drop.ItemID, drop.Quantity); err == nil {
				out.Drop = &drop
				completed = append(completed, s.Dispatcher.Dispatch(Event{Type: EventItemCollected, ItemID: drop.ItemID}, p)...)
			}
		}
		return completed
	})
	return out
}

// CollectOutcome reports a pickup.
type CollectOutcome struct {
	Effects
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
	Total    int    `json:"total"`
}

// CollectItem adds qty of a catalog item to the inventory. Materials raise
// resource_collected, everything else item_collected.
func (s *Session) CollectItem(id string, qty int) (CollectOutcome, error) {
	it, ok := s.items.Get(id)
	if !ok {
		return CollectOutcome{ItemID: id}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if err := s.Player.AddCollectible(id, qty); err != nil {
		return CollectOutcome{ItemID: id}, err
	}
	ev := Event{Type: EventItemCollected, ItemID: id}
	if it.Category == CategoryMaterial {
		ev = Event{Type: EventResourceCollected, ItemID: id}
	}
	out := CollectOutcome{ItemID: id, Quantity: qty}
	out.Effects = s.observe(func() []GoalCompleted {
		return s.Dispatcher.Dispatch(ev, s.Player)
	})
	out.Total = s.Player.Quantity(id)
	return out, nil
}

// ZoneOutcome reports a zone entry.
type ZoneOutcome struct {
	Effects
	ZoneID   string `json:"zoneId"`
	New      bool   `json:"new"`
	Explored int    `json:"explored"`
}

// EnterZone moves the player into a zone and dispatches zone_entered with
// the explored set.
func (s *Session) EnterZone(id string) (ZoneOutcome, error) {
	z, ok := s.zones[id]
	if !ok {
		return ZoneOutcome{ZoneID: id}, fmt.Errorf("%w: %s", ErrUnknownZone, id)
	}
	if s.Player.Realm < z.MinRealm {
		return ZoneOutcome{ZoneID: id}, fmt.Errorf("%w: %s requires %s", ErrZoneLocked, id, z.MinRealm)
	}
	out := ZoneOutcome{ZoneID: id}
	out.New = s.Player.ExploreZone(id)
	s.Player.Position = Position{}
	out.Effects = s.observe(func() []GoalCompleted {
		return s.Dispatcher.Dispatch(Event{Type: EventZoneEntered, ExploredZones: s.Player.ExploredList()}, s.Player)
	})
	out.Explored = len(s.Player.ExploredZones)
	return out, nil
}

// CheckInOutcome reports a daily check-in.
type CheckInOutcome struct {
	Effects
	CheckInResult
}

// CheckIn performs the daily check-in at the session clock's time.
func (s *Session) CheckIn() CheckInOutcome {
	var out CheckInOutcome
	out.Effects = s.observe(func() []GoalCompleted {
		out.CheckInResult = s.Streak.CheckIn(s.Player, s.clock())
		return s.Dispatcher.Drain(s.Player)
	})
	return out
}

// DiscoverOutcome reports a treasure discovery.
type DiscoverOutcome struct {
	Effects
	DiscoverResult
}

// Discover finds a treasure. Unknown ids return ErrUnknownGoal; a repeat
// discovery reports Success false.
func (s *Session) Discover(id string) (DiscoverOutcome, error) {
	var out DiscoverOutcome
	var err error
	out.Effects = s.observe(func() []GoalCompleted {
		out.DiscoverResult, err = s.Treasures.Discover(id, s.Player)
		if err != nil {
			return nil
		}
		var completed []GoalCompleted
		if out.DiscoverResult.Goal != nil {
			completed = append(completed, *out.DiscoverResult.Goal)
		}
		return append(completed, s.Dispatcher.Drain(s.Player)...)
	})
	return out, err
}

// ConceptOutcome reports a direct concept progress update.
type ConceptOutcome struct {
	Effects
	ConceptResult
}

// UpdateConcept adds delta to a concept's mastery progress.
func (s *Session) UpdateConcept(id string, delta float64) (ConceptOutcome, error) {
	var out ConceptOutcome
	var err error
	out.Effects = s.observe(func() []GoalCompleted {
		out.ConceptResult, err = s.Concepts.UpdateProgress(id, delta, s.Player)
		if err != nil {
			return nil
		}
		var completed []GoalCompleted
		if out.ConceptResult.Goal != nil {
			completed = append(completed, *out.ConceptResult.Goal)
		}
		return append(completed, s.Dispatcher.Drain(s.Player)...)
	})
	return out, err
}

// EquipOutcome reports an equip.
type EquipOutcome struct {
	Slot     Slot   `json:"slot"`
	ItemID   string `json:"itemId"`
	Previous string `json:"previous,omitempty"`
}

// Equip equips a catalog item the player holds.
func (s *Session) Equip(id string) (EquipOutcome, error) {
	it, ok := s.items.Get(id)
	if !ok {
		return EquipOutcome{ItemID: id}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	prev, err := s.Player.Equip(it)
	if err != nil {
		return EquipOutcome{ItemID: id}, err
	}
	slot, _ := it.Slot()
	return EquipOutcome{Slot: slot, ItemID: id, Previous: prev}, nil
}

// Unequip empties slot and returns the id of what was removed.
func (s *Session) Unequip(slot Slot) (string, error) {
	return s.Player.Unequip(slot)
}

// Penalize removes exp without lowering the realm and returns the amount
// removed.
func (s *Session) Penalize(amount uint64) uint64 {
	return s.Player.PenalizeExp(amount)
}

// Status is a read-only view of the player for display.
type Status struct {
	Realm         string `json:"realm"`
	RealmLevel    int    `json:"realmLevel"`
	Exp           uint64 `json:"exp"`
	NextRealm     string `json:"nextRealm,omitempty"`
	NextThreshold uint64 `json:"nextThreshold,omitempty"`
	// RealmProgress is the 0..1 fraction of the way to the next realm.
	RealmProgress float64 `json:"realmProgress"`

	Health    int `json:"health"`
	MaxHealth int `json:"maxHealth"`
	Mana      int `json:"mana"`
	MaxMana   int `json:"maxMana"`

	Currency            uint64 `json:"currency"`
	Combo               int    `json:"combo"`
	MaxCombo            int    `json:"maxCombo"`
	Accuracy            int    `json:"accuracy"`
	TotalAnswers        int    `json:"totalAnswers"`
	TotalProblemsSolved int    `json:"totalProblemsSolved"`

	CurrentZone      string          `json:"currentZone,omitempty"`
	Collectibles     map[string]int  `json:"collectibles"`
	Equipped         map[Slot]string `json:"equipped"`
	ExploredZones    []string        `json:"exploredZones"`
	MasteredConcepts []string        `json:"masteredConcepts"`
	ActivePerks      []string        `json:"activePerks"`

	TasksDone        int         `json:"tasksDone"`
	TasksTotal       int         `json:"tasksTotal"`
	AchievementsDone int         `json:"achievementsDone"`
	Streak           StreakState `json:"streak"`
	CheckedInToday   bool        `json:"checkedInToday"`
}

// Status returns the current read-only view.
func (s *Session) Status() Status {
	p := s.Player.Clone()
	st := Status{
		Realm:               p.Realm.String(),
		RealmLevel:          p.RealmLevel,
		Exp:                 p.Exp,
		RealmProgress:       1,
		Health:              p.Health,
		MaxHealth:           p.MaxHealth,
		Mana:                p.Mana,
		MaxMana:             p.MaxMana,
		Currency:            p.Currency,
		Combo:               p.Combo,
		MaxCombo:            p.MaxCombo,
		Accuracy:            p.Accuracy(),
		TotalAnswers:        p.TotalAnswers,
		TotalProblemsSolved: p.TotalProblemsSolved,
		CurrentZone:         p.CurrentZone,
		Collectibles:        p.Collectibles,
		Equipped:            p.Equipped,
		ExploredZones:       p.ExploredList(),
		MasteredConcepts:    sortedKeys(p.MasteredConcepts),
		ActivePerks:         sortedKeys(p.ActivePerks),
		TasksDone:           s.Tasks.CompletedCount(),
		TasksTotal:          len(s.Tasks.goals),
		AchievementsDone:    s.Achievements.CompletedCount(),
		Streak:              s.Streak.State(),
		CheckedInToday:      s.Streak.CheckedInOn(s.clock()),
	}
	if next, ok := p.Realm.Next(); ok {
		st.NextRealm = next.String()
		st.NextThreshold = next.Threshold()
		floor := p.Realm.Threshold()
		st.RealmProgress = min(max(float64(p.Exp-floor)/float64(st.NextThreshold-floor), 0), 1)
	}
	return st
}
