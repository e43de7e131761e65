package progression

import (
	"fmt"
	"math"
	"sort"
)

const (
	startingHealth = 100
	startingMana   = 50
)

// Position is the player's last known location inside CurrentZone.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Player is the single player entity. It is owned by the session and handed
// to trackers by pointer; trackers only change it through the grant methods.
//
// Player is not safe for concurrent use. Callers that share one player across
// goroutines must serialise access (see internal/hub).
type Player struct {
	Realm      Realm
	RealmLevel int
	Exp        uint64
	Currency   uint64

	Health    int
	MaxHealth int
	Mana      int
	MaxMana   int

	Combo               int
	MaxCombo            int
	TotalAnswers        int
	CorrectAnswers      int
	TotalProblemsSolved int

	Position    Position
	CurrentZone string

	Collectibles     map[string]int
	Equipped         map[Slot]string
	ExploredZones    map[string]bool
	MasteredConcepts map[string]bool
	ConceptProgress  map[string]float64
	ActivePerks      map[string]bool

	// outbox holds events raised by the player itself (realm_up,
	// concept_mastery) until the dispatcher drains them.
	outbox []Event
}

// NewPlayer returns a mortal with starting stats and empty collections.
func NewPlayer() *Player {
	p := &Player{
		Realm:     RealmMortal,
		Health:    startingHealth,
		MaxHealth: startingHealth,
		Mana:      startingMana,
		MaxMana:   startingMana,
	}
	p.InitMaps()
	return p
}

// InitMaps ensures every map field is non-nil. Restored players call this
// after decoding.
func (p *Player) InitMaps() {
	if p.Collectibles == nil {
		p.Collectibles = make(map[string]int)
	}
	if p.Equipped == nil {
		p.Equipped = make(map[Slot]string)
	}
	if p.ExploredZones == nil {
		p.ExploredZones = make(map[string]bool)
	}
	if p.MasteredConcepts == nil {
		p.MasteredConcepts = make(map[string]bool)
	}
	if p.ConceptProgress == nil {
		p.ConceptProgress = make(map[string]float64)
	}
	if p.ActivePerks == nil {
		p.ActivePerks = make(map[string]bool)
	}
}

// LevelUp describes the realm transitions caused by one exp grant.
type LevelUp struct {
	From    Realm
	To      Realm
	Crossed []Realm // every realm entered, in order
}

// Advanced reports whether at least one realm was entered.
func (l LevelUp) Advanced() bool {
	return len(l.Crossed) > 0
}

// GainExp adds exp earned by solving a problem and counts the problem as
// solved. The realm advances one step at a time until no further threshold
// is crossed, so a single large grant lands on the same realm as several
// smaller ones. Each crossing raises a realm_up event.
func (p *Player) GainExp(amount uint64) LevelUp {
	p.TotalProblemsSolved++
	return p.GrantExp(amount)
}

// GrantExp adds exp from a reward (goal, streak, treasure). It does not count
// as a solved problem.
func (p *Player) GrantExp(amount uint64) LevelUp {
	if amount > math.MaxUint64-p.Exp {
		p.Exp = math.MaxUint64
	} else {
		p.Exp += amount
	}
	return p.advance()
}

// PenalizeExp removes up to amount exp, never dropping below the threshold of
// the current realm, and returns how much was actually removed.
func (p *Player) PenalizeExp(amount uint64) uint64 {
	floor := p.Realm.Threshold()
	if p.Exp <= floor {
		return 0
	}
	lost := min(amount, p.Exp-floor)
	p.Exp -= lost
	return lost
}

func (p *Player) advance() LevelUp {
	lu := LevelUp{From: p.Realm, To: p.Realm}
	for {
		next, ok := p.Realm.Next()
		if !ok || p.Exp < next.Threshold() {
			break
		}
		p.enterRealm(next)
		lu.Crossed = append(lu.Crossed, next)
	}
	lu.To = p.Realm
	return lu
}

func (p *Player) enterRealm(r Realm) {
	p.applyRealm(r)
	p.emit(Event{Type: EventRealmUp, Realm: r})
}

func (p *Player) applyRealm(r Realm) {
	def := r.Def()
	p.Realm = r
	p.RealmLevel = r.Rank()
	p.MaxHealth += def.Health
	p.Health = p.MaxHealth
	p.MaxMana += def.Mana
	p.Mana = p.MaxMana
	if def.Perk != "" {
		p.GrantPerk(def.Perk)
	}
}

// CatchUp applies the stat and perk grants of every realm the player's exp
// has already passed, without emitting events. It returns the realms applied.
func (p *Player) CatchUp() []Realm {
	var applied []Realm
	for {
		next, ok := p.Realm.Next()
		if !ok || p.Exp < next.Threshold() {
			return applied
		}
		p.applyRealm(next)
		applied = append(applied, next)
	}
}

// RecordAnswer updates answer totals and the combo counter.
func (p *Player) RecordAnswer(correct bool) {
	p.TotalAnswers++
	if !correct {
		p.Combo = 0
		return
	}
	p.CorrectAnswers++
	p.Combo++
	p.MaxCombo = max(p.MaxCombo, p.Combo)
}

// Accuracy returns the rounded percentage of correct answers, 0 when no
// answers were recorded.
func (p *Player) Accuracy() int {
	if p.TotalAnswers == 0 {
		return 0
	}
	return int(math.Round(100 * float64(p.CorrectAnswers) / float64(p.TotalAnswers)))
}

// AddCollectible merges qty of id into the inventory.
func (p *Player) AddCollectible(id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	if have := p.Collectibles[id]; qty > math.MaxInt-have {
		return fmt.Errorf("%w: %s has %d, cannot add %d", ErrInvalidQuantity, id, have, qty)
	}
	p.Collectibles[id] += qty
	return nil
}

// RemoveCollectible takes qty of id out of the inventory, pruning the entry
// when it reaches zero.
func (p *Player) RemoveCollectible(id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	have := p.Collectibles[id]
	if have < qty {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientQuantity, id, have, qty)
	}
	if have == qty {
		delete(p.Collectibles, id)
	} else {
		p.Collectibles[id] = have - qty
	}
	return nil
}

// Quantity returns how many of id the player holds.
func (p *Player) Quantity(id string) int {
	return p.Collectibles[id]
}

// TotalCollectibles sums quantities across the whole inventory, saturating
// at math.MaxInt.
func (p *Player) TotalCollectibles() int {
	total := 0
	for _, n := range p.Collectibles {
		if n > math.MaxInt-total {
			return math.MaxInt
		}
		total += n
	}
	return total
}

// Equip moves one unit of item from the inventory into its slot. Whatever
// was in the slot goes back into the inventory and its id is returned.
func (p *Player) Equip(item ItemDef) (string, error) {
	slot, ok := item.Slot()
	if !ok {
		return "", fmt.Errorf("%w: %s (%s)", ErrInvalidItem, item.ID, item.Category)
	}
	if p.Collectibles[item.ID] < 1 {
		return "", fmt.Errorf("%w: %s", ErrNotOwned, item.ID)
	}
	if err := p.RemoveCollectible(item.ID, 1); err != nil {
		return "", err
	}
	previous := p.Equipped[slot]
	if previous != "" {
		p.Collectibles[previous]++
	}
	p.Equipped[slot] = item.ID
	return previous, nil
}

// Unequip empties slot and returns the item to the inventory. Unequipping an
// empty slot is a no-op.
func (p *Player) Unequip(slot Slot) (string, error) {
	if !slot.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	id := p.Equipped[slot]
	if id == "" {
		return "", nil
	}
	delete(p.Equipped, slot)
	p.Collectibles[id]++
	return id, nil
}

// GrantPerk adds a permanent perk. It reports false if already active.
func (p *Player) GrantPerk(id string) bool {
	if p.ActivePerks[id] {
		return false
	}
	p.ActivePerks[id] = true
	return true
}

// ExploreZone records a zone visit and makes it the current zone. It reports
// whether the zone was new.
func (p *Player) ExploreZone(id string) bool {
	p.CurrentZone = id
	if p.ExploredZones[id] {
		return false
	}
	p.ExploredZones[id] = true
	return true
}

// ExploredList returns the explored zones sorted.
func (p *Player) ExploredList() []string {
	return sortedKeys(p.ExploredZones)
}

// Mastered reports whether conceptID has been mastered.
func (p *Player) Mastered(conceptID string) bool {
	return p.MasteredConcepts[conceptID]
}

func (p *Player) emit(ev Event) {
	p.outbox = append(p.outbox, ev)
}

func (p *Player) drainOutbox() []Event {
	out := p.outbox
	p.outbox = nil
	return out
}

// Clone returns a deep copy. The outbox is not copied.
func (p *Player) Clone() *Player {
	cp := *p
	cp.outbox = nil
	cp.Collectibles = make(map[string]int, len(p.Collectibles))
	for k, v := range p.Collectibles {
		cp.Collectibles[k] = v
	}
	cp.Equipped = make(map[Slot]string, len(p.Equipped))
	for k, v := range p.Equipped {
		cp.Equipped[k] = v
	}
	cp.ExploredZones = cloneSet(p.ExploredZones)
	cp.MasteredConcepts = cloneSet(p.MasteredConcepts)
	cp.ActivePerks = cloneSet(p.ActivePerks)
	cp.ConceptProgress = make(map[string]float64, len(p.ConceptProgress))
	for k, v := range p.ConceptProgress {
		cp.ConceptProgress[k] = v
	}
	return &cp
}

func cloneSet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		if v {
			out[k] = true
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k, ok := range set {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
