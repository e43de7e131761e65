// Package save converts sessions to and from versioned JSON documents and
// persists them remotely and locally.
package save

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mathrealm/backend/internal/progression"
)

// Version is the document schema written by Encode. Version 1 documents
// stored the realm by name and had no concept list; Decode migrates them.
const Version = 2

// Document is the persisted form of one player's session.
type Document struct {
	Version      int                     `json:"version"`
	PlayerID     string                  `json:"playerId"`
	SavedAt      time.Time               `json:"savedAt"`
	Player       PlayerDoc               `json:"player"`
	Tasks        []progression.GoalState `json:"tasks"`
	Achievements []progression.GoalState `json:"achievements"`
	DailyStreak  progression.StreakState `json:"dailyStreak"`
	Treasures    []progression.GoalState `json:"treasures"`
	Concepts     []progression.GoalState `json:"concepts"`
}

// PlayerDoc is the persisted player. Sets are sorted slices so encoding is
// deterministic.
type PlayerDoc struct {
	Realm      progression.Realm `json:"realm"`
	RealmLevel int               `json:"realmLevel"`
	Exp        uint64            `json:"exp"`
	Currency   uint64            `json:"currency"`

	Health    int `json:"health"`
	MaxHealth int `json:"maxHealth"`
	Mana      int `json:"mana"`
	MaxMana   int `json:"maxMana"`

	Combo               int `json:"combo"`
	MaxCombo            int `json:"maxCombo"`
	TotalAnswers        int `json:"totalAnswers"`
	CorrectAnswers      int `json:"correctAnswers"`
	TotalProblemsSolved int `json:"totalProblemsSolved"`

	Position    progression.Position `json:"position"`
	CurrentZone string               `json:"currentZone,omitempty"`

	Collectibles     map[string]int              `json:"collectibles"`
	Equipped         map[progression.Slot]string `json:"equipped"`
	ExploredZones    []string                    `json:"exploredZones"`
	MasteredConcepts []string                    `json:"masteredConcepts"`
	ConceptProgress  map[string]float64          `json:"conceptProgress"`
	ActivePerks      []string                    `json:"activePerks"`
}

// Encode renders doc as indented JSON with the current version.
func Encode(doc *Document) ([]byte, error) {
	doc.Version = Version
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a document of any supported version and migrates it to
// the current one.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	switch {
	case doc.Version > Version:
		return nil, fmt.Errorf("document version %d is newer than supported %d", doc.Version, Version)
	case doc.Version < Version:
		migrateV1(&doc)
	}
	doc.fillDefaults()
	return &doc, nil
}

// migrateV1 derives the concept list from the player's concept maps.
func migrateV1(doc *Document) {
	if doc.Concepts == nil {
		mastered := make(map[string]bool, len(doc.Player.MasteredConcepts))
		for _, id := range doc.Player.MasteredConcepts {
			mastered[id] = true
		}
		ids := make([]string, 0, len(doc.Player.ConceptProgress)+len(mastered))
		for id := range doc.Player.ConceptProgress {
			ids = append(ids, id)
		}
		for id := range mastered {
			if _, ok := doc.Player.ConceptProgress[id]; !ok {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			st := progression.GoalState{ID: id, Progress: doc.Player.ConceptProgress[id]}
			if mastered[id] || st.Progress >= progression.MasteryPercent {
				st.Completed = true
				st.Progress = progression.MasteryPercent
			}
			doc.Concepts = append(doc.Concepts, st)
		}
	}
	doc.Version = Version
}

func (doc *Document) fillDefaults() {
	if doc.Player.Collectibles == nil {
		doc.Player.Collectibles = make(map[string]int)
	}
	if doc.Player.Equipped == nil {
		doc.Player.Equipped = make(map[progression.Slot]string)
	}
	if doc.Player.ConceptProgress == nil {
		doc.Player.ConceptProgress = make(map[string]float64)
	}
}

// Capture snapshots a session into a document stamped with the session
// clock.
func Capture(s *progression.Session, playerID string) *Document {
	p := s.Player.Clone()
	return &Document{
		Version:  Version,
		PlayerID: playerID,
		SavedAt:  s.Now().UTC(),
		Player: PlayerDoc{
			Realm:               p.Realm,
			RealmLevel:          p.RealmLevel,
			Exp:                 p.Exp,
			Currency:            p.Currency,
			Health:              p.Health,
			MaxHealth:           p.MaxHealth,
			Mana:                p.Mana,
			MaxMana:             p.MaxMana,
			Combo:               p.Combo,
			MaxCombo:            p.MaxCombo,
			TotalAnswers:        p.TotalAnswers,
			CorrectAnswers:      p.CorrectAnswers,
			TotalProblemsSolved: p.TotalProblemsSolved,
			Position:            p.Position,
			CurrentZone:         p.CurrentZone,
			Collectibles:        p.Collectibles,
			Equipped:            p.Equipped,
			ExploredZones:       setList(p.ExploredZones),
			MasteredConcepts:    setList(p.MasteredConcepts),
			ConceptProgress:     p.ConceptProgress,
			ActivePerks:         setList(p.ActivePerks),
		},
		Tasks:        s.Tasks.States(),
		Achievements: s.Achievements.States(),
		DailyStreak:  s.Streak.State(),
		Treasures:    s.Treasures.States(),
		Concepts:     s.Concepts.States(),
	}
}

// Restore builds a session from doc. Malformed values are repaired and
// reported as issues; only invalid definitions produce an error.
func Restore(doc *Document, defs progression.Definitions, opts progression.Options) (*progression.Session, []progression.Issue, error) {
	s, err := progression.NewSession(defs, opts)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return s, nil, nil
	}

	p, issues := restorePlayer(doc.Player)
	s.Player = p
	issues = append(issues, s.Tasks.Restore(doc.Tasks)...)
	issues = append(issues, s.Achievements.Restore(doc.Achievements)...)
	issues = append(issues, s.Treasures.Restore(doc.Treasures)...)
	issues = append(issues, s.Concepts.Restore(doc.Concepts)...)
	issues = append(issues, s.Streak.Restore(doc.DailyStreak)...)
	s.Concepts.Sync(p)
	return s, issues, nil
}

func restorePlayer(d PlayerDoc) (*progression.Player, []progression.Issue) {
	var issues []progression.Issue
	report := func(path, format string, args ...any) {
		issues = append(issues, progression.Issue{Path: "player." + path, Message: fmt.Sprintf(format, args...)})
	}

	fresh := progression.NewPlayer()
	p := &progression.Player{
		Exp:                 d.Exp,
		Currency:            d.Currency,
		Combo:               d.Combo,
		MaxCombo:            d.MaxCombo,
		TotalAnswers:        d.TotalAnswers,
		CorrectAnswers:      d.CorrectAnswers,
		TotalProblemsSolved: d.TotalProblemsSolved,
		Position:            d.Position,
		CurrentZone:         d.CurrentZone,
	}
	p.InitMaps()

	p.Realm = progression.RealmMortal
	if d.Realm.Valid() {
		p.Realm = d.Realm
	}

	p.MaxHealth, p.Health = restorePool(d.MaxHealth, d.Health, fresh.MaxHealth, "health", "maxHealth", report)
	p.MaxMana, p.Mana = restorePool(d.MaxMana, d.Mana, fresh.MaxMana, "mana", "maxMana", report)

	if p.Combo < 0 {
		report("combo", "negative combo reset")
		p.Combo = 0
	}
	if p.MaxCombo < p.Combo {
		report("maxCombo", "raised to current combo %d", p.Combo)
		p.MaxCombo = p.Combo
	}
	if p.TotalAnswers < 0 || p.CorrectAnswers < 0 || p.CorrectAnswers > p.TotalAnswers {
		report("correctAnswers", "answer counts %d/%d repaired", p.CorrectAnswers, p.TotalAnswers)
		p.TotalAnswers = max(p.TotalAnswers, 0)
		p.CorrectAnswers = min(max(p.CorrectAnswers, 0), p.TotalAnswers)
	}
	if p.TotalProblemsSolved < 0 {
		report("totalProblemsSolved", "negative count reset")
		p.TotalProblemsSolved = 0
	}

	for id, qty := range d.Collectibles {
		switch {
		case qty < 0:
			report("collectibles."+id, "negative quantity %d dropped", qty)
		case qty > 0:
			p.Collectibles[id] = qty
		}
	}
	for slot, id := range d.Equipped {
		if !slot.Valid() {
			report("equipped."+string(slot), "unknown slot dropped")
			continue
		}
		if id != "" {
			p.Equipped[slot] = id
		}
	}
	for _, id := range d.ExploredZones {
		p.ExploredZones[id] = true
	}
	for _, id := range d.MasteredConcepts {
		p.MasteredConcepts[id] = true
	}
	for _, id := range d.ActivePerks {
		p.ActivePerks[id] = true
	}
	for id, v := range d.ConceptProgress {
		if math.IsNaN(v) || v < 0 || v > progression.MasteryPercent {
			report("conceptProgress."+id, "progress %v clamped", v)
			if math.IsNaN(v) {
				v = 0
			}
			v = min(max(v, 0), progression.MasteryPercent)
		}
		p.ConceptProgress[id] = v
	}

	// A realm below what the exp earned gets the skipped breakthroughs'
	// stats and perks. A realm above it is lowered without taking any back.
	want := progression.RealmForExp(d.Exp)
	switch {
	case p.Realm < want:
		p.CatchUp()
		report("realm", "realm %s does not match exp %d, using %s", d.Realm, d.Exp, want)
	case p.Realm > want || p.Realm != d.Realm:
		p.Realm = want
		report("realm", "realm %s does not match exp %d, using %s", d.Realm, d.Exp, want)
	case d.RealmLevel != want.Rank():
		report("realmLevel", "level %d repaired", d.RealmLevel)
	}
	p.RealmLevel = p.Realm.Rank()
	return p, issues
}

func restorePool(maxValue, value, fallback int, name, maxName string, report func(string, string, ...any)) (int, int) {
	if maxValue <= 0 {
		report(maxName, "non-positive maximum reset to %d", fallback)
		maxValue = fallback
	}
	if value < 0 || value > maxValue {
		report(name, "%d clamped to [0, %d]", value, maxValue)
		value = min(max(value, 0), maxValue)
	}
	return maxValue, value
}

func setList(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k, ok := range set {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
