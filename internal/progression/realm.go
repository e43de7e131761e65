package progression

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Realm is the player's cultivation rank. Realms are ordered; a higher value
// is a higher rank.
type Realm int

const (
	RealmMortal Realm = iota
	RealmQiRefining
	RealmFoundation
	RealmCoreFormation
	RealmNascentSoul
	RealmSpiritSevering
	RealmVoidRefinement
	RealmTribulation
	RealmImmortal
)

// MaxRealm is the highest attainable realm.
const MaxRealm = RealmImmortal

// RealmDef describes one row of the static realm table.
type RealmDef struct {
	Realm     Realm
	Key       string
	Name      string
	Threshold uint64 // cumulative exp required to enter this realm
	Health    int    // max health gained on entering
	Mana      int    // max mana gained on entering
	Perk      string // perk granted on entering, if any
}

var realmTable = [...]RealmDef{
	{RealmMortal, "mortal", "Mortal", 0, 0, 0, ""},
	{RealmQiRefining, "qi_refining", "Qi Refining", 100, 20, 10, ""},
	{RealmFoundation, "foundation", "Foundation Establishment", 500, 30, 15, "steady_mind"},
	{RealmCoreFormation, "core_formation", "Core Formation", 1_500, 40, 20, ""},
	{RealmNascentSoul, "nascent_soul", "Nascent Soul", 4_000, 50, 25, "spirit_sense"},
	{RealmSpiritSevering, "spirit_severing", "Spirit Severing", 10_000, 60, 30, ""},
	{RealmVoidRefinement, "void_refinement", "Void Refinement", 25_000, 70, 35, "void_step"},
	{RealmTribulation, "tribulation", "Tribulation Transcendence", 60_000, 80, 40, ""},
	{RealmImmortal, "immortal", "Immortal Ascension", 150_000, 100, 50, "immortal_body"},
}

// Realms returns a copy of the realm table in ascending order.
func Realms() []RealmDef {
	out := make([]RealmDef, len(realmTable))
	copy(out, realmTable[:])
	return out
}

// Valid reports whether r is inside the realm table.
func (r Realm) Valid() bool {
	return r >= RealmMortal && r <= MaxRealm
}

// Def returns the table row for r. Out-of-range values are clamped.
func (r Realm) Def() RealmDef {
	return realmTable[clampRealm(r)]
}

// Threshold returns the cumulative exp required to enter r.
func (r Realm) Threshold() uint64 {
	return r.Def().Threshold
}

// Rank is the ordinal of r, mirrored into PlayerState.RealmLevel.
func (r Realm) Rank() int {
	return int(clampRealm(r))
}

func (r Realm) String() string {
	return r.Def().Name
}

// Next returns the following realm and false when r is already the last.
func (r Realm) Next() (Realm, bool) {
	if r >= MaxRealm {
		return MaxRealm, false
	}
	return r + 1, true
}

// RealmForExp returns the highest realm whose threshold is <= exp.
func RealmForExp(exp uint64) Realm {
	realm := RealmMortal
	for _, def := range realmTable {
		if exp < def.Threshold {
			break
		}
		realm = def.Realm
	}
	return realm
}

// ParseRealm accepts a realm key ("core_formation") or display name.
func ParseRealm(s string) (Realm, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, def := range realmTable {
		if needle == def.Key || needle == strings.ToLower(def.Name) {
			return def.Realm, nil
		}
	}
	return RealmMortal, fmt.Errorf("unknown realm %q", s)
}

// MarshalJSON encodes the realm as its rank.
func (r Realm) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(r))
}

// UnmarshalJSON accepts the current integer rank as well as the older
// string form ("qi_refining") written by version 1 saves.
func (r *Realm) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*r = clampRealm(Realm(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cannot parse realm: %s", string(data))
	}
	parsed, err := ParseRealm(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func clampRealm(r Realm) Realm {
	return min(max(r, RealmMortal), MaxRealm)
}
