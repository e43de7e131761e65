package progression

// EventType tags a gameplay event delivered to the trackers.
type EventType string

const (
	EventProblemSolved     EventType = "problem_solved"
	EventItemCollected     EventType = "item_collected"
	EventResourceCollected EventType = "resource_collected"
	EventRealmUp           EventType = "realm_up"
	EventComboAchieved     EventType = "combo_achieved"
	EventZoneEntered       EventType = "zone_entered"
	EventProblemAnswered   EventType = "problem_answered"
	EventConceptMastery    EventType = "concept_mastery"
)

// EventTypes lists the full inbound vocabulary.
var EventTypes = []EventType{
	EventProblemSolved,
	EventItemCollected,
	EventResourceCollected,
	EventRealmUp,
	EventComboAchieved,
	EventZoneEntered,
	EventProblemAnswered,
	EventConceptMastery,
}

// Known reports whether t belongs to the event vocabulary.
func (t EventType) Known() bool {
	for _, k := range EventTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Event is one gameplay event. Only the payload fields relevant to Type are
// populated.
type Event struct {
	Type EventType `json:"type"`

	ItemID        string   `json:"itemId,omitempty"`        // item_collected
	Realm         Realm    `json:"realm,omitempty"`         // realm_up: the realm just entered
	Combo         int      `json:"combo,omitempty"`         // combo_achieved
	ExploredZones []string `json:"exploredZones,omitempty"` // zone_entered
	Correct       bool     `json:"correct,omitempty"`       // problem_answered
	ConceptID     string   `json:"conceptId,omitempty"`     // problem_answered, concept_mastery
}

// snapshot copies the slice payloads so handlers cannot observe later
// mutations of the caller's data.
func (e Event) snapshot() Event {
	if e.ExploredZones != nil {
		zones := make([]string, len(e.ExploredZones))
		copy(zones, e.ExploredZones)
		e.ExploredZones = zones
	}
	return e
}
