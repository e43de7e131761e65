package ws

import "github.com/mathrealm/backend/internal/progression"

type MessageType string

const (
	MsgGoalCompleted MessageType = "goal_completed"
	MsgRealmUp       MessageType = "realm_up"
	MsgCheckIn       MessageType = "check_in"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

type GoalCompletedPayload struct {
	PlayerID string                  `json:"playerId"`
	Tracker  progression.TrackerKind `json:"tracker"`
	GoalID   string                  `json:"goalId"`
	Name     string                  `json:"name"`
	Reward   progression.RewardSpec  `json:"reward"`
}

type RealmUpPayload struct {
	PlayerID string              `json:"playerId"`
	From     progression.Realm   `json:"from"`
	To       progression.Realm   `json:"to"`
	Crossed  []progression.Realm `json:"crossed"`
}

type CheckInPayload struct {
	PlayerID        string                  `json:"playerId"`
	ConsecutiveDays int                     `json:"consecutiveDays"`
	Reward          *progression.RewardSpec `json:"reward,omitempty"`
}

// ErrorPayload is the JSON body of a failed API request.
type ErrorPayload struct {
	Error string `json:"error"`
}
