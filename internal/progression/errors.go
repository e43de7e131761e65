package progression

import "errors"

// Lookup failures. Operations wrap these with the offending id so callers
// can test with errors.Is and still log something useful.
var (
	ErrUnknownGoal    = errors.New("unknown goal")
	ErrUnknownItem    = errors.New("unknown item")
	ErrUnknownZone    = errors.New("unknown zone")
	ErrUnknownConcept = errors.New("unknown concept")
	ErrUnknownSlot    = errors.New("unknown slot")
)

// ErrInvalidItem is returned when equipping an item whose category has no slot.
var ErrInvalidItem = errors.New("item is not equippable")

// ErrZoneLocked is returned when entering a zone above the player's realm.
var ErrZoneLocked = errors.New("zone locked")

// ErrNotOwned is returned when equipping an item the player does not hold.
var ErrNotOwned = errors.New("item not owned")

// ErrInsufficientQuantity is returned when removing more items than are held.
var ErrInsufficientQuantity = errors.New("insufficient quantity")

// ErrInvalidQuantity is returned for non-positive quantities.
var ErrInvalidQuantity = errors.New("quantity must be positive")
