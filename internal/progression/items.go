package progression

import (
	"fmt"
	"sort"
)

// Category classifies what an item is used for.
type Category string

const (
	CategoryConsumable Category = "consumable"
	CategoryMaterial   Category = "material"
	CategoryTreasure   Category = "treasure"
	CategoryWeapon     Category = "weapon"
	CategoryArmor      Category = "armor"
	CategoryAccessory  Category = "accessory"
)

// Slot is an equipment slot. Each slot holds at most one item.
type Slot string

const (
	SlotWeapon    Slot = "weapon"
	SlotArmor     Slot = "armor"
	SlotAccessory Slot = "accessory"
)

// Slots lists every equipment slot in display order.
var Slots = []Slot{SlotWeapon, SlotArmor, SlotAccessory}

// Valid reports whether s is one of the defined slots.
func (s Slot) Valid() bool {
	switch s {
	case SlotWeapon, SlotArmor, SlotAccessory:
		return true
	}
	return false
}

// Rarity orders drop-pool entries. The rarest tier is the only one whose
// weight scales with difficulty.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// Valid reports whether r is a known rarity.
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityLegendary:
		return true
	}
	return false
}

// ItemDef is a static item template.
type ItemDef struct {
	ID          string
	Name        string
	Category    Category
	Rarity      Rarity
	MaxQuantity int // upper bound of a single drop stack
}

// Slot returns the equipment slot for the item and whether it is equippable.
func (d ItemDef) Slot() (Slot, bool) {
	switch d.Category {
	case CategoryWeapon:
		return SlotWeapon, true
	case CategoryArmor:
		return SlotArmor, true
	case CategoryAccessory:
		return SlotAccessory, true
	}
	return "", false
}

// ItemGrant is a quantity of one item, used in rewards and drops.
type ItemGrant struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// ItemCatalog indexes item templates by id.
type ItemCatalog struct {
	items map[string]ItemDef
}

// NewItemCatalog builds a catalog, rejecting duplicate or empty ids.
func NewItemCatalog(defs []ItemDef) (*ItemCatalog, error) {
	c := &ItemCatalog{items: make(map[string]ItemDef, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("item with empty id")
		}
		if _, dup := c.items[d.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %q", d.ID)
		}
		if d.MaxQuantity < 1 {
			d.MaxQuantity = 1
		}
		c.items[d.ID] = d
	}
	return c, nil
}

// Get looks up an item template.
func (c *ItemCatalog) Get(id string) (ItemDef, bool) {
	if c == nil {
		return ItemDef{}, false
	}
	d, ok := c.items[id]
	return d, ok
}

// All returns every template sorted by id.
func (c *ItemCatalog) All() []ItemDef {
	out := make([]ItemDef, 0, len(c.items))
	for _, d := range c.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
