// Package catalog loads the static game content (items, zones, goals and
// concepts) from YAML and converts it into progression definitions.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/mathrealm/backend/internal/progression"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ItemYAML for YAML parsing
type ItemYAML struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"` // consumable, material, treasure, weapon, armor, accessory
	Rarity      string `yaml:"rarity"`   // common, uncommon, rare, legendary
	MaxQuantity int    `yaml:"max_quantity"`
	Drop        bool   `yaml:"drop"` // eligible for random drops
}

// ZoneYAML for YAML parsing
type ZoneYAML struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	MinRealm string `yaml:"min_realm"`
}

// GrantYAML for YAML parsing
type GrantYAML struct {
	ID       string `yaml:"id"`
	Quantity int    `yaml:"quantity"`
}

// RewardYAML for YAML parsing
type RewardYAML struct {
	Exp   uint64      `yaml:"exp"`
	Items []GrantYAML `yaml:"items"`
}

// ConditionYAML for YAML parsing. Kind selects which of the other fields
// apply.
type ConditionYAML struct {
	Kind      string   `yaml:"kind"` // count_threshold, combo_threshold, realm_reached, collect_count, accuracy_threshold, set_completeness
	Event     string   `yaml:"event"`
	Target    int      `yaml:"target"`
	Realm     string   `yaml:"realm"`
	MinSample int      `yaml:"min_sample"`
	Percent   float64  `yaml:"percent"`
	Members   []string `yaml:"members"` // empty = every zone
}

// GoalYAML for YAML parsing
type GoalYAML struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Condition   ConditionYAML `yaml:"condition"`
	Reward      RewardYAML    `yaml:"reward"`
}

// ConceptYAML for YAML parsing
type ConceptYAML struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Reward      RewardYAML `yaml:"reward"`
}

// Catalog represents the catalog.yaml structure
type Catalog struct {
	Items        []ItemYAML    `yaml:"items"`
	Zones        []ZoneYAML    `yaml:"zones"`
	Tasks        []GoalYAML    `yaml:"tasks"`
	Achievements []GoalYAML    `yaml:"achievements"`
	Treasures    []GoalYAML    `yaml:"treasures"`
	Concepts     []ConceptYAML `yaml:"concepts"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	return &c, nil
}

// Definitions converts the catalog into progression definitions, checking
// every cross reference (reward items, zone members, realms).
func (c *Catalog) Definitions() (progression.Definitions, error) {
	var defs progression.Definitions

	items := make([]progression.ItemDef, 0, len(c.Items))
	for _, it := range c.Items {
		d := progression.ItemDef{
			ID:          it.ID,
			Name:        it.Name,
			Category:    progression.Category(it.Category),
			Rarity:      progression.Rarity(it.Rarity),
			MaxQuantity: it.MaxQuantity,
		}
		if !validCategory(d.Category) {
			return defs, fmt.Errorf("item %q: unknown category %q", it.ID, it.Category)
		}
		if it.Rarity != "" && !d.Rarity.Valid() {
			return defs, fmt.Errorf("item %q: unknown rarity %q", it.ID, it.Rarity)
		}
		if it.Drop {
			if !d.Rarity.Valid() {
				return defs, fmt.Errorf("item %q: drop items need a rarity", it.ID)
			}
			defs.DropPool = append(defs.DropPool, it.ID)
		}
		items = append(items, d)
	}
	catalog, err := progression.NewItemCatalog(items)
	if err != nil {
		return defs, err
	}
	defs.Items = catalog

	zoneIDs := make([]string, 0, len(c.Zones))
	for _, z := range c.Zones {
		realm := progression.RealmMortal
		if z.MinRealm != "" {
			if realm, err = progression.ParseRealm(z.MinRealm); err != nil {
				return defs, fmt.Errorf("zone %q: %w", z.ID, err)
			}
		}
		defs.Zones = append(defs.Zones, progression.ZoneDef{ID: z.ID, Name: z.Name, MinRealm: realm})
		zoneIDs = append(zoneIDs, z.ID)
	}
	known := make(map[string]bool, len(zoneIDs))
	for _, id := range zoneIDs {
		known[id] = true
	}

	convert := func(kind string, in []GoalYAML, treasure bool) ([]progression.GoalDef, error) {
		out := make([]progression.GoalDef, 0, len(in))
		for _, g := range in {
			reward, err := c.reward(catalog, g.Reward)
			if err != nil {
				return nil, fmt.Errorf("%s %q: %w", kind, g.ID, err)
			}
			var cond progression.Condition = progression.Discovery{}
			if !treasure {
				if cond, err = condition(g.Condition, zoneIDs, known); err != nil {
					return nil, fmt.Errorf("%s %q: %w", kind, g.ID, err)
				}
			}
			out = append(out, progression.GoalDef{
				ID:          g.ID,
				Name:        g.Name,
				Description: g.Description,
				Condition:   cond,
				Reward:      reward,
			})
		}
		return out, nil
	}

	if defs.Tasks, err = convert("task", c.Tasks, false); err != nil {
		return defs, err
	}
	if defs.Achievements, err = convert("achievement", c.Achievements, false); err != nil {
		return defs, err
	}
	if defs.Treasures, err = convert("treasure", c.Treasures, true); err != nil {
		return defs, err
	}

	for _, cc := range c.Concepts {
		reward, err := c.reward(catalog, cc.Reward)
		if err != nil {
			return defs, fmt.Errorf("concept %q: %w", cc.ID, err)
		}
		defs.Concepts = append(defs.Concepts, progression.ConceptDef{
			ID:          cc.ID,
			Name:        cc.Name,
			Description: cc.Description,
			Reward:      reward,
		})
	}
	return defs, nil
}

// ConceptIDs returns the concept ids in catalog order.
func (c *Catalog) ConceptIDs() []string {
	out := make([]string, len(c.Concepts))
	for i, cc := range c.Concepts {
		out[i] = cc.ID
	}
	return out
}

func (c *Catalog) reward(items *progression.ItemCatalog, r RewardYAML) (progression.RewardSpec, error) {
	spec := progression.RewardSpec{Exp: r.Exp}
	for _, g := range r.Items {
		if _, ok := items.Get(g.ID); !ok {
			return spec, fmt.Errorf("reward: %w: %s", progression.ErrUnknownItem, g.ID)
		}
		qty := g.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return spec, fmt.Errorf("reward %s: %w", g.ID, progression.ErrInvalidQuantity)
		}
		spec.Items = append(spec.Items, progression.ItemGrant{ItemID: g.ID, Quantity: qty})
	}
	return spec, nil
}

func condition(c ConditionYAML, zones []string, known map[string]bool) (progression.Condition, error) {
	switch c.Kind {
	case "count_threshold":
		return progression.CountThreshold{Event: progression.EventType(c.Event), Target: c.Target}, nil
	case "combo_threshold":
		return progression.ComboThreshold{Target: c.Target}, nil
	case "realm_reached":
		r, err := progression.ParseRealm(c.Realm)
		if err != nil {
			return nil, err
		}
		return progression.RealmReached{Realm: r}, nil
	case "collect_count":
		return progression.CollectCount{Target: c.Target}, nil
	case "accuracy_threshold":
		return progression.AccuracyThreshold{MinSample: c.MinSample, Percent: c.Percent}, nil
	case "set_completeness":
		members := c.Members
		if len(members) == 0 {
			members = append([]string(nil), zones...)
		}
		for _, m := range members {
			if !known[m] {
				return nil, fmt.Errorf("set_completeness: %w: %s", progression.ErrUnknownZone, m)
			}
		}
		return progression.SetCompleteness{Members: members}, nil
	case "":
		return nil, fmt.Errorf("missing condition kind")
	default:
		return nil, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

func validCategory(c progression.Category) bool {
	switch c {
	case progression.CategoryConsumable, progression.CategoryMaterial, progression.CategoryTreasure,
		progression.CategoryWeapon, progression.CategoryArmor, progression.CategoryAccessory:
		return true
	}
	return false
}
