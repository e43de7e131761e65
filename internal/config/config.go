package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mathrealm/backend/internal/progression"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Player   PlayerConfig   `yaml:"player"`
	Rewards  RewardsConfig  `yaml:"rewards"`
	Streak   StreakConfig   `yaml:"streak"`
	Concepts ConceptsConfig `yaml:"concepts"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects the server document store. Driver is "sqlite" or
// "postgres"; DSN is a file path for SQLite and a connection string for
// PostgreSQL.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// PlayerConfig is used by the realm CLI.
type PlayerConfig struct {
	// ID of the local player. Empty until "realm new" writes one.
	ID string `yaml:"id"`
	// Key authenticates the player to the remote server.
	Key string `yaml:"key"`
	// RemoteURL enables remote saves. Empty means local only.
	RemoteURL string `yaml:"remote_url"`
	// SaveDir overrides the local save directory.
	SaveDir       string        `yaml:"save_dir"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
}

type RewardsConfig struct {
	BaseExpPerDifficulty      uint64         `yaml:"base_exp_per_difficulty"`
	BaseCurrencyPerDifficulty uint64         `yaml:"base_currency_per_difficulty"`
	ComboStep                 float64        `yaml:"combo_step"`
	MaxComboMultiplier        float64        `yaml:"max_combo_multiplier"` // 0 = uncapped
	CritChance                float64        `yaml:"crit_chance"`
	RealmMultipliers          []float64      `yaml:"realm_multipliers"`
	ComboMilestones           map[int]uint64 `yaml:"combo_milestones"`
	DropBase                  float64        `yaml:"drop_base"`
	DropPerDifficulty         float64        `yaml:"drop_per_difficulty"`
	DropPerCombo              float64        `yaml:"drop_per_combo"`
	DropCap                   float64        `yaml:"drop_cap"`
	RarityWeights             map[string]int `yaml:"rarity_weights"`
}

type StreakConfig struct {
	BaseExp     uint64 `yaml:"base_exp"`
	BonusPerDay uint64 `yaml:"bonus_per_day"`
	BonusCap    uint64 `yaml:"bonus_cap"`
	// Timezone is an IANA name ("Asia/Shanghai") or "Local".
	Timezone string `yaml:"timezone"`
}

type ConceptsConfig struct {
	CorrectDelta   float64 `yaml:"correct_delta"`
	IncorrectDelta float64 `yaml:"incorrect_delta"`
}

type SessionConfig struct {
	SaveInterval time.Duration `yaml:"save_interval"`
	// IdleTimeout evicts server sessions that have not been touched for this
	// long. Zero keeps them until shutdown.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warning, error
	Format     string `yaml:"format"` // text, json
	File       string `yaml:"file"`   // empty = stderr only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type CatalogConfig struct {
	// Path to a catalog YAML file. Empty uses the built-in catalog.
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	rewards := progression.DefaultRewardConfig()
	streak := progression.DefaultStreakRules()
	concepts := progression.DefaultConceptRules()

	weights := make(map[string]int, len(rewards.RarityWeights))
	for r, w := range rewards.RarityWeights {
		weights[string(r)] = w
	}

	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "mathrealm.db",
		},
		Player: PlayerConfig{
			RemoteTimeout: 5 * time.Second,
		},
		Rewards: RewardsConfig{
			BaseExpPerDifficulty:      rewards.BaseExpPerDifficulty,
			BaseCurrencyPerDifficulty: rewards.BaseCurrencyPerDifficulty,
			ComboStep:                 rewards.ComboStep,
			MaxComboMultiplier:        rewards.MaxComboMultiplier,
			CritChance:                rewards.CritChance,
			RealmMultipliers:          rewards.RealmMultipliers,
			ComboMilestones:           rewards.ComboMilestones,
			DropBase:                  rewards.DropBase,
			DropPerDifficulty:         rewards.DropPerDifficulty,
			DropPerCombo:              rewards.DropPerCombo,
			DropCap:                   rewards.DropCap,
			RarityWeights:             weights,
		},
		Streak: StreakConfig{
			BaseExp:     streak.BaseExp,
			BonusPerDay: streak.BonusPerDay,
			BonusCap:    streak.BonusCap,
			Timezone:    "Local",
		},
		Concepts: ConceptsConfig{
			CorrectDelta:   concepts.CorrectDelta,
			IncorrectDelta: concepts.IncorrectDelta,
		},
		Session: SessionConfig{
			SaveInterval: 30 * time.Second,
			IdleTimeout:  30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects values the engine cannot work with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	r := c.Rewards
	if r.CritChance < 0 || r.CritChance > 1 {
		return fmt.Errorf("rewards.crit_chance: %v out of range", r.CritChance)
	}
	if r.MaxComboMultiplier < 0 {
		return fmt.Errorf("rewards.max_combo_multiplier: must not be negative")
	}
	if r.DropCap < 0 || r.DropCap > 1 {
		return fmt.Errorf("rewards.drop_cap: %v out of range", r.DropCap)
	}
	for i := 1; i < len(r.RealmMultipliers); i++ {
		if r.RealmMultipliers[i] < r.RealmMultipliers[i-1] {
			return fmt.Errorf("rewards.realm_multipliers: must not decrease")
		}
	}
	for name := range r.RarityWeights {
		if !progression.Rarity(name).Valid() {
			return fmt.Errorf("rewards.rarity_weights: unknown rarity %q", name)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("streak.timezone: %w", err)
	}
	if c.Session.SaveInterval <= 0 {
		return fmt.Errorf("session.save_interval: must be positive")
	}
	return nil
}

// Location resolves streak.timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Streak.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Streak.Timezone)
}

// Options converts the balance sections into session options.
func (c *Config) Options() (progression.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return progression.Options{}, err
	}
	opts := progression.DefaultOptions()

	r := c.Rewards
	opts.Rewards = progression.RewardConfig{
		BaseExpPerDifficulty:      r.BaseExpPerDifficulty,
		BaseCurrencyPerDifficulty: r.BaseCurrencyPerDifficulty,
		ComboStep:                 r.ComboStep,
		MaxComboMultiplier:        r.MaxComboMultiplier,
		RealmMultipliers:          r.RealmMultipliers,
		CritChance:                r.CritChance,
		ComboMilestones:           r.ComboMilestones,
		DropBase:                  r.DropBase,
		DropPerDifficulty:         r.DropPerDifficulty,
		DropPerCombo:              r.DropPerCombo,
		DropCap:                   r.DropCap,
		RarityWeights:             make(map[progression.Rarity]int, len(r.RarityWeights)),
	}
	for name, w := range r.RarityWeights {
		opts.Rewards.RarityWeights[progression.Rarity(name)] = w
	}

	opts.Streak.BaseExp = c.Streak.BaseExp
	opts.Streak.BonusPerDay = c.Streak.BonusPerDay
	opts.Streak.BonusCap = c.Streak.BonusCap
	opts.Streak.Location = loc

	opts.Concepts = progression.ConceptRules{
		CorrectDelta:   c.Concepts.CorrectDelta,
		IncorrectDelta: c.Concepts.IncorrectDelta,
	}
	return opts, nil
}
