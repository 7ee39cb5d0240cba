package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Session  SessionConfig  `json:"session"`
	Emotions EmotionsConfig `json:"emotions"`
	Mood     MoodConfig     `json:"mood"`
	Vault    VaultConfig    `json:"vault"`
	Lexicon  []LexiconRule  `json:"lexicon"`
}

// SessionConfig controls session lifecycle behavior.
type SessionConfig struct {
	// Mode is "scratch" (RAM only, discarded at exit) or "persistent".
	Mode        string `json:"mode"`
	JournalPath string `json:"journal_path,omitempty"`
}

// EmotionsConfig defines the closed emotion label set.
// Label order is the priority order used for dominant-emotion tie-breaking.
type EmotionsConfig struct {
	Labels             []LabelConfig `json:"labels"`
	Baseline           float64       `json:"baseline"`
	DefaultHalfLifeSec float64       `json:"default_half_life_sec"`
}

// LabelConfig configures a single emotion label.
type LabelConfig struct {
	Name        string  `json:"name"`
	HalfLifeSec float64 `json:"half_life_sec,omitempty"` // 0 means use the default
}

// MoodConfig controls the aggregate mood tracker.
type MoodConfig struct {
	HalfLifeSec float64            `json:"half_life_sec"`
	Gain        float64            `json:"gain"`
	Positive    []string           `json:"positive"`
	Negative    []string           `json:"negative"`
	Bands       map[string]float64 `json:"bands"` // band name -> minimum score
}

// VaultConfig selects the storage sink and key source for the encrypted vault.
type VaultConfig struct {
	Sink     string         `json:"sink"` // "memory", "file", "postgres", "redis"
	Dir      string         `json:"dir,omitempty"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Key      KeyConfig      `json:"key"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL    string `json:"url"`
	Prefix string `json:"prefix,omitempty"`
	TTLSec int    `json:"ttl_sec,omitempty"`
}

// KeyConfig describes where the vault key comes from. The codec only ever
// consumes the resulting fixed-length key bytes.
type KeyConfig struct {
	// Source is "env" (hex-encoded key in an environment variable) or
	// "passphrase" (Argon2id derivation from passphrase + salt).
	Source     string `json:"source"`
	Env        string `json:"env,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	SaltHex    string `json:"salt_hex,omitempty"`
}

// LexiconRule maps a keyword to an emotional event.
type LexiconRule struct {
	Keyword   string  `json:"keyword"`
	Label     string  `json:"label"`
	Intensity float64 `json:"intensity"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Session.Mode == "" {
		c.Session.Mode = "scratch"
	}
	if c.Emotions.Baseline == 0 {
		c.Emotions.Baseline = 0.5
	}
	if c.Emotions.DefaultHalfLifeSec == 0 {
		c.Emotions.DefaultHalfLifeSec = 300
	}
	if c.Mood.HalfLifeSec == 0 {
		c.Mood.HalfLifeSec = 600
	}
	if c.Mood.Gain == 0 {
		c.Mood.Gain = 0.05
	}
	if c.Vault.Sink == "" {
		c.Vault.Sink = "memory"
	}
	if c.Vault.Key.Source == "" {
		c.Vault.Key.Source = "env"
	}
	if c.Vault.Key.Source == "env" && c.Vault.Key.Env == "" {
		c.Vault.Key.Env = "VIREM_VAULT_KEY"
	}
}

// Validate checks the structural invariants the core relies on.
func (c *Config) Validate() error {
	switch c.Session.Mode {
	case "scratch", "persistent":
	default:
		return fmt.Errorf("unknown session mode %q", c.Session.Mode)
	}

	if len(c.Emotions.Labels) == 0 {
		return fmt.Errorf("emotions.labels must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Emotions.Labels))
	for _, l := range c.Emotions.Labels {
		if l.Name == "" {
			return fmt.Errorf("emotion label with empty name")
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("duplicate emotion label %q", l.Name)
		}
		seen[l.Name] = struct{}{}
		if l.HalfLifeSec < 0 {
			return fmt.Errorf("label %q: half_life_sec must not be negative", l.Name)
		}
	}
	if c.Emotions.Baseline < 0 || c.Emotions.Baseline > 1 {
		return fmt.Errorf("emotions.baseline %v outside [0,1]", c.Emotions.Baseline)
	}
	if c.Emotions.DefaultHalfLifeSec <= 0 {
		return fmt.Errorf("emotions.default_half_life_sec must be positive")
	}

	for _, name := range append(append([]string{}, c.Mood.Positive...), c.Mood.Negative...) {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("mood valence references unknown label %q", name)
		}
	}

	switch c.Vault.Sink {
	case "memory", "file", "postgres", "redis":
	default:
		return fmt.Errorf("unknown vault sink %q", c.Vault.Sink)
	}
	if c.Vault.Sink == "file" && c.Vault.Dir == "" {
		return fmt.Errorf("vault.dir is required for the file sink")
	}
	if c.Vault.Sink == "postgres" && c.Vault.Postgres.DSN == "" {
		return fmt.Errorf("vault.postgres.dsn is required for the postgres sink")
	}
	if c.Vault.Sink == "redis" && c.Vault.Redis.URL == "" {
		return fmt.Errorf("vault.redis.url is required for the redis sink")
	}

	switch c.Vault.Key.Source {
	case "env":
		if c.Vault.Key.Env == "" {
			return fmt.Errorf("vault.key.env is required for the env key source")
		}
	case "passphrase":
		if c.Vault.Key.Passphrase == "" {
			return fmt.Errorf("vault.key.passphrase is required for the passphrase key source")
		}
	default:
		return fmt.Errorf("unknown vault key source %q", c.Vault.Key.Source)
	}

	for _, r := range c.Lexicon {
		if r.Keyword == "" {
			return fmt.Errorf("lexicon rule with empty keyword")
		}
		if _, ok := seen[r.Label]; !ok {
			return fmt.Errorf("lexicon rule %q references unknown label %q", r.Keyword, r.Label)
		}
		if r.Intensity < -1 || r.Intensity > 1 {
			return fmt.Errorf("lexicon rule %q: intensity %v outside [-1,1]", r.Keyword, r.Intensity)
		}
	}
	return nil
}
