package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Game   GameConfig   `yaml:"game"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
	StaticDir  string `yaml:"static_dir"`
}

// GameConfig holds race tuning knobs
type GameConfig struct {
	MinPlayers        int           // minimum players required to start a race
	MaxPlayers        int           // room capacity for regular joins
	CountdownLead     time.Duration // delay between start action and race start
	ClickInterval     time.Duration // minimum accepted interval between clicks per player
	BroadcastInterval time.Duration // progress push cadence while racing
	RaceTimeout       time.Duration // hard upper bound on race duration
	FirstFinishGrace  time.Duration // time remaining players get once someone wins
	RoomTTL           time.Duration // rooms older than this are purged regardless of phase
	SweepInterval     time.Duration // how often the TTL sweep runs
}

// UnmarshalYAML decodes the game section, accepting durations in Go notation
// ("50ms", "2h"). yaml.v3 has no native time.Duration support.
func (g *GameConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MinPlayers        int    `yaml:"min_players"`
		MaxPlayers        int    `yaml:"max_players"`
		CountdownLead     string `yaml:"countdown_lead"`
		ClickInterval     string `yaml:"click_interval"`
		BroadcastInterval string `yaml:"broadcast_interval"`
		RaceTimeout       string `yaml:"race_timeout"`
		FirstFinishGrace  string `yaml:"first_finish_grace"`
		RoomTTL           string `yaml:"room_ttl"`
		SweepInterval     string `yaml:"sweep_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	g.MinPlayers = raw.MinPlayers
	g.MaxPlayers = raw.MaxPlayers

	fields := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"countdown_lead", raw.CountdownLead, &g.CountdownLead},
		{"click_interval", raw.ClickInterval, &g.ClickInterval},
		{"broadcast_interval", raw.BroadcastInterval, &g.BroadcastInterval},
		{"race_timeout", raw.RaceTimeout, &g.RaceTimeout},
		{"first_finish_grace", raw.FirstFinishGrace, &g.FirstFinishGrace},
		{"room_ttl", raw.RoomTTL, &g.RoomTTL},
		{"sweep_interval", raw.SweepInterval, &g.SweepInterval},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	// Note: StaticDir intentionally has no default - empty means don't serve static files

	if cfg.Game.MinPlayers == 0 {
		cfg.Game.MinPlayers = 1
	}
	if cfg.Game.MaxPlayers == 0 {
		cfg.Game.MaxPlayers = 16
	}
	if cfg.Game.CountdownLead == 0 {
		cfg.Game.CountdownLead = 3500 * time.Millisecond
	}
	if cfg.Game.ClickInterval == 0 {
		cfg.Game.ClickInterval = 50 * time.Millisecond
	}
	if cfg.Game.BroadcastInterval == 0 {
		cfg.Game.BroadcastInterval = 50 * time.Millisecond
	}
	if cfg.Game.RaceTimeout == 0 {
		cfg.Game.RaceTimeout = 5 * time.Minute
	}
	if cfg.Game.FirstFinishGrace == 0 {
		cfg.Game.FirstFinishGrace = 30 * time.Second
	}
	if cfg.Game.RoomTTL == 0 {
		cfg.Game.RoomTTL = 2 * time.Hour
	}
	if cfg.Game.SweepInterval == 0 {
		cfg.Game.SweepInterval = 10 * time.Minute
	}
}
