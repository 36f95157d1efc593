// Package config loads the deadlog YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Scan     ScanConfig     `yaml:"scan"`
	Guilds   []Guild        `yaml:"guilds"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScanConfig holds scanning settings.
type ScanConfig struct {
	// Interval is how often the scan loop visits each server.
	Interval time.Duration `yaml:"interval"`

	// PatternFile optionally points at a YAML pattern file whose rules run
	// ahead of the builtin rule set.
	PatternFile string `yaml:"pattern_file"`

	// PluginFile optionally points at a wasm classifier plugin.
	PluginFile string `yaml:"plugin_file"`
}

// Guild groups the game servers managed by one community.
type Guild struct {
	GuildID string   `yaml:"guild_id"`
	Name    string   `yaml:"name"`
	Servers []Server `yaml:"servers"`
}

// Server is one tracked game server.
type Server struct {
	ServerID string `yaml:"server_id"`
	Name     string `yaml:"name"`

	// LogPath is the server's log file, or a directory holding the logs, in
	// which case the newest Deadside*.log is used.
	LogPath string `yaml:"log_path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Set defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "deadlog.db"
	}
	if cfg.Scan.Interval == 0 {
		cfg.Scan.Interval = 30 * time.Second
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	seenGuilds := make(map[string]struct{}, len(c.Guilds))
	for _, g := range c.Guilds {
		if g.GuildID == "" {
			return fmt.Errorf("guild %q: guild_id is required", g.Name)
		}
		if _, dup := seenGuilds[g.GuildID]; dup {
			return fmt.Errorf("duplicate guild_id %q", g.GuildID)
		}
		seenGuilds[g.GuildID] = struct{}{}

		seenServers := make(map[string]struct{}, len(g.Servers))
		for _, s := range g.Servers {
			if s.ServerID == "" {
				return fmt.Errorf("guild %q: server %q: server_id is required", g.GuildID, s.Name)
			}
			if _, dup := seenServers[s.ServerID]; dup {
				return fmt.Errorf("guild %q: duplicate server_id %q", g.GuildID, s.ServerID)
			}
			seenServers[s.ServerID] = struct{}{}
			if s.LogPath == "" {
				return fmt.Errorf("guild %q: server %q: log_path is required", g.GuildID, s.ServerID)
			}
		}
	}
	return nil
}

// Guild returns the guild with the given ID, or nil.
func (c *Config) Guild(guildID string) *Guild {
	for i := range c.Guilds {
		if c.Guilds[i].GuildID == guildID {
			return &c.Guilds[i]
		}
	}
	return nil
}

// FindServer returns the server with the given guild and server IDs, or nil.
func (c *Config) FindServer(guildID, serverID string) *Server {
	g := c.Guild(guildID)
	if g == nil {
		return nil
	}
	for i := range g.Servers {
		if g.Servers[i].ServerID == serverID {
			return &g.Servers[i]
		}
	}
	return nil
}
