package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string             `yaml:"discord_token"`
	DatabasePath  string             `yaml:"database_path"`
	RulePreset    string             `yaml:"rule_preset"`
	Mode          string             `yaml:"mode"`
	Health        HealthConfig       `yaml:"health"`
	Logging       LoggingConfig      `yaml:"logging"`
	Tracker       TrackerConfig      `yaml:"tracker"`
	FreshAccounts FreshAccountConfig `yaml:"fresh_accounts"`
	AntiRaid      AntiRaidConfig     `yaml:"antiraid"`
	BanWatch      BanWatchConfig     `yaml:"banwatch"`
	Guard         GuardConfig        `yaml:"guard"`
	Announce      AnnounceConfig     `yaml:"announce"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LoggingConfig struct {
	Level               string        `yaml:"level"`
	RateLimitBurst      int           `yaml:"rate_limit_burst"`
	RateLimitIntervalMs int           `yaml:"rate_limit_interval_ms"`
	MirrorChannelID     string        `yaml:"mirror_channel_id"`
	File                LogFileConfig `yaml:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type TrackerConfig struct {
	RetentionMinutes  int `yaml:"retention_minutes"`
	CleanupMinutes    int `yaml:"cleanup_minutes"`
	BanningTTLMinutes int `yaml:"banning_ttl_minutes"`
}

type FreshAccountConfig struct {
	Enabled          bool `yaml:"enabled"`
	ThresholdMinutes int  `yaml:"threshold_minutes"`
	DebounceMinutes  int  `yaml:"debounce_minutes"`
	EmbedColor       int  `yaml:"embed_color"`
}

type AntiRaidConfig struct {
	JoinsPerMinute  int `yaml:"joins_per_minute"`
	WindowSeconds   int `yaml:"window_seconds"`
	SlowmodeSeconds int `yaml:"slowmode_seconds"`
	AutoLiftMinutes int `yaml:"auto_lift_minutes"`
}

type BanWatchConfig struct {
	Enabled       bool `yaml:"enabled"`
	BansPerMinute int  `yaml:"bans_per_minute"`
	WindowSeconds int  `yaml:"window_seconds"`
}

type GuardConfig struct {
	Enabled              bool    `yaml:"enabled"`
	FloodPerMinute       int     `yaml:"flood_per_minute"`
	FloodBurst           int     `yaml:"flood_burst"`
	StrikeDecayPerMinute float64 `yaml:"strike_decay_per_minute"`
	StrikeTTLMinutes     int     `yaml:"strike_ttl_minutes"`
	EscalateStrikes      float64 `yaml:"escalate_strikes"`
}

type AnnounceConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/gatewarden.db",
		RulePreset:   "medium",
		Mode:         "normal",
		Health:       HealthConfig{Enabled: false, Addr: ":8080"},
		Logging: LoggingConfig{
			Level:               "info",
			RateLimitBurst:      30,
			RateLimitIntervalMs: 1000,
			File: LogFileConfig{
				Enabled:    false,
				Path:       "/data/gatewarden.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 14,
				Compress:   true,
			},
		},
		Tracker: TrackerConfig{
			RetentionMinutes:  30,
			CleanupMinutes:    10,
			BanningTTLMinutes: 5,
		},
		FreshAccounts: FreshAccountConfig{
			Enabled:          true,
			ThresholdMinutes: 30,
			DebounceMinutes:  2,
			EmbedColor:       0xEF4444,
		},
		AntiRaid: AntiRaidConfig{
			JoinsPerMinute:  10,
			WindowSeconds:   60,
			SlowmodeSeconds: 30,
			AutoLiftMinutes: 0,
		},
		BanWatch: BanWatchConfig{
			Enabled:       true,
			BansPerMinute: 5,
			WindowSeconds: 60,
		},
		Guard: GuardConfig{
			Enabled:              true,
			FloodPerMinute:       4,
			FloodBurst:           2,
			StrikeDecayPerMinute: 0.5,
			StrikeTTLMinutes:     60,
			EscalateStrikes:      3,
		},
		Announce: AnnounceConfig{PerMinute: 6, Burst: 2},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	cfg.Mode = normalizeMode(cfg.Mode)
	cfg.RulePreset = normalizePreset(cfg.RulePreset)
	applyPreset(&cfg)
	clamp(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.RulePreset = envString("RULE_PRESET", cfg.RulePreset)
	cfg.Mode = envString("MODE", cfg.Mode)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Logging.Level = envString("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.RateLimitBurst = envInt("LOG_RATE_BURST", cfg.Logging.RateLimitBurst)
	cfg.Logging.RateLimitIntervalMs = envInt("LOG_RATE_INTERVAL_MS", cfg.Logging.RateLimitIntervalMs)
	cfg.Logging.MirrorChannelID = envString("LOG_MIRROR_CHANNEL", cfg.Logging.MirrorChannelID)
	cfg.Logging.File.Enabled = envBool("LOG_FILE_ENABLED", cfg.Logging.File.Enabled)
	cfg.Logging.File.Path = envString("LOG_FILE_PATH", cfg.Logging.File.Path)
	cfg.Tracker.RetentionMinutes = envInt("TRACKER_RETENTION_MINUTES", cfg.Tracker.RetentionMinutes)
	cfg.Tracker.CleanupMinutes = envInt("TRACKER_CLEANUP_MINUTES", cfg.Tracker.CleanupMinutes)
	cfg.Tracker.BanningTTLMinutes = envInt("BANNING_TTL_MINUTES", cfg.Tracker.BanningTTLMinutes)
	cfg.FreshAccounts.Enabled = envBool("FRESH_ACCOUNTS_ENABLED", cfg.FreshAccounts.Enabled)
	cfg.FreshAccounts.ThresholdMinutes = envInt("FRESH_ACCOUNT_THRESHOLD_MINUTES", cfg.FreshAccounts.ThresholdMinutes)
	cfg.FreshAccounts.DebounceMinutes = envInt("FRESH_ACCOUNT_DEBOUNCE_MINUTES", cfg.FreshAccounts.DebounceMinutes)
	cfg.AntiRaid.JoinsPerMinute = envInt("RAID_JOINS_PER_MINUTE", cfg.AntiRaid.JoinsPerMinute)
	cfg.AntiRaid.WindowSeconds = envInt("RAID_WINDOW_SECONDS", cfg.AntiRaid.WindowSeconds)
	cfg.AntiRaid.SlowmodeSeconds = envInt("RAID_SLOWMODE_SECONDS", cfg.AntiRaid.SlowmodeSeconds)
	cfg.AntiRaid.AutoLiftMinutes = envInt("RAID_AUTO_LIFT_MINUTES", cfg.AntiRaid.AutoLiftMinutes)
	cfg.BanWatch.Enabled = envBool("BANWATCH_ENABLED", cfg.BanWatch.Enabled)
	cfg.BanWatch.BansPerMinute = envInt("BANWATCH_BANS_PER_MINUTE", cfg.BanWatch.BansPerMinute)
	cfg.BanWatch.WindowSeconds = envInt("BANWATCH_WINDOW_SECONDS", cfg.BanWatch.WindowSeconds)
	cfg.Guard.Enabled = envBool("GUARD_ENABLED", cfg.Guard.Enabled)
	cfg.Guard.FloodPerMinute = envInt("GUARD_FLOOD_PER_MINUTE", cfg.Guard.FloodPerMinute)
	cfg.Guard.FloodBurst = envInt("GUARD_FLOOD_BURST", cfg.Guard.FloodBurst)
	cfg.Announce.PerMinute = envInt("ANNOUNCE_PER_MINUTE", cfg.Announce.PerMinute)
	cfg.Announce.Burst = envInt("ANNOUNCE_BURST", cfg.Announce.Burst)
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizeMode(value string) string {
	switch strings.ToLower(value) {
	case "audit":
		return "audit"
	default:
		return "normal"
	}
}

func normalizePreset(value string) string {
	switch strings.ToLower(value) {
	case "low", "medium", "high":
		return strings.ToLower(value)
	default:
		return "medium"
	}
}

// applyPreset tunes detection thresholds; explicitly configured enable flags
// and channel/announce settings are preserved.
func applyPreset(cfg *Config) {
	switch cfg.RulePreset {
	case "low":
		cfg.AntiRaid.JoinsPerMinute = 15
		cfg.FreshAccounts.ThresholdMinutes = 15
		cfg.BanWatch.BansPerMinute = 8
		cfg.Guard.FloodPerMinute = 6
	case "high":
		cfg.AntiRaid.JoinsPerMinute = 6
		cfg.FreshAccounts.ThresholdMinutes = 60
		cfg.BanWatch.BansPerMinute = 3
		cfg.Guard.FloodPerMinute = 2
	}
}

func clamp(cfg *Config) {
	if cfg.AntiRaid.JoinsPerMinute < 1 {
		cfg.AntiRaid.JoinsPerMinute = 1
	}
	if cfg.AntiRaid.WindowSeconds < 1 {
		cfg.AntiRaid.WindowSeconds = 1
	}
	if cfg.AntiRaid.SlowmodeSeconds < 0 {
		cfg.AntiRaid.SlowmodeSeconds = 0
	}
	if cfg.Tracker.RetentionMinutes < 1 {
		cfg.Tracker.RetentionMinutes = 1
	}
	if cfg.Tracker.CleanupMinutes < 1 {
		cfg.Tracker.CleanupMinutes = 1
	}
	if cfg.Tracker.BanningTTLMinutes < 1 {
		cfg.Tracker.BanningTTLMinutes = 1
	}
	if cfg.FreshAccounts.DebounceMinutes < 1 {
		cfg.FreshAccounts.DebounceMinutes = 1
	}
	if cfg.Announce.PerMinute < 1 {
		cfg.Announce.PerMinute = 1
	}
	if cfg.Announce.Burst < 1 {
		cfg.Announce.Burst = 1
	}
}
