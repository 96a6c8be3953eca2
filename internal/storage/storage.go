package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// GuildSettings holds the per-guild knobs that survive restarts. The live
// pipeline state (join ledger, raid windows) is deliberately in-memory only.
type GuildSettings struct {
	GuildID         string
	ModLogChannelID string
	RaidArmed       bool
	RaidThreshold   int
	GuardEnabled    bool
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildSettings returns the stored settings merged over defaults; guilds
// never written return the defaults with the id filled in.
func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT modlog_channel_id, raid_armed, raid_threshold, guard_enabled
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var armed, guardEnabled int
	err := row.Scan(&result.ModLogChannelID, &armed, &result.RaidThreshold, &guardEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	result.RaidArmed = armed == 1
	result.GuardEnabled = guardEnabled == 1
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, modlog_channel_id, raid_armed, raid_threshold, guard_enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			modlog_channel_id = excluded.modlog_channel_id,
			raid_armed = excluded.raid_armed,
			raid_threshold = excluded.raid_threshold,
			guard_enabled = excluded.guard_enabled
	`,
		settings.GuildID,
		settings.ModLogChannelID,
		boolToInt(settings.RaidArmed),
		settings.RaidThreshold,
		boolToInt(settings.GuardEnabled),
	)
	return err
}

// ListArmedGuilds returns every guild persisted with the raid detector armed,
// for re-arming after a restart.
func (s *Store) ListArmedGuilds(ctx context.Context) ([]GuildSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, modlog_channel_id, raid_armed, raid_threshold, guard_enabled
		FROM guild_settings WHERE raid_armed = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GuildSettings
	for rows.Next() {
		var gs GuildSettings
		var armed, guardEnabled int
		if err := rows.Scan(&gs.GuildID, &gs.ModLogChannelID, &armed, &gs.RaidThreshold, &guardEnabled); err != nil {
			return nil, err
		}
		gs.RaidArmed = armed == 1
		gs.GuardEnabled = guardEnabled == 1
		out = append(out, gs)
	}
	return out, rows.Err()
}

func (s *Store) AddGuardDomain(ctx context.Context, guildID, domain, kind string) error {
	if kind != "allow" && kind != "block" {
		return fmt.Errorf("unknown domain list %q", kind)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guard_domains (guild_id, domain, kind) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, domain) DO UPDATE SET kind = excluded.kind
	`, guildID, strings.ToLower(domain), kind)
	return err
}

func (s *Store) RemoveGuardDomain(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM guard_domains WHERE guild_id = ? AND domain = ?
	`, guildID, strings.ToLower(domain))
	return err
}

// GuardDomains returns the guild's allow and block sets keyed by normalized
// domain.
func (s *Store) GuardDomains(ctx context.Context, guildID string) (allow, block map[string]struct{}, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, kind FROM guard_domains WHERE guild_id = ?`, guildID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	allow = make(map[string]struct{})
	block = make(map[string]struct{})
	for rows.Next() {
		var domain, kind string
		if err := rows.Scan(&domain, &kind); err != nil {
			return nil, nil, err
		}
		if kind == "allow" {
			allow[domain] = struct{}{}
		} else {
			block[domain] = struct{}{}
		}
	}
	return allow, block, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
