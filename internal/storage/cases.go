package storage

import (
	"context"
	"database/sql"
	"time"
)

type Case struct {
	ID        int64
	GuildID   string
	UserID    string
	ActorID   string
	Action    string
	Reason    string
	Severity  string
	CreatedAt time.Time
}

type ActionCount struct {
	Action string
	Count  int
}

func (s *Store) InsertCase(ctx context.Context, c Case) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mod_cases (guild_id, user_id, actor_id, action, reason, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.GuildID, c.UserID, c.ActorID, c.Action, c.Reason, c.Severity, c.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) RecentCases(ctx context.Context, guildID string, limit int) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, actor_id, action, reason, severity, created_at
		FROM mod_cases
		WHERE guild_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	return scanCases(rows)
}

func (s *Store) UserCases(ctx context.Context, guildID, userID string, limit int) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, actor_id, action, reason, severity, created_at
		FROM mod_cases
		WHERE guild_id = ? AND user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, guildID, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanCases(rows)
}

// CaseStats aggregates case counts per action since the given time, most
// frequent first.
func (s *Store) CaseStats(ctx context.Context, guildID string, since time.Time) ([]ActionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*) AS total
		FROM mod_cases
		WHERE guild_id = ? AND created_at >= ?
		GROUP BY action
		ORDER BY total DESC, action
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionCount
	for rows.Next() {
		var ac ActionCount
		if err := rows.Scan(&ac.Action, &ac.Count); err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

func (s *Store) PruneCases(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mod_cases WHERE created_at < ?`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanCases(rows *sql.Rows) ([]Case, error) {
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var c Case
		var created int64
		if err := rows.Scan(&c.ID, &c.GuildID, &c.UserID, &c.ActorID, &c.Action, &c.Reason, &c.Severity, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0)
		cases = append(cases, c)
	}
	return cases, rows.Err()
}
