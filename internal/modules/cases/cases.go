// Package cases records moderation outcomes as numbered persistent cases
// and forwards notable ones to the guild's mod-log channel.
package cases

import (
	"context"
	"time"

	"gatewarden/internal/logging"
	"gatewarden/internal/metrics"
	"gatewarden/internal/storage"

	"go.uber.org/zap"
)

const (
	SeverityInfo = "info"
	SeverityWarn = "warn"
	SeverityCrit = "crit"
)

// Well-known case actions.
const (
	ActionRaidLockdown  = "raid_lockdown"
	ActionRaidLift      = "raid_lift"
	ActionGuardDelete   = "guard_delete"
	ActionGuardEscalate = "guard_escalate"
	ActionBan           = "ban"
	ActionExternalBan   = "external_ban"
	ActionBanWave       = "ban_wave"
)

type Case struct {
	GuildID  string
	UserID   string
	ActorID  string
	Action   string
	Reason   string
	Severity string
}

type Recorder struct {
	store  *storage.Store
	log    *logging.Logger
	notify func(context.Context, storage.Case)
}

func NewRecorder(store *storage.Store, log *logging.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// SetNotifier installs the hook invoked for warn and crit cases after they
// are persisted.
func (r *Recorder) SetNotifier(notify func(context.Context, storage.Case)) {
	r.notify = notify
}

// Record persists the case and returns its id. Callers on event-dispatch
// paths ignore the error; command handlers surface it.
func (r *Recorder) Record(ctx context.Context, c Case) (int64, error) {
	if c.Severity == "" {
		c.Severity = SeverityInfo
	}
	row := storage.Case{
		GuildID:   c.GuildID,
		UserID:    c.UserID,
		ActorID:   c.ActorID,
		Action:    c.Action,
		Reason:    c.Reason,
		Severity:  c.Severity,
		CreatedAt: time.Now(),
	}

	if r.store != nil {
		id, err := r.store.InsertCase(ctx, row)
		if err != nil {
			r.log.Error("case.store_failed",
				zap.String("guild_id", c.GuildID),
				zap.String("action", c.Action),
				zap.Error(err))
			return 0, err
		}
		row.ID = id
	}

	metrics.CasesRecorded.Inc()
	r.log.Info("case.recorded",
		zap.Int64("case_id", row.ID),
		zap.String("guild_id", c.GuildID),
		zap.String("user_id", c.UserID),
		zap.String("action", c.Action),
		zap.String("severity", c.Severity))

	if r.notify != nil && c.Severity != SeverityInfo {
		r.notify(ctx, row)
	}
	return row.ID, nil
}

func (r *Recorder) Recent(ctx context.Context, guildID string, limit int) ([]storage.Case, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}
	return r.store.RecentCases(ctx, guildID, limit)
}

func (r *Recorder) ForUser(ctx context.Context, guildID, userID string, limit int) ([]storage.Case, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}
	return r.store.UserCases(ctx, guildID, userID, limit)
}

// Stats aggregates case counts per action over the trailing window.
func (r *Recorder) Stats(ctx context.Context, guildID string, window time.Duration) ([]storage.ActionCount, error) {
	return r.store.CaseStats(ctx, guildID, time.Now().Add(-window))
}
