// Package metrics exposes Prometheus instrumentation for the moderation
// pipeline, served on the health endpoint at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JoinsTracked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_joins_tracked_total",
		Help: "Member joins recorded by the join ledger.",
	})

	FreshAccountAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_fresh_account_alerts_total",
		Help: "Alerts sent for accounts younger than the freshness threshold.",
	})

	RaidLockdowns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_raid_lockdowns_total",
		Help: "Lockdowns triggered by join-rate detection.",
	})

	RaidLifts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_raid_lifts_total",
		Help: "Lockdowns lifted, manually or by auto-lift.",
	})

	LockdownsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatewarden_lockdowns_active",
		Help: "Guilds currently in lockdown.",
	})

	GuardDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_guard_deletions_total",
		Help: "Messages removed by the fresh-joiner guard.",
	})

	BanWaveWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_ban_wave_warnings_total",
		Help: "Mass-ban velocity warnings raised by the ban watcher.",
	})

	CasesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_cases_recorded_total",
		Help: "Moderation cases written to storage.",
	})

	LogLinesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatewarden_log_lines_suppressed_total",
		Help: "Log calls dropped by the logger's rate limiter.",
	})
)
