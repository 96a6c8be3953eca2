package cases

import (
	"context"
	"testing"

	"gatewarden/internal/logging"
	"gatewarden/internal/storage"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRecorder(store, logging.NewNop())
}

func TestRecordPersistsAndNumbers(t *testing.T) {
	recorder := newTestRecorder(t)

	first, err := recorder.Record(context.Background(), Case{GuildID: "g1", UserID: "u1", Action: ActionGuardDelete})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := recorder.Record(context.Background(), Case{GuildID: "g1", UserID: "u2", Action: ActionBan, Severity: SeverityCrit})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if second <= first {
		t.Fatalf("expected increasing case ids, got %d then %d", first, second)
	}

	recent, err := recorder.Recent(context.Background(), "g1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(recent))
	}
	if recent[0].Action != ActionBan {
		t.Fatalf("expected newest case first, got %q", recent[0].Action)
	}
	if recent[1].Severity != SeverityInfo {
		t.Fatalf("expected default severity info, got %q", recent[1].Severity)
	}
}

func TestNotifierSkipsInfoCases(t *testing.T) {
	recorder := newTestRecorder(t)

	var notified []storage.Case
	recorder.SetNotifier(func(_ context.Context, c storage.Case) {
		notified = append(notified, c)
	})

	_, _ = recorder.Record(context.Background(), Case{GuildID: "g1", Action: ActionGuardDelete})
	_, _ = recorder.Record(context.Background(), Case{GuildID: "g1", Action: ActionRaidLockdown, Severity: SeverityWarn})

	if len(notified) != 1 || notified[0].Action != ActionRaidLockdown {
		t.Fatalf("expected only the warn case notified, got %+v", notified)
	}
}
