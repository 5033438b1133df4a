package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"playcast/pkg/backup"
	"playcast/pkg/settings"
)

func newTestService(t *testing.T) (*backup.BackupService, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := backup.NewFileStorage(dir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return backup.NewBackupService(storage, "test"), dir
}

func TestScheduler_BackupHoldsCurrentSettings(t *testing.T) {
	service, _ := newTestService(t)

	cfg := settings.Default()
	cfg.PIN = "7777"
	cfg.Bitrate = 15000
	store := settings.NewStore(cfg)

	sched := NewScheduler(service, store, time.Hour, 5, zaptest.NewLogger(t).Sugar())
	sched.runBackup(context.Background())

	data, err := service.LatestBackup(context.Background())
	if err != nil {
		t.Fatalf("LatestBackup: %v", err)
	}
	var got settings.Settings
	if err := json.Unmarshal(data.Settings, &got); err != nil {
		t.Fatalf("failed to decode backup settings: %v", err)
	}
	if got.PIN != "7777" || got.Bitrate != 15000 {
		t.Errorf("backup settings = %+v", got)
	}
}

func TestScheduler_PrunesToRetention(t *testing.T) {
	service, dir := newTestService(t)

	for _, name := range []string{
		"backup-20250101-000001.json",
		"backup-20250101-000002.json",
		"backup-20250101-000003.json",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatalf("failed to seed backup: %v", err)
		}
	}

	store := settings.NewStore(settings.Default())
	sched := NewScheduler(service, store, time.Hour, 2, zaptest.NewLogger(t).Sugar())
	sched.runBackup(context.Background())

	names, err := service.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 backups after prune, got %d: %v", len(names), names)
	}
	if names[0] == "backup-20250101-000001.json" {
		t.Error("oldest backup survived prune")
	}
}

func TestScheduler_StartTakesInitialBackup(t *testing.T) {
	service, _ := newTestService(t)
	store := settings.NewStore(settings.Default())
	sched := NewScheduler(service, store, time.Hour, 5, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		names, err := service.ListBackups(context.Background())
		if err == nil && len(names) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no backup created after Start")
}
