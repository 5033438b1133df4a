package backup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFileService(t *testing.T) (*BackupService, *FileStorage, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	return NewBackupService(storage, "1.0.0"), storage, dir
}

func seedRaw(t *testing.T, storage *FileStorage, name, content string) {
	t.Helper()
	if err := storage.Save(context.Background(), name, strings.NewReader(content)); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func TestCreateBackup_WritesTimestampedFile(t *testing.T) {
	service, _, dir := newFileService(t)

	name, err := service.CreateBackup(context.Background(), &BackupData{
		Settings: json.RawMessage(`{"pin":"1234","bitrate":20000}`),
	})
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	if !strings.HasPrefix(name, "backup-") || !strings.HasSuffix(name, ".json") {
		t.Errorf("backup name = %q, want backup-*.json", name)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
}

func TestCreateRestore_RoundTrip(t *testing.T) {
	service, _, _ := newFileService(t)

	name, err := service.CreateBackup(context.Background(), &BackupData{
		Settings: json.RawMessage(`{"pin":"1234","bitrate":8000}`),
	})
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	restored, err := service.RestoreBackup(context.Background(), name)
	if err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	if restored.Version != "1.0.0" {
		t.Errorf("Version = %q, want %q", restored.Version, "1.0.0")
	}

	var doc struct {
		PIN     string `json:"pin"`
		Bitrate int    `json:"bitrate"`
	}
	if err := json.Unmarshal(restored.Settings, &doc); err != nil {
		t.Fatalf("decode restored settings: %v", err)
	}
	if doc.PIN != "1234" || doc.Bitrate != 8000 {
		t.Errorf("restored settings = %+v, want pin 1234 bitrate 8000", doc)
	}
}

func TestLatestBackup_PicksNewest(t *testing.T) {
	service, storage, _ := newFileService(t)

	// Seeded directly so the names carry distinct timestamps.
	seedRaw(t, storage, "backup-20240101-000000.json", `{"version":"1.0.0","settings":{"bitrate":1000}}`)
	seedRaw(t, storage, "backup-20240301-000000.json", `{"version":"1.0.0","settings":{"bitrate":3000}}`)
	seedRaw(t, storage, "backup-20240201-000000.json", `{"version":"1.0.0","settings":{"bitrate":2000}}`)

	latest, err := service.LatestBackup(context.Background())
	if err != nil {
		t.Fatalf("LatestBackup: %v", err)
	}

	var doc struct {
		Bitrate int `json:"bitrate"`
	}
	if err := json.Unmarshal(latest.Settings, &doc); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if doc.Bitrate != 3000 {
		t.Errorf("latest bitrate = %d, want 3000", doc.Bitrate)
	}
}

func TestLatestBackup_EmptyStore(t *testing.T) {
	service, _, _ := newFileService(t)

	_, err := service.LatestBackup(context.Background())
	if !errors.Is(err, ErrNoBackups) {
		t.Errorf("LatestBackup() error = %v, want ErrNoBackups", err)
	}
}

func TestPrune_KeepsNewest(t *testing.T) {
	service, storage, _ := newFileService(t)

	for _, name := range []string{
		"backup-20240101-000000.json",
		"backup-20240102-000000.json",
		"backup-20240103-000000.json",
		"backup-20240104-000000.json",
	} {
		seedRaw(t, storage, name, "{}")
	}

	if err := service.Prune(context.Background(), 2); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	remaining, err := service.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	want := []string{"backup-20240103-000000.json", "backup-20240104-000000.json"}
	if len(remaining) != 2 || remaining[0] != want[0] || remaining[1] != want[1] {
		t.Errorf("after prune = %v, want %v", remaining, want)
	}
}

func TestPrune_UnderRetentionIsNoop(t *testing.T) {
	service, storage, _ := newFileService(t)
	seedRaw(t, storage, "backup-20240101-000000.json", "{}")

	if err := service.Prune(context.Background(), 5); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	remaining, err := service.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("after prune = %v, want the single seeded backup", remaining)
	}
}

func TestDeleteBackup_RemovesFile(t *testing.T) {
	service, _, dir := newFileService(t)

	name, err := service.CreateBackup(context.Background(), &BackupData{Settings: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if err := service.DeleteBackup(context.Background(), name); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
		t.Errorf("backup still present after delete, stat err = %v", err)
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	_, storage, dir := newFileService(t)

	seedRaw(t, storage, "probe.txt", "probe data")

	reader, err := storage.Load(context.Background(), "probe.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read loaded backup: %v", err)
	}
	if string(content) != "probe data" {
		t.Errorf("loaded content = %q, want %q", content, "probe data")
	}

	// The rename-into-place write must not leave temp files behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after save, want 1", len(entries))
	}
}

func TestFileStorage_ListFiltersPrefixAndDirs(t *testing.T) {
	_, storage, dir := newFileService(t)

	seedRaw(t, storage, "backup-a.json", "{}")
	seedRaw(t, storage, "notes.txt", "unrelated")
	if err := os.Mkdir(filepath.Join(dir, "backup-subdir"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	names, err := storage.List(context.Background(), "backup-")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "backup-a.json" {
		t.Errorf("List() = %v, want [backup-a.json]", names)
	}
}
