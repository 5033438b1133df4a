// Package backup snapshots the settings document into named JSON blobs
// behind a pluggable Storage. Names embed the creation time, so lexical
// order doubles as chronological order everywhere a listing is read.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// ErrNoBackups reports an empty backup store.
var ErrNoBackups = errors.New("no backups available")

// BackupData is the on-disk shape of one snapshot. Settings stays raw
// so the store never has to chase the settings schema.
type BackupData struct {
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Settings  json.RawMessage        `json:"settings,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Storage is where snapshots live. Implementations exist for the local
// filesystem and, behind a build tag, S3.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// BackupService creates, restores and prunes snapshots on a Storage.
type BackupService struct {
	storage Storage
	version string
}

func NewBackupService(storage Storage, version string) *BackupService {
	return &BackupService{
		storage: storage,
		version: version,
	}
}

// CreateBackup stamps data with the service version and current time,
// then writes it under a timestamped name. The name is returned so
// callers can log or immediately restore it.
func (s *BackupService) CreateBackup(ctx context.Context, data *BackupData) (string, error) {
	data.Version = s.version
	data.Timestamp = time.Now()

	blob, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal backup: %w", err)
	}

	name := fmt.Sprintf("backup-%s.json", data.Timestamp.Format("20060102-150405"))
	if err := s.storage.Save(ctx, name, bytes.NewReader(blob)); err != nil {
		return "", fmt.Errorf("save backup %q: %w", name, err)
	}
	return name, nil
}

// RestoreBackup reads one named snapshot back.
func (s *BackupService) RestoreBackup(ctx context.Context, name string) (*BackupData, error) {
	reader, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load backup %q: %w", name, err)
	}
	defer reader.Close()

	var data BackupData
	if err := json.NewDecoder(reader).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode backup %q: %w", name, err)
	}
	return &data, nil
}

// ListBackups lists all snapshots, oldest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]string, error) {
	names, err := s.storage.List(ctx, "backup-")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// LatestBackup restores the newest snapshot, or ErrNoBackups when the
// store is empty.
func (s *BackupService) LatestBackup(ctx context.Context) (*BackupData, error) {
	names, err := s.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoBackups
	}
	return s.RestoreBackup(ctx, names[len(names)-1])
}

// DeleteBackup removes one named snapshot.
func (s *BackupService) DeleteBackup(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, name)
}

// Prune deletes all but the keep newest snapshots.
func (s *BackupService) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}

	names, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(names) <= keep {
		return nil
	}

	for _, name := range names[:len(names)-keep] {
		if err := s.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("prune backup %q: %w", name, err)
		}
	}
	return nil
}
