package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"playcast/pkg/backup"
	"playcast/pkg/settings"
)

// RestoreService recovers the settings document from backups.
type RestoreService struct {
	service *backup.BackupService
	logger  *zap.SugaredLogger
}

func NewRestoreService(service *backup.BackupService, logger *zap.SugaredLogger) *RestoreService {
	return &RestoreService{
		service: service,
		logger:  logger,
	}
}

// LatestSettings returns the settings document held in the newest backup.
func (rs *RestoreService) LatestSettings(ctx context.Context) (settings.Settings, error) {
	data, err := rs.service.LatestBackup(ctx)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("load latest backup: %w", err)
	}
	if len(data.Settings) == 0 {
		return settings.Settings{}, fmt.Errorf("backup from %s holds no settings document", data.Timestamp)
	}

	var s settings.Settings
	if err := json.Unmarshal(data.Settings, &s); err != nil {
		return settings.Settings{}, fmt.Errorf("decode backup settings: %w", err)
	}
	return s, nil
}

// LoadWithRecovery reads the settings document from path. A corrupt
// file falls back to the newest backup; with no usable backup the
// defaults from Load stand.
func (rs *RestoreService) LoadWithRecovery(ctx context.Context, path string) (settings.Settings, error) {
	s, err := settings.Load(path)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, settings.ErrCorrupt) {
		return s, err
	}

	rs.logger.Warnw("settings file corrupt, trying newest backup", "path", path)

	restored, rerr := rs.LatestSettings(ctx)
	if rerr != nil {
		rs.logger.Warnw("no usable backup, falling back to defaults", "error", rerr)
		return s, nil
	}

	rs.logger.Infow("settings restored from backup")
	return restored, nil
}
