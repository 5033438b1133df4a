// Package backup snapshots the host settings document on a schedule so
// a corrupt config file can be recovered from the newest backup.
package backup

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"playcast/pkg/backup"
	"playcast/pkg/settings"
)

// Scheduler takes a settings snapshot at a fixed interval and prunes
// the store down to the retention count after each one.
type Scheduler struct {
	service   *backup.BackupService
	store     *settings.Store
	interval  time.Duration
	retention int
	logger    *zap.SugaredLogger
	quit      chan struct{}
}

func NewScheduler(
	service *backup.BackupService,
	store *settings.Store,
	interval time.Duration,
	retention int,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		service:   service,
		store:     store,
		interval:  interval,
		retention: retention,
		logger:    logger,
		quit:      make(chan struct{}),
	}
}

// Start snapshots once immediately, then on every interval tick until
// Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runBackup(ctx)

	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the schedule. An in-flight snapshot finishes on its own.
func (s *Scheduler) Stop() {
	close(s.quit)
}

func (s *Scheduler) runBackup(ctx context.Context) {
	doc, err := json.Marshal(s.store.Get())
	if err != nil {
		s.logger.Errorw("settings marshal for backup failed", "error", err)
		return
	}

	name, err := s.service.CreateBackup(ctx, &backup.BackupData{
		Settings: doc,
		Metadata: map[string]interface{}{"backup_type": "scheduled"},
	})
	if err != nil {
		s.logger.Errorw("settings backup failed", "error", err)
		return
	}
	s.logger.Infow("settings backup created", "backup_name", name)

	if err := s.service.Prune(ctx, s.retention); err != nil {
		s.logger.Warnw("backup prune failed", "error", err)
	}
}
