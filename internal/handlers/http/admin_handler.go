// Package http serves the admin read model and settings surface
// consumed by the GUI front end. Bound to loopback by default.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"playcast/internal/core/domain"
	"playcast/internal/core/ports"
	"playcast/internal/infrastructure/monitoring"
	"playcast/pkg/cache"
	apperrors "playcast/pkg/errors"
	"playcast/pkg/settings"
	"playcast/pkg/utils"
	"playcast/pkg/validation"
)

const sessionSnapshotKey = "session"

var _ ports.AdminHandler = (*AdminHandler)(nil)

type AdminHandler struct {
	sessions    ports.SessionService
	store       *settings.Store
	health      *monitoring.HealthChecker
	registry    *prometheus.Registry
	snapshots   *cache.CacheWithFallback
	snapshotTTL time.Duration
	startedAt   time.Time
	logger      *zap.SugaredLogger
}

func NewAdminHandler(
	sessions ports.SessionService,
	store *settings.Store,
	health *monitoring.HealthChecker,
	registry *prometheus.Registry,
	snapshotTTL time.Duration,
	logger *zap.SugaredLogger,
) *AdminHandler {
	return &AdminHandler{
		sessions:    sessions,
		store:       store,
		health:      health,
		registry:    registry,
		snapshots:   cache.NewCacheWithFallback(snapshotTTL),
		snapshotTTL: snapshotTTL,
		startedAt:   time.Now(),
		logger:      logger,
	}
}

// SetupRoutes registers the admin surface. guard protects mutating
// endpoints; pass nil to leave them open.
func (h *AdminHandler) SetupRoutes(router *gin.Engine, guard gin.HandlerFunc) {
	router.GET("/healthz", h.Healthz)
	if h.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/session", h.GetSession)
		api.GET("/settings", h.GetSettings)
	}

	mutating := router.Group("/api/v1")
	if guard != nil {
		mutating.Use(guard)
	}
	{
		mutating.PUT("/settings", h.UpdateSettings)
		mutating.POST("/settings/pin/rotate", h.RotatePIN)
		mutating.POST("/peers/kick", h.KickPeer)
	}
}

// GetSession returns the streaming session view. Short-TTL cached so
// a GUI polling every frame doesn't hammer the registry.
func (h *AdminHandler) GetSession(c *gin.Context) {
	view, err := h.snapshots.GetOrSet(c.Request.Context(), sessionSnapshotKey,
		func(ctx context.Context) (interface{}, error) {
			return h.sessions.Snapshot(ctx), nil
		}, h.snapshotTTL)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": view,
		"uptime":  time.Since(h.startedAt).String(),
	})
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings": h.store.Get(),
	})
}

// UpdateSettings applies a partial settings update. Absent fields keep
// their current values.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req struct {
		PIN                *string `json:"pin"`
		Bitrate            *int    `json:"bitrate"`
		PeerManagementType *string `json:"peer_management_type"`
		DarkMode           *bool   `json:"dark_mode"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.PIN != nil {
		if err := validation.ValidatePIN(*req.PIN); err != nil {
			c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if req.Bitrate != nil {
		if err := validation.ValidateBitrate(*req.Bitrate); err != nil {
			c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if req.PeerManagementType != nil {
		if err := validation.ValidatePeerManagement(*req.PeerManagementType); err != nil {
			c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}

	updated := h.store.Update(func(s *settings.Settings) {
		if req.PIN != nil {
			s.PIN = *req.PIN
		}
		if req.Bitrate != nil {
			s.Bitrate = *req.Bitrate
		}
		if req.PeerManagementType != nil {
			s.PeerManagementType = *req.PeerManagementType
		}
		if req.DarkMode != nil {
			s.DarkMode = *req.DarkMode
		}
	})

	h.logger.Infow("settings updated",
		"bitrate", updated.Bitrate,
		"peer_management", updated.PeerManagementType,
	)
	c.JSON(http.StatusOK, gin.H{"settings": updated})
}

func (h *AdminHandler) RotatePIN(c *gin.Context) {
	updated := h.store.Update(func(s *settings.Settings) {
		s.PIN = utils.GeneratePIN(4)
	})

	h.logger.Infow("pin rotated")
	c.JSON(http.StatusOK, gin.H{"pin": updated.PIN})
}

func (h *AdminHandler) KickPeer(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidatePeerAddress(req.Address); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	if err := h.sessions.Kick(c.Request.Context(), req.Address); err != nil {
		if errors.Is(err, domain.ErrPeerNotFound) {
			c.Error(apperrors.NewNotFoundError("peer"))
			return
		}
		c.Error(err)
		return
	}

	// The peer list changed, so the next poll must not see stale data.
	h.snapshots.Invalidate(sessionSnapshotKey)

	h.logger.Infow("peer kicked", "addr", req.Address)
	c.JSON(http.StatusOK, gin.H{"kicked": req.Address})
}

func (h *AdminHandler) Healthz(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
