package controllers

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go_screener_backend/models"
	"go_screener_backend/services/providers"
	"go_screener_backend/services/syncjobs"
)

// AdminController exposes manual triggers for the sync jobs plus a
// status view of checkpoint and retry-queue state. The backfill runs in
// the background because it takes hours; the other jobs run inline and
// return their stats.
type AdminController struct {
	db       *gorm.DB
	backfill *syncjobs.BulkBackfillJob
	retry    *syncjobs.RetryProcessor
	delta    *syncjobs.DeltaSyncJob
	rotation *syncjobs.RotationUpdater
	registry *providers.Registry
	logger   *logrus.Entry

	mu              sync.Mutex
	backfillRunning bool
	lastBackfill    *syncjobs.BackfillStats
}

func NewAdminController(db *gorm.DB, backfill *syncjobs.BulkBackfillJob, retry *syncjobs.RetryProcessor,
	delta *syncjobs.DeltaSyncJob, rotation *syncjobs.RotationUpdater, registry *providers.Registry,
	logger *logrus.Logger) *AdminController {
	return &AdminController{
		db:       db,
		backfill: backfill,
		retry:    retry,
		delta:    delta,
		rotation: rotation,
		registry: registry,
		logger:   logger.WithField("component", "admin_controller"),
	}
}

// TriggerBackfill starts a bulk backfill in the background.
// POST /api/admin/jobs/backfill?resume=true
func (ac *AdminController) TriggerBackfill(c *gin.Context) {
	resume, _ := strconv.ParseBool(c.DefaultQuery("resume", "true"))

	ac.mu.Lock()
	if ac.backfillRunning {
		ac.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "Backfill already running"})
		return
	}
	ac.backfillRunning = true
	ac.mu.Unlock()

	go func() {
		stats, err := ac.backfill.Run(context.Background(), resume)
		ac.mu.Lock()
		ac.backfillRunning = false
		ac.lastBackfill = &stats
		ac.mu.Unlock()
		if err != nil {
			ac.logger.Errorf("Backfill aborted: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "Backfill started", "resume": resume})
}

// TriggerRetryQueue runs one retry-queue sweep.
// POST /api/admin/jobs/retry-queue
func (ac *AdminController) TriggerRetryQueue(c *gin.Context) {
	stats, err := ac.retry.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// TriggerDeltaSync runs one delta sync pass.
// POST /api/admin/jobs/delta-sync
func (ac *AdminController) TriggerDeltaSync(c *gin.Context) {
	stats, err := ac.delta.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// TriggerFundamentals runs today's fundamentals rotation segment.
// POST /api/admin/jobs/fundamentals
func (ac *AdminController) TriggerFundamentals(c *gin.Context) {
	stats, err := ac.rotation.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSyncStatus summarizes checkpoint and retry-queue state.
// GET /api/admin/sync/status
func (ac *AdminController) GetSyncStatus(c *gin.Context) {
	checkpoints, err := countByColumn(ac.db, &models.BatchCheckpoint{}, "status")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read checkpoints"})
		return
	}
	failed, err := countByColumn(ac.db, &models.FailedTicker{}, "status")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read retry queue"})
		return
	}

	var tickers, prices int64
	ac.db.Model(&models.Ticker{}).Count(&tickers)
	ac.db.Model(&models.DailyPrice{}).Count(&prices)

	ac.mu.Lock()
	running := ac.backfillRunning
	last := ac.lastBackfill
	ac.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"backfill_running": running,
		"last_backfill":    last,
		"checkpoints":      checkpoints,
		"failed_tickers":   failed,
		"tracked_tickers":  tickers,
		"price_rows":       prices,
		"provider_usage":   ac.registry.Usage(),
	})
}

func countByColumn(db *gorm.DB, model interface{}, column string) (map[string]int64, error) {
	type row struct {
		Value string
		N     int64
	}
	var rows []row
	if err := db.Model(model).
		Select(column + " AS value, COUNT(*) AS n").
		Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Value] = r.N
	}
	return out, nil
}
