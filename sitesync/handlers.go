package sitesync

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/gdrive"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"github.com/cascadebuilt/sitebooks_backend/quickbooks"
	"github.com/cascadebuilt/sitebooks_backend/utils"
)

func requireUser(c *gin.Context) bool {
	if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

// isReconnectError reports whether a sync failure means the stored external
// credentials are missing or dead, so the caller should reconnect rather
// than retry.
func isReconnectError(err error) bool {
	return errors.Is(err, quickbooks.ErrNotConnected) ||
		errors.Is(err, quickbooks.ErrAuthExpired) ||
		errors.Is(err, gdrive.ErrNotConnected)
}

// SyncQuickBooksHandler runs an accounting sync inline. Source failures still
// return the run outcome; only a dead credential maps to 401.
func SyncQuickBooksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUser(c) {
			return
		}
		result, err := RunQuickBooksSync(c.Request.Context(), config.GetDB())
		if isReconnectError(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func SyncProjectsHandler() gin.HandlerFunc {
	return folderSyncHandler(RunProjectsSync)
}

func SyncBidsHandler() gin.HandlerFunc {
	return folderSyncHandler(RunBidsSync)
}

func folderSyncHandler(run func(ctx context.Context, db *gorm.DB) (FolderSyncResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUser(c) {
			return
		}
		result, err := run(c.Request.Context(), config.GetDB())
		if isReconnectError(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// CronSyncHandler is the scheduler entrypoint. It is guarded by a shared
// secret instead of a user session, and by a best-effort redis lock so two
// overlapping cron ticks do not double-sync a source.
func CronSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(os.Getenv("CRON_SECRET"))
		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		if secret == "" || auth != "Bearer "+secret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		source := strings.TrimSpace(c.Query("source"))
		sources := []string{models.SyncSourceQuickBooks, models.SyncSourceProjects, models.SyncSourceBids}
		if source != "" {
			if source != models.SyncSourceQuickBooks && source != models.SyncSourceProjects && source != models.SyncSourceBids {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source"})
				return
			}
			sources = []string{source}
		}

		ctx := c.Request.Context()
		db := config.GetDB()
		results := gin.H{}
		for _, src := range sources {
			release, ok := acquireSourceLock(ctx, src)
			if !ok {
				results[src] = gin.H{"skipped": "sync already running"}
				continue
			}

			switch src {
			case models.SyncSourceQuickBooks:
				result, _ := RunQuickBooksSync(ctx, db)
				results[src] = result
			case models.SyncSourceProjects:
				result, _ := RunProjectsSync(ctx, db)
				results[src] = result
			case models.SyncSourceBids:
				result, _ := RunBidsSync(ctx, db)
				results[src] = result
			}
			release()
		}

		c.JSON(http.StatusOK, results)
	}
}

// acquireSourceLock takes a per-source redis lock. Redis being down or the
// locker being unconfigured degrades to running without a lock.
func acquireSourceLock(ctx context.Context, source string) (func(), bool) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, true
	}
	lock, err := locker.Obtain(ctx, "lock:sync:"+source, 10*time.Minute, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false
	}
	if err != nil {
		config.LogError(config.GetLogger(), "sitesync", "acquireSourceLock", "obtain lock", map[string]interface{}{
			"source": source,
		}, err)
		return func() {}, true
	}
	return func() { _ = lock.Release(ctx) }, true
}

// SyncStatusHandler reports the last completed run per source plus the
// pending-conflict backlog.
func SyncStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUser(c) {
			return
		}
		ctx := c.Request.Context()
		db := config.GetDB()

		var resp StatusResponse
		for _, entry := range []struct {
			source string
			out    *SourceStatus
		}{
			{models.SyncSourceQuickBooks, &resp.QuickBooks},
			{models.SyncSourceProjects, &resp.Projects},
			{models.SyncSourceBids, &resp.Bids},
		} {
			run, err := LastCompletedRun(ctx, db, entry.source)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if run != nil {
				entry.out.LastSyncedAt = formatTime(run.CompletedAt)
				entry.out.RecordsSynced = run.RecordsSynced
			}
		}

		if err := db.WithContext(ctx).Model(&models.SyncConflict{}).
			Where("status = ?", models.ConflictStatusPending).
			Count(&resp.PendingConflicts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func ListConflictsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUser(c) {
			return
		}

		status := strings.TrimSpace(c.Query("status"))
		switch status {
		case "", models.ConflictStatusPending, models.ConflictStatusResolvedKeepApp,
			models.ConflictStatusResolvedKeepExternal, models.ConflictStatusDismissed:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}

		entityType := strings.TrimSpace(c.Query("entity_type"))
		switch entityType {
		case "", models.EntityTypeInvoice, models.EntityTypeBill, models.EntityTypeProject:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity type"})
			return
		}

		conflicts, err := ListConflicts(c.Request.Context(), config.GetDB(), status, entityType)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"conflicts": conflicts})
	}
}

func ResolveConflictHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUser(c) {
			return
		}

		var req ResolveConflictRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		conflict, err := ResolveConflict(c.Request.Context(), config.GetDB(), req.Id, req.Resolution)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conflict not found"})
			return
		}
		if errors.Is(err, utils.ErrorValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, conflict)
	}
}

func AutoMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUser(c) {
			return
		}
		result, err := RunAutoMatch(c.Request.Context(), config.GetDB())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
