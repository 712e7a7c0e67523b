package sitesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"gorm.io/gorm"
)

func StartRun(ctx context.Context, db *gorm.DB, source string) (uint, error) {
	now := time.Now()
	run := models.SyncRun{
		Source:    source,
		Status:    models.SyncRunStatusStarted,
		StartedAt: &now,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return 0, err
	}
	return run.ID, nil
}

func CompleteRun(ctx context.Context, db *gorm.DB, runId uint, records int) error {
	now := time.Now()
	return db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", runId).Updates(map[string]interface{}{
		"status":         models.SyncRunStatusCompleted,
		"records_synced": records,
		"completed_at":   now,
	}).Error
}

func FailRun(ctx context.Context, db *gorm.DB, runId uint, message string) error {
	now := time.Now()
	return db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", runId).Updates(map[string]interface{}{
		"status":        models.SyncRunStatusFailed,
		"error_message": message,
		"completed_at":  now,
	}).Error
}

// LastCompletedRun returns the most recent completed run for a source, or nil
// when the source has never completed a run.
func LastCompletedRun(ctx context.Context, db *gorm.DB, source string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := db.WithContext(ctx).
		Where("source = ? AND status = ?", source, models.SyncRunStatusCompleted).
		Order("completed_at DESC").
		Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// withSyncRun brackets a source routine with run tracking. Every started run
// gets exactly one terminal write, even when the body panics.
func withSyncRun(ctx context.Context, db *gorm.DB, source string, body func(ctx context.Context) (int, error)) (runId uint, synced int, err error) {
	runId, err = StartRun(ctx, db, source)
	if err != nil {
		return 0, 0, err
	}

	terminal := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
			if !terminal {
				markFailed(ctx, db, runId, err.Error())
			}
		}
	}()

	synced, err = body(ctx)
	if err != nil {
		markFailed(ctx, db, runId, err.Error())
		terminal = true
		return runId, synced, err
	}

	if cerr := CompleteRun(ctx, db, runId, synced); cerr != nil {
		config.LogError(config.GetLogger(), "sitesync", "withSyncRun", "complete run", map[string]interface{}{
			"runId":  runId,
			"source": source,
		}, cerr)
	}
	terminal = true
	return runId, synced, nil
}

func markFailed(ctx context.Context, db *gorm.DB, runId uint, message string) {
	if ferr := FailRun(ctx, db, runId, message); ferr != nil {
		config.LogError(config.GetLogger(), "sitesync", "markFailed", "fail run", map[string]interface{}{
			"runId": runId,
		}, ferr)
	}
}
