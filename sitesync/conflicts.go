package sitesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cascadebuilt/sitebooks_backend/models"
	"github.com/cascadebuilt/sitebooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListConflicts returns ledger entries newest first. Status defaults to
// pending; entityType is optional.
func ListConflicts(ctx context.Context, db *gorm.DB, status string, entityType string) ([]models.SyncConflict, error) {
	if status == "" {
		status = models.ConflictStatusPending
	}
	q := db.WithContext(ctx).Where("status = ?", status)
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}

	var conflicts []models.SyncConflict
	if err := q.Order("id DESC").Find(&conflicts).Error; err != nil {
		return nil, err
	}
	return conflicts, nil
}

// ResolveConflict applies one resolution to a pending conflict. keep_app and
// dismiss only mark the ledger; keep_external first writes the external value
// onto the entity and leaves the conflict pending when that write fails.
func ResolveConflict(ctx context.Context, db *gorm.DB, id uint, resolution string) (*models.SyncConflict, error) {
	var terminal string
	switch resolution {
	case models.ConflictResolutionKeepApp:
		terminal = models.ConflictStatusResolvedKeepApp
	case models.ConflictResolutionKeepExternal:
		terminal = models.ConflictStatusResolvedKeepExternal
	case models.ConflictResolutionDismiss:
		terminal = models.ConflictStatusDismissed
	default:
		return nil, fmt.Errorf("%w: unknown resolution %q", utils.ErrorValidation, resolution)
	}

	var conflict models.SyncConflict
	err := db.WithContext(ctx).Where("id = ?", id).Take(&conflict).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if conflict.Status != models.ConflictStatusPending {
		return nil, fmt.Errorf("%w: conflict %d is already %s", utils.ErrorValidation, id, conflict.Status)
	}

	if resolution == models.ConflictResolutionKeepExternal {
		if err := applyExternalValue(ctx, db, conflict); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if err := db.WithContext(ctx).Model(&models.SyncConflict{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      terminal,
		"resolved_at": now,
	}).Error; err != nil {
		return nil, err
	}

	conflict.Status = terminal
	conflict.ResolvedAt = &now
	return &conflict, nil
}

// resolvableFields whitelists which conflict fields keep_external may write,
// per entity type, mapped to their columns.
var resolvableFields = map[string]map[string]string{
	models.EntityTypeInvoice: {
		"client_name": "client_name",
		"amount":      "amount",
		"balance":     "balance",
		"status":      "status",
		"memo":        "memo",
	},
	models.EntityTypeBill: {
		"vendor_name": "vendor_name",
		"amount":      "amount",
		"balance":     "balance",
		"status":      "status",
		"memo":        "memo",
	},
	models.EntityTypeProject: {
		"status":      "status",
		"client_code": "client_code",
		"client_name": "client_name",
		"description": "description",
	},
}

func applyExternalValue(ctx context.Context, db *gorm.DB, conflict models.SyncConflict) error {
	columns, ok := resolvableFields[conflict.EntityType]
	if !ok {
		return fmt.Errorf("%w: unknown entity type %q", utils.ErrorValidation, conflict.EntityType)
	}
	column, ok := columns[conflict.FieldName]
	if !ok {
		return fmt.Errorf("%w: field %q is not resolvable on %s", utils.ErrorValidation, conflict.FieldName, conflict.EntityType)
	}

	var value interface{} = conflict.ExternalValue
	if column == "amount" || column == "balance" {
		d, err := decimal.NewFromString(conflict.ExternalValue)
		if err != nil {
			return fmt.Errorf("%w: external value %q is not a number", utils.ErrorValidation, conflict.ExternalValue)
		}
		value = d
	}

	var tx *gorm.DB
	switch conflict.EntityType {
	case models.EntityTypeInvoice:
		tx = db.WithContext(ctx).Model(&models.Invoice{}).Where("external_id = ?", conflict.ExternalId).Update(column, value)
	case models.EntityTypeBill:
		tx = db.WithContext(ctx).Model(&models.Bill{}).Where("external_id = ?", conflict.ExternalId).Update(column, value)
	default:
		tx = db.WithContext(ctx).Model(&models.Project{}).Where("external_folder_id = ?", conflict.ExternalId).Update(column, value)
	}
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
