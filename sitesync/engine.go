package sitesync

import (
	"context"
	"strings"
	"time"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentKind string

const (
	KindInvoice DocumentKind = models.EntityTypeInvoice
	KindBill    DocumentKind = models.EntityTypeBill
)

// ExternalDocument is a normalized invoice or bill as fetched from the
// accounting source, before any local state is consulted.
type ExternalDocument struct {
	ExternalId   string
	Counterparty string
	Amount       decimal.Decimal
	Balance      decimal.Decimal
	IssueDate    *time.Time
	DueDate      *time.Time
	Memo         string
}

// OverriddenDocument is the slice of a manually-overridden local record the
// planner compares against.
type OverriddenDocument struct {
	ID           uint
	Counterparty string
	Amount       decimal.Decimal
}

// DocumentUpsert is the full payload written for a record the app does not
// own. Project assignment, override flag and match confidence are absent on
// purpose; the upsert never touches them.
type DocumentUpsert struct {
	ExternalDocument
	Status string
}

// ProtectedUpdate is the narrowed payload for an overridden record:
// sync-derived fields only.
type ProtectedUpdate struct {
	EntityId   uint
	ExternalId string
	Fields     map[string]interface{}
}

type ConflictDraft struct {
	EntityType    string
	EntityId      uint
	ExternalId    string
	FieldName     string
	AppValue      string
	ExternalValue string
}

type DocumentPlan struct {
	Upserts   []DocumentUpsert
	Protected []ProtectedUpdate
	Conflicts []ConflictDraft
}

// DeriveDocumentStatus computes the stored status for an incoming document.
// Zero balance wins over everything; a past due date means overdue; otherwise
// the kind's resting status.
func DeriveDocumentStatus(kind DocumentKind, balance decimal.Decimal, dueDate *time.Time, now time.Time) string {
	if balance.IsZero() {
		return models.DocumentStatusPaid
	}
	if dueDate != nil && dueDate.Before(now) {
		return models.DocumentStatusOverdue
	}
	if kind == KindInvoice {
		return models.InvoiceStatusSent
	}
	return models.BillStatusOpen
}

// BuildDocumentPlan partitions a fetched batch against the overridden local
// records (keyed by external id) and computes what to write. Overridden
// records get a narrowed update plus a conflict per diverging tracked field;
// everything else gets a full upsert.
func BuildDocumentPlan(kind DocumentKind, docs []ExternalDocument, overridden map[string]OverriddenDocument, now time.Time) DocumentPlan {
	nameField := "client_name"
	if kind == KindBill {
		nameField = "vendor_name"
	}

	var plan DocumentPlan
	for _, doc := range docs {
		status := DeriveDocumentStatus(kind, doc.Balance, doc.DueDate, now)

		local, ok := overridden[doc.ExternalId]
		if !ok {
			plan.Upserts = append(plan.Upserts, DocumentUpsert{ExternalDocument: doc, Status: status})
			continue
		}

		if !strings.EqualFold(strings.TrimSpace(local.Counterparty), strings.TrimSpace(doc.Counterparty)) {
			plan.Conflicts = append(plan.Conflicts, ConflictDraft{
				EntityType:    string(kind),
				EntityId:      local.ID,
				ExternalId:    doc.ExternalId,
				FieldName:     nameField,
				AppValue:      local.Counterparty,
				ExternalValue: doc.Counterparty,
			})
		}
		if !local.Amount.Equal(doc.Amount) {
			plan.Conflicts = append(plan.Conflicts, ConflictDraft{
				EntityType:    string(kind),
				EntityId:      local.ID,
				ExternalId:    doc.ExternalId,
				FieldName:     "amount",
				AppValue:      local.Amount.String(),
				ExternalValue: doc.Amount.String(),
			})
		}

		plan.Protected = append(plan.Protected, ProtectedUpdate{
			EntityId:   local.ID,
			ExternalId: doc.ExternalId,
			Fields: map[string]interface{}{
				"amount":     doc.Amount,
				"balance":    doc.Balance,
				"issue_date": doc.IssueDate,
				"due_date":   doc.DueDate,
				"memo":       doc.Memo,
				"status":     status,
				"synced_at":  now,
			},
		})
	}
	return plan
}

// ExternalProject is a parsed and client-resolved drive folder.
type ExternalProject struct {
	FolderId    string
	Code        string
	ClientCode  string
	ClientName  string
	Description string
	HasPBS      bool
	HasEstimate bool
	IsBid       bool
}

type ProjectUpsert struct {
	ExternalProject
	Status string
}

type ProjectPlan struct {
	Upserts   []ProjectUpsert
	Conflicts []ConflictDraft
}

// BuildProjectPlan maps folders to project upserts. A project closed locally
// stays closed no matter what the drive says; the disagreement surfaces as a
// status conflict instead of a write.
func BuildProjectPlan(projects []ExternalProject, closed map[string]uint) ProjectPlan {
	var plan ProjectPlan
	for _, p := range projects {
		status := models.ProjectStatusActive
		if id, ok := closed[p.FolderId]; ok {
			status = models.ProjectStatusClosed
			plan.Conflicts = append(plan.Conflicts, ConflictDraft{
				EntityType:    models.EntityTypeProject,
				EntityId:      id,
				ExternalId:    p.FolderId,
				FieldName:     "status",
				AppValue:      models.ProjectStatusClosed,
				ExternalValue: models.ProjectStatusActive,
			})
		}
		plan.Upserts = append(plan.Upserts, ProjectUpsert{ExternalProject: p, Status: status})
	}
	return plan
}

// applyDocumentPlan writes a document plan. Bulk upserts and narrowed updates
// are best-effort: a failed statement is logged and the run keeps going.
// Returns records written and conflicts inserted.
func applyDocumentPlan(ctx context.Context, db *gorm.DB, kind DocumentKind, plan DocumentPlan, source string, now time.Time) (int, int, error) {
	logger := config.GetLogger()
	synced := 0

	if len(plan.Upserts) > 0 {
		upsert := clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				counterpartyColumn(kind), "amount", "balance", "issue_date",
				"due_date", "memo", "status", "synced_at",
			}),
		}
		var err error
		if kind == KindInvoice {
			rows := make([]models.Invoice, 0, len(plan.Upserts))
			for _, u := range plan.Upserts {
				rows = append(rows, models.Invoice{
					ExternalId: u.ExternalId,
					ClientName: u.Counterparty,
					Amount:     u.Amount,
					Balance:    u.Balance,
					IssueDate:  u.IssueDate,
					DueDate:    u.DueDate,
					Memo:       u.Memo,
					Status:     u.Status,
					SyncedAt:   &now,
				})
			}
			err = db.WithContext(ctx).Clauses(upsert).CreateInBatches(&rows, 200).Error
		} else {
			rows := make([]models.Bill, 0, len(plan.Upserts))
			for _, u := range plan.Upserts {
				rows = append(rows, models.Bill{
					ExternalId: u.ExternalId,
					VendorName: u.Counterparty,
					Amount:     u.Amount,
					Balance:    u.Balance,
					IssueDate:  u.IssueDate,
					DueDate:    u.DueDate,
					Memo:       u.Memo,
					Status:     u.Status,
					SyncedAt:   &now,
				})
			}
			err = db.WithContext(ctx).Clauses(upsert).CreateInBatches(&rows, 200).Error
		}
		if err != nil {
			config.LogError(logger, "sitesync", "applyDocumentPlan", "bulk upsert failed", map[string]interface{}{
				"kind":   string(kind),
				"source": source,
				"count":  len(plan.Upserts),
			}, err)
		} else {
			synced += len(plan.Upserts)
		}
	}

	for _, pu := range plan.Protected {
		var err error
		if kind == KindInvoice {
			err = db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", pu.EntityId).Updates(pu.Fields).Error
		} else {
			err = db.WithContext(ctx).Model(&models.Bill{}).Where("id = ?", pu.EntityId).Updates(pu.Fields).Error
		}
		if err != nil {
			config.LogError(logger, "sitesync", "applyDocumentPlan", "protected update failed", map[string]interface{}{
				"kind":       string(kind),
				"entityId":   pu.EntityId,
				"externalId": pu.ExternalId,
			}, err)
			continue
		}
		synced++
	}

	inserted, err := insertConflicts(ctx, db, source, plan.Conflicts)
	if err != nil {
		return synced, inserted, err
	}
	return synced, inserted, nil
}

// applyProjectPlan writes a project plan. Bid identity (is_bid) is set on
// insert and never flipped by later syncs.
func applyProjectPlan(ctx context.Context, db *gorm.DB, plan ProjectPlan, source string, now time.Time) (int, int, error) {
	logger := config.GetLogger()
	synced := 0

	if len(plan.Upserts) > 0 {
		rows := make([]models.Project, 0, len(plan.Upserts))
		for _, u := range plan.Upserts {
			rows = append(rows, models.Project{
				ExternalFolderId: u.FolderId,
				Code:             u.Code,
				ClientCode:       u.ClientCode,
				ClientName:       u.ClientName,
				Description:      u.Description,
				Status:           u.Status,
				HasPBS:           u.HasPBS,
				HasEstimate:      u.HasEstimate,
				IsBid:            u.IsBid,
				SyncedAt:         &now,
			})
		}
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_folder_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"code", "client_code", "client_name", "description",
				"status", "has_pbs", "has_estimate", "synced_at",
			}),
		}).CreateInBatches(&rows, 200).Error
		if err != nil {
			config.LogError(logger, "sitesync", "applyProjectPlan", "bulk upsert failed", map[string]interface{}{
				"source": source,
				"count":  len(plan.Upserts),
			}, err)
		} else {
			synced += len(plan.Upserts)
		}
	}

	inserted, err := insertConflicts(ctx, db, source, plan.Conflicts)
	if err != nil {
		return synced, inserted, err
	}
	return synced, inserted, nil
}

// insertConflicts writes drafts to the ledger, skipping any that already have
// an identical pending entry so repeated runs with unchanged external data do
// not pile up duplicates.
func insertConflicts(ctx context.Context, db *gorm.DB, source string, drafts []ConflictDraft) (int, error) {
	if len(drafts) == 0 {
		return 0, nil
	}

	rows := make([]models.SyncConflict, 0, len(drafts))
	for _, d := range drafts {
		var count int64
		err := db.WithContext(ctx).Model(&models.SyncConflict{}).
			Where("source = ? AND entity_type = ? AND entity_id = ? AND field_name = ? AND external_value = ? AND status = ?",
				source, d.EntityType, d.EntityId, d.FieldName, d.ExternalValue, models.ConflictStatusPending).
			Count(&count).Error
		if err != nil {
			return 0, err
		}
		if count > 0 {
			continue
		}
		rows = append(rows, models.SyncConflict{
			Source:        source,
			EntityType:    d.EntityType,
			EntityId:      d.EntityId,
			ExternalId:    d.ExternalId,
			FieldName:     d.FieldName,
			AppValue:      d.AppValue,
			ExternalValue: d.ExternalValue,
			Status:        models.ConflictStatusPending,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

func counterpartyColumn(kind DocumentKind) string {
	if kind == KindBill {
		return "vendor_name"
	}
	return "client_name"
}
