package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DocumentStatusPaid    = "paid"
	DocumentStatusOverdue = "overdue"
	InvoiceStatusSent     = "sent"
	BillStatusOpen        = "open"
)

const (
	MatchConfidenceHigh   = "high"
	MatchConfidenceMedium = "medium"
)

// Invoice mirrors a receivable document pulled from the accounting source.
// ProjectId, ManualOverride and MatchConfidence are owned by the app (human or
// auto-matcher) and are never written by reconciliation upserts.
type Invoice struct {
	ID              uint            `gorm:"primary_key" json:"id"`
	ExternalId      string          `gorm:"uniqueIndex;size:64;not null" json:"external_id"`
	ClientName      string          `gorm:"size:255" json:"client_name"`
	Amount          decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount"`
	Balance         decimal.Decimal `gorm:"type:decimal(14,2)" json:"balance"`
	IssueDate       *time.Time      `json:"issue_date"`
	DueDate         *time.Time      `json:"due_date"`
	Memo            string          `gorm:"type:text" json:"memo"`
	Status          string          `gorm:"size:20" json:"status"`
	ProjectId       *uint           `gorm:"index" json:"project_id"`
	ManualOverride  bool            `gorm:"default:false" json:"manual_override"`
	MatchConfidence *string         `gorm:"size:10" json:"match_confidence"`
	SyncedAt        *time.Time      `json:"synced_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Bill is the payable counterpart of Invoice.
type Bill struct {
	ID              uint            `gorm:"primary_key" json:"id"`
	ExternalId      string          `gorm:"uniqueIndex;size:64;not null" json:"external_id"`
	VendorName      string          `gorm:"size:255" json:"vendor_name"`
	Amount          decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount"`
	Balance         decimal.Decimal `gorm:"type:decimal(14,2)" json:"balance"`
	IssueDate       *time.Time      `json:"issue_date"`
	DueDate         *time.Time      `json:"due_date"`
	Memo            string          `gorm:"type:text" json:"memo"`
	Status          string          `gorm:"size:20" json:"status"`
	ProjectId       *uint           `gorm:"index" json:"project_id"`
	ManualOverride  bool            `gorm:"default:false" json:"manual_override"`
	MatchConfidence *string         `gorm:"size:10" json:"match_confidence"`
	SyncedAt        *time.Time      `json:"synced_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
