package models

import "time"

const (
	SyncSourceQuickBooks = "quickbooks"
	SyncSourceProjects   = "projects"
	SyncSourceBids       = "bids"
)

const (
	EntityTypeInvoice = "invoice"
	EntityTypeBill    = "bill"
	EntityTypeProject = "project"
)

const (
	SyncRunStatusStarted   = "started"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusFailed    = "failed"
)

const (
	ConflictStatusPending              = "pending"
	ConflictStatusResolvedKeepApp      = "resolved_keep_app"
	ConflictStatusResolvedKeepExternal = "resolved_keep_external"
	ConflictStatusDismissed            = "dismissed"
)

const (
	ConflictResolutionKeepApp      = "keep_app"
	ConflictResolutionKeepExternal = "keep_external"
	ConflictResolutionDismiss      = "dismiss"
)

const (
	CredentialProviderQuickBooks  = "quickbooks"
	CredentialProviderGoogleDrive = "gdrive"
)

const (
	IntegrationStatusConnected    = "connected"
	IntegrationStatusDisconnected = "disconnected"
	IntegrationStatusError        = "error"
)

// SyncConflict is written only during reconciliation, when a tracked field on
// a manually-overridden record diverges from the external source (or the
// closed-project guard fires). It is resolved only by explicit user action.
type SyncConflict struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Source        string     `gorm:"index;size:50;not null" json:"source"`
	EntityType    string     `gorm:"index;size:20;not null" json:"entity_type"`
	EntityId      uint       `gorm:"index" json:"entity_id"`
	ExternalId    string     `gorm:"size:128" json:"external_id"`
	FieldName     string     `gorm:"size:50;not null" json:"field_name"`
	AppValue      string     `gorm:"type:text" json:"app_value"`
	ExternalValue string     `gorm:"type:text" json:"external_value"`
	Status        string     `gorm:"index;size:30;not null;default:pending" json:"status"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at"`
}

// SyncRun gets exactly one terminal update (completed or failed) per
// invocation. A row stuck in started means the run never finished.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Source        string     `gorm:"index;size:50;not null" json:"source"`
	Status        string     `gorm:"index;size:20;not null" json:"status"`
	RecordsSynced int        `json:"records_synced"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// IntegrationCredential holds the external-source OAuth tokens. Adapters
// persist refreshed tokens back through this row.
type IntegrationCredential struct {
	ID           uint       `gorm:"primary_key" json:"id"`
	Provider     string     `gorm:"uniqueIndex;size:50;not null" json:"provider"`
	Status       string     `gorm:"size:20;not null" json:"status"`
	AccessToken  string     `gorm:"type:text" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	ExpiresAt    *time.Time `json:"expires_at"`
	RealmId      string     `gorm:"size:100" json:"realm_id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
