package models

import "time"

const (
	ProjectStatusActive = "active"
	ProjectStatusClosed = "closed"
)

// Project rows are keyed by the drive folder they were discovered from.
// Bids live in the same table with a 6-digit code and IsBid set.
type Project struct {
	ID               uint       `gorm:"primary_key" json:"id"`
	ExternalFolderId string     `gorm:"uniqueIndex;size:128;not null" json:"external_folder_id"`
	Code             string     `gorm:"index;size:10;not null" json:"code"`
	ClientCode       string     `gorm:"index;size:20" json:"client_code"`
	ClientName       string     `gorm:"size:255" json:"client_name"`
	Description      string     `gorm:"type:text" json:"description"`
	Status           string     `gorm:"size:10;not null;default:active" json:"status"`
	HasPBS           bool       `gorm:"default:false" json:"has_pbs"`
	HasEstimate      bool       `gorm:"default:false" json:"has_estimate"`
	IsBid            bool       `gorm:"index;default:false" json:"is_bid"`
	SyncedAt         *time.Time `json:"synced_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
