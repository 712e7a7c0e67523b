package models

import (
	"encoding/json"
	"time"
)

// ClientMapping normalizes the inconsistent client naming used across the
// accounting source and the drive folder names into one canonical code.
type ClientMapping struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	Code        string    `gorm:"uniqueIndex;size:20;not null" json:"code"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	AliasesJSON []byte    `gorm:"type:json" json:"aliases"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m ClientMapping) Aliases() []string {
	if len(m.AliasesJSON) == 0 {
		return nil
	}
	var aliases []string
	if err := json.Unmarshal(m.AliasesJSON, &aliases); err != nil {
		return nil
	}
	return aliases
}

func EncodeAliases(aliases []string) []byte {
	b, _ := json.Marshal(aliases)
	return b
}
