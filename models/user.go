package models

import "time"

const (
	UserRoleAdmin = "Admin"
	UserRoleStaff = "Staff"
)

type User struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password  string    `gorm:"size:255" json:"-"`
	Name      string    `gorm:"size:255" json:"name"`
	Role      string    `gorm:"size:20" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
