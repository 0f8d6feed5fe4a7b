package models

import "time"

// ExternalSystemURL is a named URL template for an external system.
// An empty RecordType applies to every record type.
type ExternalSystemURL struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	SystemID   uint      `gorm:"not null;uniqueIndex:idx_system_url_code,priority:1" json:"system_id"`
	Code       string    `gorm:"not null;uniqueIndex:idx_system_url_code,priority:2" json:"code"`
	RecordType string    `gorm:"not null;default:'';uniqueIndex:idx_system_url_code,priority:3" json:"record_type"`
	Name       string    `gorm:"not null" json:"name"`
	Sequence   int       `gorm:"not null;default:10" json:"sequence"`
	Template   string    `gorm:"not null" json:"template"`
	Active     bool      `gorm:"not null" json:"active"`

	System ExternalSystem `gorm:"foreignKey:SystemID;constraint:OnDelete:CASCADE" json:"-"`
}
