package models

import (
	"time"
)

// DefaultSequence is used for systems and URL templates created without an explicit order.
const DefaultSequence = 10

// ExternalSystem is a platform whose identifiers are tracked against host records
type ExternalSystem struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Code             string    `gorm:"uniqueIndex;not null" json:"code"`
	Name             string    `gorm:"uniqueIndex;not null" json:"name"`
	Description      string    `json:"description"`
	BaseURL          string    `json:"base_url"`
	IDFormat         string    `json:"id_format"`
	IDPrefix         string    `json:"id_prefix"`
	StoreURLTemplate string    `json:"store_url_template"`
	AdminURLTemplate string    `json:"admin_url_template"`
	Sequence         int       `gorm:"not null;default:10" json:"sequence"`
	// Active has no gorm default so an explicit false is written on create.
	Active bool `gorm:"not null;index" json:"active"`

	// Relationships
	RecordTypes []ExternalSystemRecordType `gorm:"foreignKey:SystemID" json:"record_types,omitempty"`
}

// AppliesTo returns the record types the system is restricted to. Empty means all.
func (s *ExternalSystem) AppliesTo() []string {
	types := make([]string, len(s.RecordTypes))
	for i, rt := range s.RecordTypes {
		types[i] = rt.RecordType
	}
	return types
}

// ExternalSystemRecordType restricts a system to the listed record types
type ExternalSystemRecordType struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	SystemID   uint   `gorm:"not null;uniqueIndex:idx_system_record_type,priority:1" json:"system_id"`
	RecordType string `gorm:"not null;uniqueIndex:idx_system_record_type,priority:2" json:"record_type"`
}
