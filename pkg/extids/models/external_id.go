package models

import "time"

// ExternalID links a host record, identified by (RecordType, RecordID), to an
// identifier minted by an external system.
//
// The (record_type, record_id) pair is a weak reference: the referenced record
// lives outside this schema and is resolved at read time.
type ExternalID struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	RecordType string     `gorm:"not null;uniqueIndex:idx_external_id_record_system,priority:1;index:idx_external_id_record,priority:1" json:"record_type"`
	RecordID   uint       `gorm:"not null;uniqueIndex:idx_external_id_record_system,priority:2;index:idx_external_id_record,priority:2" json:"record_id"`
	SystemID   uint       `gorm:"not null;uniqueIndex:idx_external_id_record_system,priority:3;uniqueIndex:idx_external_id_system_identifier,priority:1" json:"system_id"`
	Identifier string     `gorm:"column:external_identifier;not null;uniqueIndex:idx_external_id_system_identifier,priority:2" json:"external_identifier"`
	Notes      string     `json:"notes"`
	Active     bool       `gorm:"not null;index" json:"active"`
	LastSync   *time.Time `json:"last_sync"`
	CompanyID  *uint      `gorm:"index" json:"company_id"`

	System ExternalSystem `gorm:"foreignKey:SystemID;constraint:OnDelete:RESTRICT" json:"system,omitempty"`
}
