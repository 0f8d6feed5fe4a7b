package models

import (
	"strconv"
	"strings"
	"time"
)

// ClientRole is the role granted to an API client
type ClientRole string

const (
	ClientRoleAdmin  ClientRole = "admin"
	ClientRoleClient ClientRole = "client"
)

// APIClient is a machine caller that exchanges its secret for a bearer token
type APIClient struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Name        string     `gorm:"uniqueIndex;not null" json:"name"`
	SecretHash  string     `gorm:"not null" json:"-"`
	KeyPrefix   string     `gorm:"not null" json:"key_prefix"` // First few chars for identification
	Role        ClientRole `gorm:"not null;default:'client'" json:"role"`
	RecordTypes string     `json:"record_types"` // comma separated, empty = all
	CompanyIDs  string     `json:"company_ids"`  // comma separated, empty = all
	LastUsedAt  *time.Time `json:"last_used_at"`
	Active      bool       `gorm:"not null" json:"active"`
}

// RecordTypeList splits RecordTypes into its entries
func (c *APIClient) RecordTypeList() []string {
	return SplitList(c.RecordTypes)
}

// CompanyIDList parses CompanyIDs, skipping entries that are not numbers
func (c *APIClient) CompanyIDList() []uint {
	var ids []uint
	for _, s := range SplitList(c.CompanyIDs) {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
