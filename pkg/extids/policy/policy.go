// Package policy decides which external ids a caller may see and write.
package policy

import (
	"context"

	"gorm.io/gorm"
)

// Scope limits a caller to some record types and companies.
// Empty RecordTypes or CompanyIDs means no restriction on that axis.
type Scope struct {
	Unrestricted bool
	RecordTypes  []string
	CompanyIDs   []uint
}

type scopeKey struct{}

// All is the scope used by trusted callers such as the CLI and bootstrap code
var All = Scope{Unrestricted: true}

// WithScope returns a context carrying s
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the caller's scope. A context without one sees nothing.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}

// Filter restricts a query on external_ids to the rows the caller in ctx may see
func Filter(ctx context.Context, db *gorm.DB) *gorm.DB {
	s, ok := FromContext(ctx)
	if !ok {
		return db.Where("1 = 0")
	}
	return s.Apply(db)
}

// Apply adds the scope's conditions to db
func (s Scope) Apply(db *gorm.DB) *gorm.DB {
	if s.Unrestricted {
		return db
	}
	if len(s.RecordTypes) > 0 {
		db = db.Where("external_ids.record_type IN ?", s.RecordTypes)
	}
	if len(s.CompanyIDs) > 0 {
		db = db.Where("(external_ids.company_id IN ? OR external_ids.company_id IS NULL)", s.CompanyIDs)
	}
	return db
}

// Permits reports whether the scope allows touching a row of recordType owned by company
func (s Scope) Permits(recordType string, company *uint) bool {
	if s.Unrestricted {
		return true
	}
	if len(s.RecordTypes) > 0 && !contains(s.RecordTypes, recordType) {
		return false
	}
	if len(s.CompanyIDs) > 0 && company != nil {
		for _, id := range s.CompanyIDs {
			if id == *company {
				return true
			}
		}
		return false
	}
	return true
}

// Permits checks the scope carried by ctx
func Permits(ctx context.Context, recordType string, company *uint) bool {
	s, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return s.Permits(recordType, company)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
