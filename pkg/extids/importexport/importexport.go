// Package importexport moves external ids in and out as JSON.
package importexport

import (
	"context"
	"fmt"
	"time"

	"github.com/mikepea/extids/pkg/extids/externalids"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
)

// Entry is one external id in the exchange format. Systems are referenced by code.
type Entry struct {
	RecordType string     `json:"record_type"`
	RecordID   uint       `json:"record_id"`
	System     string     `json:"system"`
	Identifier string     `json:"external_identifier"`
	Notes      string     `json:"notes,omitempty"`
	Active     *bool      `json:"active,omitempty"`
	LastSync   *time.Time `json:"last_sync,omitempty"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Service exports and imports external ids
type Service struct {
	ids *externalids.Service
	log logger.Logger
}

// NewService creates an import/export service
func NewService(ids *externalids.Service, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{ids: ids, log: log}
}

// Export returns the visible external ids matching f
func (s *Service) Export(ctx context.Context, f externalids.Filter) ([]Entry, error) {
	rows, err := s.ids.List(ctx, f)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(rows))
	for i, row := range rows {
		active := row.Active
		entries[i] = Entry{
			RecordType: row.RecordType,
			RecordID:   row.RecordID,
			System:     row.System.Code,
			Identifier: row.Identifier,
			Notes:      row.Notes,
			Active:     &active,
			LastSync:   row.LastSync,
		}
	}
	return entries, nil
}

// Import writes entries one at a time. An entry that matches the stored link
// exactly is skipped; a failing entry is recorded and the rest continue.
// Entries default to active.
func (s *Service) Import(ctx context.Context, entries []Entry) ImportResult {
	result := ImportResult{Errors: []string{}}
	for i, e := range entries {
		skipped, err := s.importOne(ctx, e)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d (%s,%d %s): %v", i, e.RecordType, e.RecordID, e.System, err))
			result.Skipped++
		case skipped:
			result.Skipped++
		default:
			result.Imported++
		}
	}
	s.log.Info("import finished",
		logger.Int("imported", result.Imported),
		logger.Int("skipped", result.Skipped),
		logger.Int("errors", len(result.Errors)))
	return result
}

func (s *Service) importOne(ctx context.Context, e Entry) (bool, error) {
	system, err := s.ids.Systems().ByCode(ctx, e.System, true)
	if err != nil {
		return false, err
	}
	active := e.Active == nil || *e.Active

	existing, err := s.ids.List(ctx, externalids.Filter{SystemID: system.ID, RecordType: e.RecordType, RecordID: e.RecordID})
	if err != nil {
		return false, err
	}
	if len(existing) == 1 && same(existing[0], e, active) {
		return true, nil
	}

	in := externalids.LinkInput{
		RecordType: e.RecordType,
		RecordID:   e.RecordID,
		System:     system,
		Identifier: e.Identifier,
		Active:     &active,
		LastSync:   e.LastSync,
	}
	if e.Notes != "" {
		in.Notes = &e.Notes
	}
	if _, _, err := s.ids.Link(ctx, in); err != nil {
		return false, err
	}
	return false, nil
}

func same(row models.ExternalID, e Entry, active bool) bool {
	if row.Identifier != e.Identifier || row.Active != active {
		return false
	}
	if e.Notes != "" && row.Notes != e.Notes {
		return false
	}
	return e.LastSync == nil || (row.LastSync != nil && row.LastSync.Equal(*e.LastSync))
}
