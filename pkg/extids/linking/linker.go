// Package linking gives a record type external id operations: get and set an
// identifier per system, search by identifier, list its links and build URLs.
package linking

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/externalids"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/records"
	"github.com/mikepea/extids/pkg/extids/systems"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
)

// Built-in URL kinds backed by the system's legacy template fields
const (
	KindStore = "store"
	KindAdmin = "admin"
)

// Linker is the external id capability of one record type
type Linker struct {
	recordType string
	ids        *externalids.Service
	urls       *urltemplates.Service
	log        logger.Logger
}

// New returns the Linker for recordType, which must be registered
func New(recordType string, ids *externalids.Service, urls *urltemplates.Service, log logger.Logger) (*Linker, error) {
	if !ids.Records().Has(recordType) {
		return nil, &errs.UnknownRecordTypeError{Type: recordType}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Linker{
		recordType: recordType,
		ids:        ids,
		urls:       urls,
		log:        log.With(logger.String("record_type", recordType)),
	}, nil
}

// RecordType returns the type this linker serves
func (l *Linker) RecordType() string {
	return l.recordType
}

// system resolves an active system by code
func (l *Linker) system(ctx context.Context, code string) (*models.ExternalSystem, error) {
	return l.ids.Systems().ByCode(ctx, code, true)
}

// GetExternalID returns the record's active identifier in the system.
// The bool is false when there is none or the system is unknown.
func (l *Linker) GetExternalID(ctx context.Context, recordID uint, systemCode string) (string, bool, error) {
	system, err := l.system(ctx, systemCode)
	if err != nil {
		var unknown *errs.UnknownSystemError
		if errors.As(err, &unknown) {
			return "", false, nil
		}
		return "", false, err
	}

	active := true
	rows, err := l.ids.List(ctx, externalids.Filter{
		SystemID:   system.ID,
		RecordType: l.recordType,
		RecordID:   recordID,
		Active:     &active,
		Limit:      1,
	})
	if err != nil || len(rows) == 0 {
		return "", false, err
	}
	return rows[0].Identifier, true, nil
}

// SetExternalID links the record to value in the system, updating and
// reactivating an existing link rather than adding a second one.
func (l *Linker) SetExternalID(ctx context.Context, recordID uint, systemCode, value string) (*models.ExternalID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, &errs.ValidationError{Field: "external_identifier", Message: "is required"}
	}
	system, err := l.system(ctx, systemCode)
	if err != nil {
		return nil, err
	}
	if !systems.Applies(system, l.recordType) {
		return nil, &errs.ValidationError{Field: "system", Message: system.Code + " cannot be linked to " + l.recordType + " records"}
	}

	row, created, err := l.ids.Link(ctx, externalids.LinkInput{
		RecordType: l.recordType,
		RecordID:   recordID,
		System:     system,
		Identifier: value,
	})
	if err != nil {
		return nil, err
	}
	if created {
		l.log.Debug("external id linked", logger.Uint("record_id", recordID), logger.String("system", system.Code))
	}
	return row, nil
}

// SearchByExternalID returns the live record of this type linked to value,
// or nil when there is none.
func (l *Linker) SearchByExternalID(ctx context.Context, systemCode, value string) (*records.Record, error) {
	return l.ids.FindRecord(ctx, l.recordType, systemCode, value)
}

// LinkedIDs returns every visible link of the record, archived ones included, with labels
func (l *Linker) LinkedIDs(ctx context.Context, recordID uint) ([]externalids.View, error) {
	rows, err := l.ids.ForRecord(ctx, l.recordType, recordID, false)
	if err != nil {
		return nil, err
	}
	return l.ids.Describe(ctx, rows)
}

// LinkedSystems returns the systems the record has an active link to, in display order
func (l *Linker) LinkedSystems(ctx context.Context, recordID uint) ([]models.ExternalSystem, error) {
	rows, err := l.ids.ForRecord(ctx, l.recordType, recordID, true)
	if err != nil {
		return nil, err
	}
	out := make([]models.ExternalSystem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.System)
	}
	slices.SortStableFunc(out, func(a, b models.ExternalSystem) int {
		if a.Sequence != b.Sequence {
			return a.Sequence - b.Sequence
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// LinkEntry is one identifier in a bulk SetLinks call
type LinkEntry struct {
	System     string
	Identifier string
	Notes      *string
}

// SetLinks makes entries the record's active links. Entries are written like
// SetExternalID; active links to systems not named are archived.
func (l *Linker) SetLinks(ctx context.Context, recordID uint, entries []LinkEntry) ([]models.ExternalID, error) {
	inputs := make([]externalids.LinkInput, 0, len(entries))
	for _, e := range entries {
		value := strings.TrimSpace(e.Identifier)
		if value == "" {
			return nil, &errs.ValidationError{Field: "external_identifier", Message: "is required for " + e.System}
		}
		system, err := l.system(ctx, e.System)
		if err != nil {
			return nil, err
		}
		if !systems.Applies(system, l.recordType) {
			return nil, &errs.ValidationError{Field: "system", Message: system.Code + " cannot be linked to " + l.recordType + " records"}
		}
		inputs = append(inputs, externalids.LinkInput{System: system, Identifier: value, Notes: e.Notes})
	}
	return l.ids.SetLinks(ctx, l.recordType, recordID, inputs)
}
