// Package externalids manages the links between host records and the
// identifiers external systems use for them.
package externalids

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/policy"
	"github.com/mikepea/extids/pkg/extids/records"
	"github.com/mikepea/extids/pkg/extids/systems"
)

const tracerName = "github.com/mikepea/extids/pkg/extids/externalids"

// Service manages ExternalID rows
type Service struct {
	db      *gorm.DB
	systems *systems.Service
	records *records.Registry
	log     logger.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService creates an external id service
func NewService(db *gorm.DB, sys *systems.Service, reg *records.Registry, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		db:      db,
		systems: sys,
		records: reg,
		log:     log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
}

// Records returns the registry used to resolve record references
func (s *Service) Records() *records.Registry {
	return s.records
}

// Systems returns the system registry
func (s *Service) Systems() *systems.Service {
	return s.systems
}

// CreateInput describes a new link
type CreateInput struct {
	RecordType string
	RecordID   uint
	SystemID   uint
	Identifier string
	Notes      string
	Active     *bool
}

// Patch edits a link; nil fields are left alone
type Patch struct {
	SystemID   *uint
	Identifier *string
	Notes      *string
	Active     *bool
}

// Filter narrows List
type Filter struct {
	SystemID   uint
	RecordType string
	RecordID   uint
	Active     *bool
	Limit      int
	Offset     int
}

// Create links a record to an external identifier
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.ExternalID, error) {
	ctx, span := s.tracer.Start(ctx, "externalids.Create", trace.WithAttributes(
		attribute.String("record_type", in.RecordType),
		attribute.Int64("system_id", int64(in.SystemID)),
	))
	defer span.End()

	system, err := s.selectableSystem(ctx, in.SystemID, strings.TrimSpace(in.RecordType))
	if err != nil {
		return nil, err
	}

	row := models.ExternalID{
		RecordType: strings.TrimSpace(in.RecordType),
		RecordID:   in.RecordID,
		SystemID:   system.ID,
		Identifier: strings.TrimSpace(in.Identifier),
		Notes:      in.Notes,
		Active:     true,
	}
	if in.Active != nil {
		row.Active = *in.Active
	}
	if err := s.prepare(ctx, &row, system, "create"); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, &row, system); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&row).Error
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.translate(ctx, err, &row, system)
	}
	row.System = *system
	s.log.Info("external id created",
		logger.String("record_type", row.RecordType),
		logger.Uint("record_id", row.RecordID),
		logger.String("system", system.Code))
	return &row, nil
}

// LinkInput sets the identifier of a record under an already resolved system
type LinkInput struct {
	RecordType string
	RecordID   uint
	System     *models.ExternalSystem
	Identifier string
	Notes      *string
	Active     *bool
	LastSync   *time.Time
}

// Link writes the identifier for (RecordType, RecordID, System). An existing
// row, archived or not, is updated in place and reactivated unless Active
// says otherwise; otherwise a row is created. The bool reports whether a row
// was created.
func (s *Service) Link(ctx context.Context, in LinkInput) (*models.ExternalID, bool, error) {
	ctx, span := s.tracer.Start(ctx, "externalids.Link", trace.WithAttributes(
		attribute.String("record_type", in.RecordType),
		attribute.String("system", in.System.Code),
	))
	defer span.End()

	var (
		row     models.ExternalID
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, created, err = s.linkTx(ctx, tx, in)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, false, s.translate(ctx, err, &row, in.System)
	}
	row.System = *in.System
	return &row, created, nil
}

// SetLinks writes the given identifiers for one record in a single
// transaction. Entries upsert like Link; the record's active links to systems
// missing from entries are archived. Links the caller cannot see are untouched.
func (s *Service) SetLinks(ctx context.Context, recordType string, recordID uint, entries []LinkInput) ([]models.ExternalID, error) {
	ctx, span := s.tracer.Start(ctx, "externalids.SetLinks", trace.WithAttributes(
		attribute.String("record_type", recordType),
		attribute.Int("entries", len(entries)),
	))
	defer span.End()

	kept := make([]uint, 0, len(entries))
	seen := make(map[uint]bool, len(entries))
	for i := range entries {
		if entries[i].System == nil {
			return nil, &errs.ValidationError{Field: "system", Message: "is required"}
		}
		if seen[entries[i].System.ID] {
			return nil, &errs.ValidationError{Field: "system", Message: entries[i].System.Code + " appears more than once"}
		}
		seen[entries[i].System.ID] = true
		kept = append(kept, entries[i].System.ID)
		entries[i].RecordType = recordType
		entries[i].RecordID = recordID
	}

	var (
		written []models.ExternalID
		current models.ExternalID
		system  *models.ExternalSystem
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range entries {
			system = in.System
			row, _, err := s.linkTx(ctx, tx, in)
			current = row
			if err != nil {
				return err
			}
			row.System = *in.System
			written = append(written, row)
		}

		stale := policy.Filter(ctx, tx.Model(&models.ExternalID{})).
			Where("external_ids.record_type = ? AND external_ids.record_id = ? AND external_ids.active = ?", recordType, recordID, true)
		if len(kept) > 0 {
			stale = stale.Where("external_ids.system_id NOT IN ?", kept)
		}
		res := stale.Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			s.log.Info("external ids archived by bulk set",
				logger.String("record_type", recordType),
				logger.Uint("record_id", recordID),
				logger.Int("archived", int(res.RowsAffected)))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if system != nil {
			return nil, s.translate(ctx, err, &current, system)
		}
		return nil, err
	}
	return written, nil
}

func (s *Service) linkTx(ctx context.Context, tx *gorm.DB, in LinkInput) (models.ExternalID, bool, error) {
	recordType := strings.TrimSpace(in.RecordType)
	var row models.ExternalID
	err := tx.Where("record_type = ? AND record_id = ? AND system_id = ?", recordType, in.RecordID, in.System.ID).
		First(&row).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		return row, false, err
	}

	if created {
		row = models.ExternalID{RecordType: recordType, RecordID: in.RecordID, SystemID: in.System.ID}
	}
	identifier := strings.TrimSpace(in.Identifier)
	changed := identifier != row.Identifier
	row.Identifier = identifier
	row.Active = in.Active == nil || *in.Active
	if in.Notes != nil {
		row.Notes = *in.Notes
	}
	if in.LastSync != nil {
		row.LastSync = in.LastSync
	}

	if created {
		err = s.prepare(ctx, &row, in.System, "create")
	} else {
		err = revalidate(ctx, &row, in.System, changed)
	}
	if err != nil {
		return row, false, err
	}
	if err := checkUnique(tx, &row, in.System); err != nil {
		return row, false, err
	}
	if err := tx.Omit(clause.Associations).Save(&row).Error; err != nil {
		return row, false, err
	}
	return row, created, nil
}

// prepare validates a new link and snapshots its record's company
func (s *Service) prepare(ctx context.Context, row *models.ExternalID, system *models.ExternalSystem, action string) error {
	if err := requireFields(row); err != nil {
		return err
	}
	if !s.records.Has(row.RecordType) {
		return &errs.UnknownRecordTypeError{Type: row.RecordType}
	}
	if err := systems.CheckFormat(system, row.Identifier); err != nil {
		return err
	}

	company, err := s.records.Company(ctx, row.RecordType, row.RecordID)
	if err != nil {
		return err
	}
	row.CompanyID = company
	if !policy.Permits(ctx, row.RecordType, company) {
		return &errs.ForbiddenError{Action: action, RecordType: row.RecordType}
	}
	return nil
}

// revalidate checks an edit of an existing link. The record reference is
// unchanged, so the stored company stays as it is even when the record is gone.
func revalidate(ctx context.Context, row *models.ExternalID, system *models.ExternalSystem, identifierChanged bool) error {
	if err := requireFields(row); err != nil {
		return err
	}
	if identifierChanged {
		if err := systems.CheckFormat(system, row.Identifier); err != nil {
			return err
		}
	}
	if !policy.Permits(ctx, row.RecordType, row.CompanyID) {
		return &errs.ForbiddenError{Action: "update", RecordType: row.RecordType}
	}
	return nil
}

func requireFields(row *models.ExternalID) error {
	if row.RecordType == "" {
		return &errs.ValidationError{Field: "record_type", Message: "is required"}
	}
	if row.RecordID == 0 {
		return &errs.ValidationError{Field: "record_id", Message: "is required"}
	}
	if row.Identifier == "" {
		return &errs.ValidationError{Field: "external_identifier", Message: "is required"}
	}
	return nil
}

// selectableSystem loads a system that new links may point at
func (s *Service) selectableSystem(ctx context.Context, id uint, recordType string) (*models.ExternalSystem, error) {
	system, err := s.systems.Get(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, &errs.UnknownSystemError{Code: fmt.Sprintf("#%d", id)}
	}
	if err != nil {
		return nil, err
	}
	if !system.Active {
		return nil, &errs.UnknownSystemError{Code: system.Code}
	}
	if recordType != "" && !systems.Applies(system, recordType) {
		return nil, &errs.ValidationError{Field: "system", Message: fmt.Sprintf("%s cannot be linked to %s records", system.Code, recordType)}
	}
	return system, nil
}

// checkUnique enforces both uniqueness rules across all rows, visible or not
func checkUnique(tx *gorm.DB, row *models.ExternalID, system *models.ExternalSystem) error {
	var count int64
	if err := tx.Model(&models.ExternalID{}).
		Where("record_type = ? AND record_id = ? AND system_id = ? AND id <> ?", row.RecordType, row.RecordID, row.SystemID, row.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return recordUniqueness(row, system)
	}

	if err := tx.Model(&models.ExternalID{}).
		Where("system_id = ? AND external_identifier = ? AND id <> ?", row.SystemID, row.Identifier, row.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return identifierUniqueness(row, system)
	}
	return nil
}

func recordUniqueness(row *models.ExternalID, system *models.ExternalSystem) error {
	return &errs.UniquenessError{
		Constraint: fmt.Sprintf("one %s identifier per record", system.Code),
		Value:      fmt.Sprintf("%s,%d", row.RecordType, row.RecordID),
	}
}

func identifierUniqueness(row *models.ExternalID, system *models.ExternalSystem) error {
	return &errs.UniquenessError{
		Constraint: fmt.Sprintf("external identifier within %s", system.Code),
		Value:      row.Identifier,
	}
}

// translate turns a storage constraint error that beat the pre-check into a
// UniquenessError. The violated rule is found by re-running the check against
// the committed rows.
func (s *Service) translate(ctx context.Context, err error, row *models.ExternalID, system *models.ExternalSystem) error {
	if !errs.IsConstraintViolation(err) {
		return err
	}
	if uerr := checkUnique(s.db.WithContext(ctx), row, system); uerr != nil {
		return uerr
	}
	return &errs.UniquenessError{
		Constraint: fmt.Sprintf("one %s identifier per record or external identifier within %s", system.Code, system.Code),
		Value:      row.Identifier,
	}
}

// Get returns a visible link by id
func (s *Service) Get(ctx context.Context, id uint) (*models.ExternalID, error) {
	var row models.ExternalID
	err := policy.Filter(ctx, s.db.WithContext(ctx)).
		Preload("System").
		First(&row, id).Error
	if err != nil {
		return nil, errs.NotFound(err)
	}
	return &row, nil
}

// List returns visible links matching f, ordered by id
func (s *Service) List(ctx context.Context, f Filter) ([]models.ExternalID, error) {
	q := policy.Filter(ctx, s.db.WithContext(ctx).Model(&models.ExternalID{})).Preload("System")
	if f.SystemID != 0 {
		q = q.Where("system_id = ?", f.SystemID)
	}
	if f.RecordType != "" {
		q = q.Where("record_type = ?", f.RecordType)
	}
	if f.RecordID != 0 {
		q = q.Where("record_id = ?", f.RecordID)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []models.ExternalID
	err := q.Order("id").Find(&rows).Error
	return rows, err
}

// Update applies p, re-running validation when the identifier or system changes
func (s *Service) Update(ctx context.Context, id uint, p Patch) (*models.ExternalID, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	system := &row.System
	changed := false

	if p.SystemID != nil && *p.SystemID != row.SystemID {
		system, err = s.selectableSystem(ctx, *p.SystemID, row.RecordType)
		if err != nil {
			return nil, err
		}
		row.SystemID = system.ID
		changed = true
	}
	if p.Identifier != nil {
		identifier := strings.TrimSpace(*p.Identifier)
		changed = changed || identifier != row.Identifier
		row.Identifier = identifier
	}
	if p.Notes != nil {
		row.Notes = *p.Notes
	}
	if p.Active != nil {
		row.Active = *p.Active
	}
	if err := revalidate(ctx, row, system, changed); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, row, system); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(row).Error
	})
	if err != nil {
		return nil, s.translate(ctx, err, row, system)
	}
	row.System = *system
	return row, nil
}

// Archive deactivates a link, making it deletable
func (s *Service) Archive(ctx context.Context, id uint) (*models.ExternalID, error) {
	return s.setActive(ctx, id, false)
}

// Unarchive reactivates a link
func (s *Service) Unarchive(ctx context.Context, id uint) (*models.ExternalID, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id uint, active bool) (*models.ExternalID, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Permits(ctx, row.RecordType, row.CompanyID) {
		return nil, &errs.ForbiddenError{Action: "update", RecordType: row.RecordType}
	}
	if err := s.db.WithContext(ctx).Model(row).Omit(clause.Associations).Update("active", active).Error; err != nil {
		return nil, err
	}
	row.Active = active
	return row, nil
}

// Delete removes an archived link. Active links are kept for the audit trail.
func (s *Service) Delete(ctx context.Context, id uint) error {
	row, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if row.Active {
		return &errs.RetentionError{ID: row.ID, Identifier: row.Identifier}
	}
	if !policy.Permits(ctx, row.RecordType, row.CompanyID) {
		return &errs.ForbiddenError{Action: "delete", RecordType: row.RecordType}
	}
	if err := s.db.WithContext(ctx).Delete(&models.ExternalID{}, row.ID).Error; err != nil {
		return err
	}
	s.log.Info("external id deleted", logger.Uint("id", row.ID), logger.String("identifier", row.Identifier))
	return nil
}

// SyncTouch records that the link was synchronized now. It takes exactly one id.
func (s *Service) SyncTouch(ctx context.Context, id uint) (*models.ExternalID, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(row).Omit(clause.Associations).Update("last_sync", now).Error; err != nil {
		return nil, err
	}
	row.LastSync = &now
	return row, nil
}

// ResolveRecord finds the live record linked to identifier under the active
// system with the given code. Unknown systems, missing or archived links and
// records that no longer exist all yield nil without an error.
func (s *Service) ResolveRecord(ctx context.Context, systemCode, identifier string) (*records.Record, error) {
	ctx, span := s.tracer.Start(ctx, "externalids.ResolveRecord", trace.WithAttributes(
		attribute.String("system", systemCode),
	))
	defer span.End()

	row, err := s.findActive(ctx, systemCode, identifier, "")
	if err != nil || row == nil {
		return nil, err
	}
	return s.liveRecord(ctx, row)
}

// findActive returns the active, visible link for identifier under systemCode.
// A non-empty recordType restricts the match to that type.
func (s *Service) findActive(ctx context.Context, systemCode, identifier, recordType string) (*models.ExternalID, error) {
	system, err := s.systems.ByCode(ctx, systemCode, true)
	if err != nil {
		var unknown *errs.UnknownSystemError
		if errors.As(err, &unknown) {
			return nil, nil
		}
		return nil, err
	}

	q := policy.Filter(ctx, s.db.WithContext(ctx)).
		Where("system_id = ? AND external_identifier = ? AND active = ?", system.ID, strings.TrimSpace(identifier), true)
	if recordType != "" {
		q = q.Where("record_type = ?", recordType)
	}
	var row models.ExternalID
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	row.System = *system
	return &row, nil
}

// FindRecord is ResolveRecord restricted to one record type
func (s *Service) FindRecord(ctx context.Context, recordType, systemCode, identifier string) (*records.Record, error) {
	row, err := s.findActive(ctx, systemCode, identifier, recordType)
	if err != nil || row == nil {
		return nil, err
	}
	return s.liveRecord(ctx, row)
}

func (s *Service) liveRecord(ctx context.Context, row *models.ExternalID) (*records.Record, error) {
	rec, err := s.records.Get(ctx, row.RecordType, row.RecordID)
	if err != nil {
		var unknown *errs.UnknownRecordTypeError
		if errors.As(err, &unknown) {
			return nil, nil
		}
		return nil, err
	}
	if rec != nil {
		rec.Type = row.RecordType
		rec.ID = row.RecordID
	}
	return rec, nil
}

// ForRecord returns the visible links of one record, optionally only active ones
func (s *Service) ForRecord(ctx context.Context, recordType string, recordID uint, activeOnly bool) ([]models.ExternalID, error) {
	if recordID == 0 {
		return nil, nil
	}
	f := Filter{RecordType: recordType, RecordID: recordID}
	if activeOnly {
		active := true
		f.Active = &active
	}
	return s.List(ctx, f)
}
