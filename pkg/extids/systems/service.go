// Package systems is the registry of external systems.
package systems

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mikepea/extids/pkg/extids/cache"
	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/policy"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
)

// Service manages external systems
type Service struct {
	db    *gorm.DB
	cache cache.SystemCache
	log   logger.Logger
}

// NewService creates a system registry. A nil cache or logger disables that concern.
func NewService(db *gorm.DB, c cache.SystemCache, log logger.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{db: db, cache: c, log: log}
}

// Input describes a new system
type Input struct {
	Code             string
	Name             string
	Description      string
	BaseURL          string
	IDFormat         string
	IDPrefix         string
	StoreURLTemplate string
	AdminURLTemplate string
	Sequence         *int
	Active           *bool
	AppliesTo        []string
}

// Patch edits a system; nil fields are left alone
type Patch struct {
	Code             *string
	Name             *string
	Description      *string
	BaseURL          *string
	IDFormat         *string
	IDPrefix         *string
	StoreURLTemplate *string
	AdminURLTemplate *string
	Sequence         *int
	AppliesTo        *[]string
}

func validate(system *models.ExternalSystem) error {
	if system.Code == "" {
		return &errs.ValidationError{Field: "code", Message: "is required"}
	}
	if system.Name == "" {
		return &errs.ValidationError{Field: "name", Message: "is required"}
	}
	if system.IDFormat != "" {
		if _, err := compileFormat(system.IDFormat); err != nil {
			return &errs.ValidationError{Field: "id_format", Message: fmt.Sprintf("%q is not a valid pattern: %v", system.IDFormat, err)}
		}
	}
	for _, tmpl := range []string{system.StoreURLTemplate, system.AdminURLTemplate} {
		if tmpl == "" {
			continue
		}
		if err := urltemplates.Validate(tmpl); err != nil {
			return err
		}
	}
	return nil
}

// checkUnique looks for another system already using code or name, archived ones included
func checkUnique(tx *gorm.DB, system *models.ExternalSystem) error {
	var clash models.ExternalSystem
	err := tx.Where("(code = ? OR name = ?) AND id <> ?", system.Code, system.Name, system.ID).First(&clash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if clash.Code == system.Code {
		return &errs.UniquenessError{Constraint: "system code", Value: system.Code}
	}
	return &errs.UniquenessError{Constraint: "system name", Value: system.Name}
}

// translate turns a constraint error that beat the pre-check into a
// UniquenessError naming the clashing field
func (s *Service) translate(ctx context.Context, err error, system *models.ExternalSystem) error {
	if !errs.IsConstraintViolation(err) {
		return err
	}
	if uerr := checkUnique(s.db.WithContext(ctx), system); uerr != nil {
		return uerr
	}
	return &errs.UniquenessError{Constraint: "system code or name", Value: system.Code}
}

func recordTypeRows(types []string) []models.ExternalSystemRecordType {
	seen := make(map[string]bool)
	var rows []models.ExternalSystemRecordType
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		rows = append(rows, models.ExternalSystemRecordType{RecordType: t})
	}
	return rows
}

// Create registers a new system
func (s *Service) Create(ctx context.Context, in Input) (*models.ExternalSystem, error) {
	system := models.ExternalSystem{
		Code:             urltemplates.SanitizeCode(in.Code),
		Name:             strings.TrimSpace(in.Name),
		Description:      in.Description,
		BaseURL:          strings.TrimRight(strings.TrimSpace(in.BaseURL), "/"),
		IDFormat:         in.IDFormat,
		IDPrefix:         in.IDPrefix,
		StoreURLTemplate: in.StoreURLTemplate,
		AdminURLTemplate: in.AdminURLTemplate,
		Sequence:         models.DefaultSequence,
		Active:           true,
		RecordTypes:      recordTypeRows(in.AppliesTo),
	}
	if in.Sequence != nil {
		system.Sequence = *in.Sequence
	}
	if in.Active != nil {
		system.Active = *in.Active
	}
	if err := validate(&system); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, &system); err != nil {
			return err
		}
		return tx.Create(&system).Error
	})
	if err != nil {
		return nil, s.translate(ctx, err, &system)
	}
	s.log.Info("external system created", logger.String("code", system.Code), logger.Uint("id", system.ID))
	return &system, nil
}

// Get returns a system by id, archived or not
func (s *Service) Get(ctx context.Context, id uint) (*models.ExternalSystem, error) {
	var system models.ExternalSystem
	if err := s.db.WithContext(ctx).Preload("RecordTypes").First(&system, id).Error; err != nil {
		return nil, errs.NotFound(err)
	}
	return &system, nil
}

// ByCode returns the system with the given code. With activeOnly, archived
// systems are treated as unknown. A miss is an UnknownSystemError.
func (s *Service) ByCode(ctx context.Context, code string, activeOnly bool) (*models.ExternalSystem, error) {
	code = strings.TrimSpace(code)
	system, err := s.cache.Get(ctx, code)
	if err != nil {
		s.log.Warn("system cache read failed", logger.String("code", code), logger.Error(err))
		system = nil
	}

	if system == nil {
		var loaded models.ExternalSystem
		err := s.db.WithContext(ctx).Preload("RecordTypes").Where("code = ?", code).First(&loaded).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.UnknownSystemError{Code: code}
		}
		if err != nil {
			return nil, err
		}
		system = &loaded
		if err := s.cache.Set(ctx, system); err != nil {
			s.log.Warn("system cache write failed", logger.String("code", code), logger.Error(err))
		}
	}

	if activeOnly && !system.Active {
		return nil, &errs.UnknownSystemError{Code: code}
	}
	return system, nil
}

// List returns systems ordered by sequence then name
func (s *Service) List(ctx context.Context, includeArchived bool) ([]models.ExternalSystem, error) {
	var systems []models.ExternalSystem
	q := s.db.WithContext(ctx).Preload("RecordTypes").Order("sequence, name")
	if !includeArchived {
		q = q.Where("active = ?", true)
	}
	err := q.Find(&systems).Error
	return systems, err
}

// Selectable returns the active systems that records of recordType may be linked to
func (s *Service) Selectable(ctx context.Context, recordType string) ([]models.ExternalSystem, error) {
	var systems []models.ExternalSystem
	err := s.db.WithContext(ctx).
		Preload("RecordTypes").
		Where("active = ?", true).
		Where(`NOT EXISTS (SELECT 1 FROM external_system_record_types r WHERE r.system_id = external_systems.id)
			OR EXISTS (SELECT 1 FROM external_system_record_types r WHERE r.system_id = external_systems.id AND r.record_type = ?)`, recordType).
		Order("sequence, name").
		Find(&systems).Error
	return systems, err
}

// Update applies p to a system
func (s *Service) Update(ctx context.Context, id uint, p Patch) (*models.ExternalSystem, error) {
	system, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCode := system.Code

	if p.Code != nil {
		system.Code = urltemplates.SanitizeCode(*p.Code)
	}
	if p.Name != nil {
		system.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		system.Description = *p.Description
	}
	if p.BaseURL != nil {
		system.BaseURL = strings.TrimRight(strings.TrimSpace(*p.BaseURL), "/")
	}
	if p.IDFormat != nil {
		system.IDFormat = *p.IDFormat
	}
	if p.IDPrefix != nil {
		system.IDPrefix = *p.IDPrefix
	}
	if p.StoreURLTemplate != nil {
		system.StoreURLTemplate = *p.StoreURLTemplate
	}
	if p.AdminURLTemplate != nil {
		system.AdminURLTemplate = *p.AdminURLTemplate
	}
	if p.Sequence != nil {
		system.Sequence = *p.Sequence
	}
	if err := validate(system); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, system); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(system).Error; err != nil {
			return err
		}
		if p.AppliesTo == nil {
			return nil
		}
		if err := tx.Where("system_id = ?", system.ID).Delete(&models.ExternalSystemRecordType{}).Error; err != nil {
			return err
		}
		system.RecordTypes = recordTypeRows(*p.AppliesTo)
		for i := range system.RecordTypes {
			system.RecordTypes[i].SystemID = system.ID
		}
		if len(system.RecordTypes) == 0 {
			return nil
		}
		return tx.Create(&system.RecordTypes).Error
	})
	if err != nil {
		return nil, s.translate(ctx, err, system)
	}
	s.invalidate(ctx, oldCode, system.Code)
	return system, nil
}

// Archive hides a system from selection and code lookups. Existing links keep resolving by id.
func (s *Service) Archive(ctx context.Context, id uint) (*models.ExternalSystem, error) {
	return s.setActive(ctx, id, false)
}

// Unarchive makes an archived system selectable again
func (s *Service) Unarchive(ctx context.Context, id uint) (*models.ExternalSystem, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id uint, active bool) (*models.ExternalSystem, error) {
	system, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(system).Update("active", active).Error; err != nil {
		return nil, err
	}
	system.Active = active
	s.invalidate(ctx, system.Code)
	return system, nil
}

// Delete removes a system and its templates. It is refused while external ids reference it.
func (s *Service) Delete(ctx context.Context, id uint) error {
	system, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.ExternalID{}).Where("system_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return &errs.ReferentialError{System: system.Code, Count: refs}
		}
		if err := tx.Where("system_id = ?", id).Delete(&models.ExternalSystemURL{}).Error; err != nil {
			return err
		}
		if err := tx.Where("system_id = ?", id).Delete(&models.ExternalSystemRecordType{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ExternalSystem{}, id).Error
	})
	if err != nil {
		if errs.IsForeignKeyViolation(err) {
			return &errs.ReferentialError{System: system.Code, Count: 1}
		}
		return err
	}
	s.invalidate(ctx, system.Code)
	s.log.Info("external system deleted", logger.String("code", system.Code))
	return nil
}

// LinkCounts returns how many external ids visible to the caller point at each system
func (s *Service) LinkCounts(ctx context.Context, ids ...uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		SystemID uint
		Count    int64
	}
	err := policy.Filter(ctx, s.db.WithContext(ctx).Model(&models.ExternalID{})).
		Select("external_ids.system_id AS system_id, COUNT(*) AS count").
		Where("external_ids.system_id IN ?", ids).
		Group("external_ids.system_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.SystemID] = row.Count
	}
	return counts, nil
}

func (s *Service) invalidate(ctx context.Context, codes ...string) {
	if err := s.cache.Invalidate(ctx, codes...); err != nil {
		s.log.Warn("system cache invalidation failed", logger.String("codes", strings.Join(codes, ",")), logger.Error(err))
	}
}
