// Package urltemplates stores named URL templates per external system and
// resolves the best one for a record type.
package urltemplates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
)

// Service manages ExternalSystemURL rows
type Service struct {
	db *gorm.DB
}

// NewService creates a template service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// UpsertInput creates or replaces the template for (SystemID, Code, RecordType)
type UpsertInput struct {
	SystemID   uint
	Code       string
	Name       string
	Template   string
	RecordType string
	Sequence   *int
	Active     *bool
}

// Patch edits a template. The code is changed only through Rename.
type Patch struct {
	Name     *string
	Template *string
	Sequence *int
	Active   *bool
}

// Upsert validates the template and writes it. The bool reports whether a row was created.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*models.ExternalSystemURL, bool, error) {
	code := SanitizeCode(in.Code)
	if code == "" {
		return nil, false, &errs.ValidationError{Field: "code", Message: fmt.Sprintf("%q does not contain any usable characters", in.Code)}
	}
	if err := Validate(in.Template); err != nil {
		return nil, false, err
	}
	recordType := strings.TrimSpace(in.RecordType)

	var (
		row     models.ExternalSystemURL
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var system models.ExternalSystem
		if err := tx.Select("id").First(&system, in.SystemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &errs.UnknownSystemError{Code: fmt.Sprintf("#%d", in.SystemID)}
			}
			return err
		}

		err := tx.Where("system_id = ? AND code = ? AND record_type = ?", in.SystemID, code, recordType).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			row = models.ExternalSystemURL{
				SystemID:   in.SystemID,
				Code:       code,
				RecordType: recordType,
				Sequence:   models.DefaultSequence,
				Active:     true,
			}
		case err != nil:
			return err
		}

		row.Template = in.Template
		row.Name = in.Name
		if row.Name == "" {
			row.Name = code
		}
		if in.Sequence != nil {
			row.Sequence = *in.Sequence
		}
		if in.Active != nil {
			row.Active = *in.Active
		}
		return tx.Omit(clause.Associations).Save(&row).Error
	})
	if err != nil {
		if errs.IsConstraintViolation(err) {
			return nil, false, &errs.UniquenessError{Constraint: "(system, code, record_type)", Value: code}
		}
		return nil, false, err
	}
	return &row, created, nil
}

// Get returns a template by id
func (s *Service) Get(ctx context.Context, id uint) (*models.ExternalSystemURL, error) {
	var row models.ExternalSystemURL
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, errs.NotFound(err)
	}
	return &row, nil
}

// Update applies p to the template with the given id
func (s *Service) Update(ctx context.Context, id uint, p Patch) (*models.ExternalSystemURL, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Template != nil {
		if err := Validate(*p.Template); err != nil {
			return nil, err
		}
		row.Template = *p.Template
	}
	if p.Name != nil {
		row.Name = *p.Name
	}
	if p.Sequence != nil {
		row.Sequence = *p.Sequence
	}
	if p.Active != nil {
		row.Active = *p.Active
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// Rename changes a template's code. The new code is sanitized and must not
// collide with another template of the same system and record type.
func (s *Service) Rename(ctx context.Context, id uint, newCode string) (*models.ExternalSystemURL, error) {
	code := SanitizeCode(newCode)
	if code == "" {
		return nil, &errs.ValidationError{Field: "code", Message: fmt.Sprintf("%q does not contain any usable characters", newCode)}
	}

	var row models.ExternalSystemURL
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, id).Error; err != nil {
			return errs.NotFound(err)
		}
		if row.Code == code {
			return nil
		}

		var clash int64
		if err := tx.Model(&models.ExternalSystemURL{}).
			Where("system_id = ? AND code = ? AND record_type = ? AND id <> ?", row.SystemID, code, row.RecordType, row.ID).
			Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return &errs.UniquenessError{Constraint: "(system, code, record_type)", Value: code}
		}

		row.Code = code
		return tx.Model(&row).Update("code", code).Error
	})
	if err != nil {
		if errs.IsConstraintViolation(err) {
			return nil, &errs.UniquenessError{Constraint: "(system, code, record_type)", Value: code}
		}
		return nil, err
	}
	return &row, nil
}

// Delete removes a template
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.ExternalSystemURL{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns a system's templates ordered for display
func (s *Service) List(ctx context.Context, systemID uint) ([]models.ExternalSystemURL, error) {
	var rows []models.ExternalSystemURL
	err := s.db.WithContext(ctx).
		Where("system_id = ?", systemID).
		Order("code, sequence, id").
		Find(&rows).Error
	return rows, err
}

// Resolve picks the active template for (systemID, code) that best fits
// recordType: an exact type match beats an all-types row, then lower
// sequence, then lower id. It returns nil when nothing matches.
func (s *Service) Resolve(ctx context.Context, systemID uint, code, recordType string) (*models.ExternalSystemURL, error) {
	var row models.ExternalSystemURL
	err := s.db.WithContext(ctx).
		Where("system_id = ? AND code = ? AND active = ?", systemID, code, true).
		Where("record_type = ? OR record_type = ''", recordType).
		Order("CASE WHEN record_type = '' THEN 1 ELSE 0 END, sequence, id").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
