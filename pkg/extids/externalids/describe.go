package externalids

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/records"
)

// View is a link with its computed labels
type View struct {
	models.ExternalID
	DisplayLabel  string
	RecordLabel   string
	RecordStatus  records.Status
	OwningCompany *uint
}

// DisplayLabel formats "System: prefix+identifier (record label)". Without a
// system or identifier it falls back to the bare identifier.
func DisplayLabel(system *models.ExternalSystem, identifier, recordLabel string) string {
	if system == nil || system.ID == 0 || identifier == "" {
		return identifier
	}
	label := fmt.Sprintf("%s: %s%s", system.Name, system.IDPrefix, identifier)
	if recordLabel != "" {
		label += " (" + recordLabel + ")"
	}
	return label
}

// Describe computes labels for rows. References are resolved with one lookup
// per record type; dangling and invalid references degrade to sentinel labels.
func (s *Service) Describe(ctx context.Context, rows []models.ExternalID) ([]View, error) {
	ctx, span := s.tracer.Start(ctx, "externalids.Describe", trace.WithAttributes(attribute.Int("rows", len(rows))))
	defer span.End()

	if err := s.loadSystems(ctx, rows); err != nil {
		return nil, err
	}

	refs := make([]records.Ref, len(rows))
	for i, row := range rows {
		refs[i] = records.Ref{Type: row.RecordType, ID: row.RecordID}
	}
	resolved, err := s.records.ResolveAll(ctx, refs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	views := make([]View, len(rows))
	for i, row := range rows {
		res := resolved[refs[i]]
		v := View{
			ExternalID:   row,
			RecordLabel:  res.Label(),
			RecordStatus: res.Status,
		}
		if res.Status == records.Live {
			v.OwningCompany = res.CompanyID
		}
		v.DisplayLabel = DisplayLabel(&row.System, row.Identifier, v.RecordLabel)
		views[i] = v
	}
	return views, nil
}

// DescribeOne is Describe for a single row
func (s *Service) DescribeOne(ctx context.Context, row models.ExternalID) (View, error) {
	views, err := s.Describe(ctx, []models.ExternalID{row})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// loadSystems fills in System for rows that were loaded without it
func (s *Service) loadSystems(ctx context.Context, rows []models.ExternalID) error {
	var missing []uint
	for _, row := range rows {
		if row.System.ID == 0 && row.SystemID != 0 {
			missing = append(missing, row.SystemID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var loaded []models.ExternalSystem
	if err := s.db.WithContext(ctx).Where("id IN ?", missing).Find(&loaded).Error; err != nil {
		return err
	}
	byID := make(map[uint]models.ExternalSystem, len(loaded))
	for _, sys := range loaded {
		byID[sys.ID] = sys
	}
	for i := range rows {
		if rows[i].System.ID == 0 {
			rows[i].System = byID[rows[i].SystemID]
		}
	}
	return nil
}
