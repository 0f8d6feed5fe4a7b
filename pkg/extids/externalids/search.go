package externalids

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/policy"
)

// Search operators
const (
	OpContains   = "contains"
	OpEquals     = "equals"
	OpStartsWith = "starts_with"
)

// DefaultSearchLimit caps SearchByText when no limit is given
const DefaultSearchLimit = 50

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchByText finds active links for lookup surfaces. "system:identifier"
// splits on the first colon: the left side matches system name or code
// (case-insensitive substring), the right side the identifier. Without a
// colon the whole query matches the identifier.
func (s *Service) SearchByText(ctx context.Context, query, op string, limit int) ([]models.ExternalID, error) {
	ctx, span := s.tracer.Start(ctx, "externalids.SearchByText", trace.WithAttributes(attribute.String("operator", op)))
	defer span.End()

	if op == "" {
		op = OpContains
	}
	if op != OpContains && op != OpEquals && op != OpStartsWith {
		return nil, &errs.ValidationError{Field: "operator", Message: op + " is not one of contains, equals, starts_with"}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	q := policy.Filter(ctx, s.db.WithContext(ctx).Model(&models.ExternalID{})).
		Joins("JOIN external_systems ON external_systems.id = external_ids.system_id").
		Where("external_ids.active = ?", true)

	query = strings.TrimSpace(query)
	identifier := query
	if idx := strings.Index(query, ":"); idx >= 0 {
		systemPart := strings.TrimSpace(query[:idx])
		identifier = strings.TrimSpace(query[idx+1:])
		if systemPart != "" {
			pattern := "%" + likeEscaper.Replace(strings.ToLower(systemPart)) + "%"
			q = q.Where(`external_systems.active = ? AND (LOWER(external_systems.name) LIKE ? ESCAPE '\' OR LOWER(external_systems.code) LIKE ? ESCAPE '\')`,
				true, pattern, pattern)
		}
	}

	if identifier != "" {
		escaped := likeEscaper.Replace(strings.ToLower(identifier))
		switch op {
		case OpEquals:
			q = q.Where("external_ids.external_identifier = ?", identifier)
		case OpStartsWith:
			q = q.Where(`LOWER(external_ids.external_identifier) LIKE ? ESCAPE '\'`, escaped+"%")
		default:
			q = q.Where(`LOWER(external_ids.external_identifier) LIKE ? ESCAPE '\'`, "%"+escaped+"%")
		}
	}

	var rows []models.ExternalID
	err := q.Preload("System").
		Order("external_ids.id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rows, nil
}
