package linking

import (
	"context"

	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
)

// GetExternalURL builds the kind URL for the record in the system. An empty
// kind means store. A template stored for the kind wins over the system's
// legacy store/admin fields. The bool is false when the system is unknown,
// the record has no identifier there, or no template resolves; rendering
// problems are logged and reported the same way.
func (l *Linker) GetExternalURL(ctx context.Context, recordID uint, systemCode, kind string) (string, bool) {
	kind = urltemplates.SanitizeCode(kind)
	if kind == "" {
		kind = KindStore
	}
	log := l.log.With(logger.Uint("record_id", recordID), logger.String("system", systemCode), logger.String("kind", kind))

	system, err := l.system(ctx, systemCode)
	if err != nil {
		log.Debug("no url: system not resolved", logger.Error(err))
		return "", false
	}
	identifier, ok, err := l.GetExternalID(ctx, recordID, system.Code)
	if err != nil || !ok {
		log.Debug("no url: record not linked", logger.Error(err))
		return "", false
	}

	source, err := l.template(ctx, system, kind)
	if err != nil {
		log.Debug("no url: template lookup failed", logger.Error(err))
		return "", false
	}
	if source == "" {
		return "", false
	}

	values := urltemplates.Values{
		Identifier: identifier,
		Model:      l.recordType,
		Name:       l.recordName(ctx, recordID),
		Code:       system.Code,
		Base:       system.BaseURL,
	}
	url, err := urltemplates.Render(source, values.Map())
	if err != nil {
		log.Debug("no url: render failed", logger.Error(err))
		return "", false
	}
	return url, true
}

// template returns the template source for kind, or "" when none applies
func (l *Linker) template(ctx context.Context, system *models.ExternalSystem, kind string) (string, error) {
	row, err := l.urls.Resolve(ctx, system.ID, kind, l.recordType)
	if err != nil {
		return "", err
	}
	if row != nil {
		return row.Template, nil
	}
	switch kind {
	case KindStore:
		return system.StoreURLTemplate, nil
	case KindAdmin:
		return system.AdminURLTemplate, nil
	}
	return "", nil
}

// recordName is the display name of a live record, or "" when it is gone
func (l *Linker) recordName(ctx context.Context, recordID uint) string {
	rec, err := l.ids.Records().Get(ctx, l.recordType, recordID)
	if err != nil || rec == nil {
		return ""
	}
	return rec.DisplayName
}
