package systems

import (
	"regexp"
	"sync"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
)

var formatCache sync.Map // pattern -> *regexp.Regexp

// compileFormat anchors pattern so it must match the whole identifier
func compileFormat(pattern string) (*regexp.Regexp, error) {
	if re, ok := formatCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	formatCache.Store(pattern, re)
	return re, nil
}

// CheckFormat returns a FormatError when the system has an id_format and
// identifier does not fully match it.
func CheckFormat(system *models.ExternalSystem, identifier string) error {
	if system.IDFormat == "" {
		return nil
	}
	re, err := compileFormat(system.IDFormat)
	if err != nil {
		return &errs.ValidationError{Field: "id_format", Message: "system " + system.Code + " has an invalid pattern " + system.IDFormat}
	}
	if !re.MatchString(identifier) {
		return &errs.FormatError{Identifier: identifier, System: system.Code, Pattern: system.IDFormat}
	}
	return nil
}

// Applies reports whether the system may be linked to records of recordType
func Applies(system *models.ExternalSystem, recordType string) bool {
	if len(system.RecordTypes) == 0 {
		return true
	}
	for _, rt := range system.RecordTypes {
		if rt.RecordType == recordType {
			return true
		}
	}
	return false
}
