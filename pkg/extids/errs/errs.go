// Package errs defines the errors returned by the external id services.
// Every message names the offending value and the rule it broke.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a row addressed by id does not exist or is not visible.
var ErrNotFound = errors.New("not found")

// UniquenessError reports a violated unique constraint.
type UniquenessError struct {
	Constraint string
	Value      string
}

func (e *UniquenessError) Error() string {
	return fmt.Sprintf("%q already exists: %s must be unique", e.Value, e.Constraint)
}

// FormatError reports an identifier that does not match its system's id_format.
type FormatError struct {
	Identifier string
	System     string
	Pattern    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("identifier %q does not match the %s format %s", e.Identifier, e.System, e.Pattern)
}

// UnknownSystemError reports a system code that does not resolve to an active system.
type UnknownSystemError struct {
	Code string
}

func (e *UnknownSystemError) Error() string {
	return fmt.Sprintf("unknown external system %q", e.Code)
}

// TemplateError reports a URL template that references a token outside the
// allowed set, or that cannot be parsed.
type TemplateError struct {
	Template string
	Token    string
	Allowed  []string
	Reason   string
}

func (e *TemplateError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("unknown token {%s} in template %q; allowed tokens: %s", e.Token, e.Template, strings.Join(e.Allowed, ", "))
	}
	return fmt.Sprintf("invalid template %q: %s", e.Template, e.Reason)
}

// RetentionError reports an attempt to delete a link that is still active.
type RetentionError struct {
	ID         uint
	Identifier string
}

func (e *RetentionError) Error() string {
	return fmt.Sprintf("external id %d (%q) is active; archive it before deleting", e.ID, e.Identifier)
}

// ReferentialError reports an attempt to delete a system still referenced by links.
type ReferentialError struct {
	System string
	Count  int64
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("external system %q is referenced by %d external ids; archive it instead", e.System, e.Count)
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// UnknownRecordTypeError reports a record type nobody registered.
type UnknownRecordTypeError struct {
	Type string
}

func (e *UnknownRecordTypeError) Error() string {
	return fmt.Sprintf("unknown record type %q", e.Type)
}

// ForbiddenError reports a write outside the caller's visibility scope.
type ForbiddenError struct {
	Action     string
	RecordType string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("not allowed to %s external ids of %q", e.Action, e.RecordType)
}

// IsConstraintViolation reports whether err came from a unique index.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err came from a foreign key rule.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// NotFound converts gorm.ErrRecordNotFound into ErrNotFound and passes other errors through.
func NotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	var (
		uniq      *UniquenessError
		format    *FormatError
		system    *UnknownSystemError
		tmpl      *TemplateError
		retention *RetentionError
		ref       *ReferentialError
		invalid   *ValidationError
		rtype     *UnknownRecordTypeError
		forbidden *ForbiddenError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &format), errors.As(err, &tmpl),
		errors.As(err, &system), errors.As(err, &rtype):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &uniq), errors.As(err, &retention), errors.As(err, &ref):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Response returns the status and message an API handler should answer with.
// Internal errors are replaced by fallback so storage details do not leak.
func Response(err error, fallback string) (int, string) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return status, fallback
	}
	if errors.Is(err, ErrNotFound) {
		return status, fallback
	}
	return status, err.Error()
}
