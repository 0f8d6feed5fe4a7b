package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"gorm.io/gorm"
)

func TestMessagesNameValueAndRule(t *testing.T) {
	tests := []struct {
		err  error
		want []string
	}{
		{&UniquenessError{Constraint: "(system, external_identifier)", Value: "123"}, []string{`"123"`, "(system, external_identifier)"}},
		{&FormatError{Identifier: "ABC123", System: "discord", Pattern: `^\d+$`}, []string{"ABC123", `^\d+$`, "discord"}},
		{&UnknownSystemError{Code: "nope"}, []string{"nope"}},
		{&TemplateError{Template: "{foo}", Token: "foo", Allowed: []string{"id", "gid"}}, []string{"{foo}", "id, gid"}},
		{&RetentionError{ID: 7, Identifier: "x"}, []string{"7", "archive"}},
		{&ReferentialError{System: "discord", Count: 3}, []string{"discord", "3"}},
	}
	for _, tt := range tests {
		msg := tt.err.Error()
		for _, w := range tt.want {
			if !strings.Contains(msg, w) {
				t.Errorf("Expected %q to contain %q", msg, w)
			}
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound},
		{&ValidationError{Field: "code", Message: "required"}, http.StatusBadRequest},
		{&FormatError{}, http.StatusBadRequest},
		{&TemplateError{}, http.StatusBadRequest},
		{&UnknownSystemError{}, http.StatusBadRequest},
		{&UnknownRecordTypeError{}, http.StatusBadRequest},
		{&ForbiddenError{}, http.StatusForbidden},
		{fmt.Errorf("create: %w", &UniquenessError{}), http.StatusConflict},
		{&RetentionError{}, http.StatusConflict},
		{&ReferentialError{}, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestConstraintDetection(t *testing.T) {
	if !IsConstraintViolation(gorm.ErrDuplicatedKey) {
		t.Error("Expected ErrDuplicatedKey to be a constraint violation")
	}
	if !IsConstraintViolation(errors.New("UNIQUE constraint failed: external_ids.external_identifier")) {
		t.Error("Expected sqlite message to be a constraint violation")
	}
	if IsConstraintViolation(nil) || IsConstraintViolation(errors.New("other")) {
		t.Error("Unexpected constraint violation")
	}
	if !IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")) {
		t.Error("Expected foreign key violation")
	}
}

func TestNotFound(t *testing.T) {
	if !errors.Is(NotFound(gorm.ErrRecordNotFound), ErrNotFound) {
		t.Error("Expected ErrRecordNotFound to map to ErrNotFound")
	}
	other := errors.New("x")
	if NotFound(other) != other {
		t.Error("Expected other errors to pass through")
	}
}

func TestResponse(t *testing.T) {
	status, msg := Response(errors.New("disk I/O error"), "Failed to create")
	if status != http.StatusInternalServerError || msg != "Failed to create" {
		t.Errorf("Expected masked 500, got %d %q", status, msg)
	}

	status, msg = Response(ErrNotFound, "Template not found")
	if status != http.StatusNotFound || msg != "Template not found" {
		t.Errorf("Expected 404 with fallback, got %d %q", status, msg)
	}

	status, msg = Response(&UnknownSystemError{Code: "nope"}, "x")
	if status != http.StatusBadRequest || !strings.Contains(msg, "nope") {
		t.Errorf("Expected 400 naming the code, got %d %q", status, msg)
	}
}
