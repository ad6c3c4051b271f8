package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/auth"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/export"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/gitrepo"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

// DomainError carries the HTTP status and code a handler should answer with.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}

func invalid(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func unavailable(code, message string) *DomainError {
	return domainError(http.StatusServiceUnavailable, code, message, nil)
}

// sentinels maps errors from lower layers onto API responses. First match wins.
var sentinels = []struct {
	targets []error
	status  int
	code    string
	message string
}{
	{[]error{sql.ErrNoRows, gitrepo.ErrTemplateNotFound}, http.StatusNotFound, "NOT_FOUND", "Not found"},
	{[]error{auth.ErrInvalidToken, auth.ErrExpiredToken}, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"},
	{[]error{store.ErrStaleRevision}, http.StatusConflict, "STALE_REVISION", "A newer revision of this form was already saved"},
	{[]error{store.ErrFormCompleted}, http.StatusConflict, "FORM_COMPLETED", "This form was already submitted"},
	{[]error{export.ErrUnsupportedFormat}, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Format must be pdf or docx"},
	{[]error{export.ErrFormNotCompleted}, http.StatusConflict, "FORM_NOT_COMPLETED", "Only completed forms can be exported"},
	{[]error{export.ErrPDFDependencyMissing, export.ErrDOCXDependencyMissing}, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependency missing"},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, gitrepo.ErrInvalidTemplate) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	for _, s := range sentinels {
		for _, target := range s.targets {
			if errors.Is(err, target) {
				return s.status, s.code, s.message, nil
			}
		}
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
