package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ProvisioningErrorMapping           = "PROVISIONING_MAPPING_FAILED"
	ProvisioningErrorUnsupportedFilter = "PROVISIONING_FILTER_UNSUPPORTED"
	ProvisioningErrorDuplicateKey      = "PROVISIONING_DUPLICATE_KEY"
	ProvisioningErrorNotFound          = "PROVISIONING_NOT_FOUND"
	ProvisioningErrorMemberNotFound    = "PROVISIONING_MEMBER_NOT_FOUND"
	ProvisioningErrorMembershipCleanup = "PROVISIONING_MEMBERSHIP_CLEANUP_FAILED"
	ProvisioningErrorValidation        = "PROVISIONING_VALIDATION_FAILED"
	ProvisioningErrorInternal          = "PROVISIONING_INTERNAL_ERROR"
)

type ErrorMapper func(err error) *goerrors.Error

func NewMappingError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(ProvisioningErrorMapping)
}

func NewUnsupportedFilterError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusNotImplemented).
		WithTextCode(ProvisioningErrorUnsupportedFilter)
}

func NewDuplicateKeyError(message string, fields ...string) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ProvisioningErrorDuplicateKey)
	if len(fields) > 0 {
		err = err.WithMetadata(map[string]any{"fields": fields})
	}
	return err
}

func NewNotFoundError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ProvisioningErrorNotFound)
}

func NewMemberNotFoundError(memberValue string) *goerrors.Error {
	return goerrors.New("core: referenced member does not exist", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ProvisioningErrorMemberNotFound).
		WithMetadata(map[string]any{"member": strings.TrimSpace(memberValue)})
}

func NewMembershipCleanupError(cause error, userID string) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryOperation, "core: failed to detach user from all groups").
		WithCode(http.StatusInternalServerError).
		WithTextCode(ProvisioningErrorMembershipCleanup).
		WithMetadata(map[string]any{"user": strings.TrimSpace(userID)})
}

func NewValidationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(ProvisioningErrorValidation)
}

func IsMappingError(err error) bool { return hasTextCode(err, ProvisioningErrorMapping) }

func IsUnsupportedFilterError(err error) bool {
	return hasTextCode(err, ProvisioningErrorUnsupportedFilter)
}

func IsDuplicateKeyError(err error) bool { return hasTextCode(err, ProvisioningErrorDuplicateKey) }

func IsNotFoundError(err error) bool { return hasTextCode(err, ProvisioningErrorNotFound) }

func IsMemberNotFoundError(err error) bool {
	return hasTextCode(err, ProvisioningErrorMemberNotFound)
}

func IsMembershipCleanupError(err error) bool {
	return hasTextCode(err, ProvisioningErrorMembershipCleanup)
}

func IsValidationError(err error) bool { return hasTextCode(err, ProvisioningErrorValidation) }

func hasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// mapStorageWriteError translates a storage write failure. Uniqueness
// violations become duplicate-key errors carrying the offending fields;
// everything else is the catch-all validation rejection. Raw storage errors
// never cross the service boundary.
func mapStorageWriteError(err error, fields ...string) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureProvisioningEnvelope(rich)
	}
	if errors.Is(err, ErrStoreDuplicate) {
		return NewDuplicateKeyError(err.Error(), fields...)
	}
	if errors.Is(err, ErrStoreNotFound) {
		return NewNotFoundError(err.Error())
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "core: storage rejected write").
		WithCode(http.StatusBadRequest).
		WithTextCode(ProvisioningErrorValidation)
}

func mapStorageReadError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureProvisioningEnvelope(rich)
	}
	if errors.Is(err, ErrStoreNotFound) {
		return NewNotFoundError(err.Error())
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "core: storage read failed").
		WithCode(http.StatusInternalServerError).
		WithTextCode(ProvisioningErrorInternal)
}

func provisioningErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureProvisioningEnvelope(rich)
	}
	if errors.Is(err, ErrStoreDuplicate) {
		return NewDuplicateKeyError(err.Error())
	}
	if errors.Is(err, ErrStoreNotFound) {
		return NewNotFoundError(err.Error())
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureProvisioningEnvelope(mapped)
}

func ensureProvisioningEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = provisioningHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultProvisioningTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultProvisioningTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ProvisioningErrorValidation
	case goerrors.CategoryNotFound:
		return ProvisioningErrorNotFound
	case goerrors.CategoryConflict:
		return ProvisioningErrorDuplicateKey
	case goerrors.CategoryOperation:
		return ProvisioningErrorUnsupportedFilter
	default:
		return ProvisioningErrorInternal
	}
}

func provisioningHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
