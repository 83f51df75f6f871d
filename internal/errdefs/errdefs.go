package errdefs

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

var (
	// Общие ошибки
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal server error")

	// Ошибки каталога покупок
	ErrPurchaseNotFound     = fmt.Errorf("purchase %w", ErrNotFound)
	ErrTargetNotFound       = fmt.Errorf("purchase target %w", ErrNotFound)
	ErrPurchaseTypeMismatch = fmt.Errorf("purchase type does not match endpoint: %w", ErrInvalidInput)

	// Ошибки выдачи файлов
	ErrFileNotFound           = fmt.Errorf("file %w", ErrNotFound)
	ErrVariantNotFound        = fmt.Errorf("requested format %w", ErrNotFound)
	ErrLicenseForbidsFormat   = fmt.Errorf("WAV not allowed for this license: %w", ErrForbidden)
	ErrKeyNotAuthorized       = fmt.Errorf("key is not part of this purchase: %w", ErrForbidden)
	ErrNotPurchaseOwner       = fmt.Errorf("purchase belongs to another buyer: %w", ErrForbidden)
	ErrInvalidFormat          = fmt.Errorf("unsupported format: %w", ErrInvalidInput)
	ErrRangeNotSatisfiable    = errors.New("range not satisfiable")
	ErrInvalidStorageLocation = errors.New("invalid storage location")
	ErrEmptyStorageKey        = fmt.Errorf("empty storage key: %w", ErrNotFound)

	// Ошибки на уровне БД (repository)
	ErrDB = errors.New("database error")
)

// Wrap оборачивает ошибку с контекстом (аналог fmt.Errorf с %w)
func Wrap(err error, context string) error {
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf оборачивает ошибку с форматированием
func Wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is проверяет соответствие ошибки (аналог errors.Is)
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As извлекает конкретный тип ошибки (аналог errors.As)
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// HTTPStatus сопоставляет ошибку с HTTP статусом.
// Выход за пределы хранилища отдается как 404, чтобы не раскрывать внутренние пути.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidStorageLocation):
		return http.StatusNotFound
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		// ErrInternal и все неклассифицированные ошибки
		return http.StatusInternalServerError
	}
}

// PublicMessage возвращает текст ошибки, безопасный для клиента
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidStorageLocation), errors.Is(err, ErrFileNotFound), errors.Is(err, ErrEmptyStorageKey):
		return "File not found"
	case errors.Is(err, ErrVariantNotFound):
		return "Requested format not available"
	case errors.Is(err, ErrPurchaseNotFound):
		return "Purchase not found"
	case errors.Is(err, ErrTargetNotFound):
		return "Purchased item not found"
	case errors.Is(err, ErrLicenseForbidsFormat):
		return "WAV not allowed for this license"
	case errors.Is(err, ErrKeyNotAuthorized):
		return "File is not part of this purchase"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrPurchaseTypeMismatch):
		return "Purchase type does not match endpoint"
	case errors.Is(err, ErrInvalidFormat):
		return "Unsupported format"
	case errors.Is(err, ErrRangeNotSatisfiable):
		return "Requested range not satisfiable"
	case errors.Is(err, ErrInvalidInput):
		return "Invalid request"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	default:
		return "Internal server error"
	}
}

// GRPCCode сопоставляет ошибку с кодом gRPC
func GRPCCode(err error) codes.Code {
	switch HTTPStatus(err) {
	case http.StatusOK:
		return codes.OK
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusBadRequest, http.StatusRequestedRangeNotSatisfiable:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}
