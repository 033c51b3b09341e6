package errutil

import "net/http"

// CoreStatus is the transport-agnostic error code carried by BaseError.
type CoreStatus string

const (
	StatusBadRequest          CoreStatus = "BAD_REQUEST"
	StatusUnauthorized        CoreStatus = "UNAUTHORIZED"
	StatusForbidden           CoreStatus = "FORBIDDEN"
	StatusNotFound            CoreStatus = "NOT_FOUND"
	StatusConflict            CoreStatus = "CONFLICT"
	StatusValidationFailed    CoreStatus = "VALIDATION_FAILED"
	StatusUnprocessableEntity CoreStatus = "UNPROCESSABLE_ENTITY"
	StatusTooManyRequests     CoreStatus = "TOO_MANY_REQUESTS"
	StatusInternal            CoreStatus = "INTERNAL"
	StatusTimeout             CoreStatus = "TIMEOUT"
	StatusUnknown             CoreStatus = "UNKNOWN"

	// Storage engine statuses.
	StatusEntitlementMissing        CoreStatus = "ENTITLEMENT_MISSING"
	StatusLimitExceeded             CoreStatus = "LIMIT_EXCEEDED"
	StatusStorageObjectDeleteFailed CoreStatus = "STORAGE_OBJECT_DELETE_FAILED"
	StatusRowDeleteFailed           CoreStatus = "ROW_DELETE_FAILED"
	StatusReservationInvalid        CoreStatus = "RESERVATION_INVALID_OR_EXPIRED"
)

// HTTPStatus maps the CoreStatus to its closest HTTP status code.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusEntitlementMissing:
		// Surfaced to callers as upgrade-required.
		return http.StatusPaymentRequired
	case StatusLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case StatusReservationInvalid:
		return http.StatusBadRequest
	case StatusStorageObjectDeleteFailed, StatusRowDeleteFailed, StatusInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
