package errors

import "net/http"

// HTTPStatus returns the response status for an error.
// Errors that are not AppErrors are reported as 500.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeCanceled:
		return 499
	case ErrCodeGeneration, ErrCodePublish:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
