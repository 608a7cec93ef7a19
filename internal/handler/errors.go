package handler

import (
	"errors"

	"sodaclub-ledger-api/internal/repository"
	"sodaclub-ledger-api/internal/service"
	"sodaclub-ledger-api/pkg/apierror"
)

// mapServiceError translates service and repository errors into the API
// error taxonomy. Exhausted transient retries become RETRY_LATER; the
// attempted write never partially applied, so retrying is safe.
func mapServiceError(err error) *apierror.Error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return apierror.ValidationError("invalid request", apierror.FieldError{
			Field:   verr.Field,
			Message: verr.Reason,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		return apierror.Unauthorized(service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrForbidden):
		return apierror.Forbidden("")
	case errors.Is(err, service.ErrInvalidTransition):
		return apierror.Conflict("only pending payments can be approved")
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound("")
	case errors.Is(err, repository.ErrDuplicate):
		return apierror.Conflict("identifier already exists")
	case errors.Is(err, repository.ErrConflict):
		return apierror.Conflict("already processed")
	case repository.IsTransient(err):
		return apierror.RetryLater("")
	default:
		return apierror.InternalError("")
	}
}
