package errors

import "errors"

// HTTPStatus maps an error kind to the response status its handler should
// use. Integrity violations deliberately collapse into 500 so they never
// leak to end users.
func HTTPStatus(err error) int {
	var (
		notFound   NotFoundError
		notUnique  NotUniqueError
		capacity   CapacityExhaustedError
		transition InvalidTransitionError
		conflict   ConflictError
		dataBroken DataIntegrityError
	)
	switch {
	case errors.As(err, &notFound):
		return 404
	case errors.As(err, &capacity):
		return 503
	case errors.As(err, &transition):
		return 422
	case errors.As(err, &conflict):
		return 409
	case errors.As(err, &notUnique), errors.As(err, &dataBroken):
		return 500
	default:
		return 500
	}
}
