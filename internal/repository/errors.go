package repository

import "errors"

// Business rejections from the backend. They are not infrastructure failures
// and never trip the order circuit breaker.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateNumber   = errors.New("document number already used")
	ErrOrderNotCompleted = errors.New("order is not completed")
	ErrProductNotFound   = errors.New("product not found")
	ErrSessionNotOpen    = errors.New("cash session is not open")
)

// IsRejection reports whether err is a business rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateNumber) ||
		errors.Is(err, ErrOrderNotCompleted) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrSessionNotOpen)
}
