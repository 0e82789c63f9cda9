package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity (product, cart, order)
	// was not found.
	ErrNotFound = errors.New("not found")

	// ErrAuthRequired indicates the operation was invoked without a
	// caller identity.
	ErrAuthRequired = errors.New("authentication required")

	// ErrEmptyCart indicates checkout was attempted with no cart, or a
	// cart with zero lines. No order is created.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInsufficientStock indicates a conditional stock decrement found
	// fewer units than requested. The surrounding transaction aborts.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPersistenceFailure wraps repository write failures at the
	// service boundary.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrConflict indicates a guarded update found the row changed by a
	// concurrent writer. The surrounding transaction aborts.
	ErrConflict = errors.New("concurrent modification")
)

// ValidationError reports a quantity outside a product's allowed order
// bounds. The cart or order is left untouched.
type ValidationError struct {
	Field  string
	Reason string
	Min    *uint64
	Max    *uint64
	Got    uint64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %d is %s", e.Field, e.Got, e.Reason)
}

// CheckoutErrorCode is the machine-readable code a navigation layer turns
// into a redirect. Checkout never raises past its boundary; it returns one
// of these.
type CheckoutErrorCode string

const (
	CheckoutErrorEmptyCart   CheckoutErrorCode = "empty_cart"
	CheckoutErrorPersistence CheckoutErrorCode = "persistence"
	CheckoutErrorAuth        CheckoutErrorCode = "auth_required"
)

type CheckoutError struct {
	Code CheckoutErrorCode
	Err  error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed (%s): %v", e.Code, e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}
