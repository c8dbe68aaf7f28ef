// Package errs defines the error classes shared by every chaincode operation.
// Guards and validation run before any write, so an error of any of these
// classes means the transaction left the world state untouched.
package errs

import "github.com/pkg/errors"

var (
	// ErrNotFound marks a read of an asset, certificate, shipment or
	// transport record that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists marks a create with a duplicate ID.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized marks a failed role or ownership check.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation marks malformed input or a transfer destination that
	// violates the per-type destination rules.
	ErrValidation = errors.New("validation failed")

	// ErrState marks an asset that is not in a state permitting the
	// requested transition.
	ErrState = errors.New("invalid state")
)

func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func AlreadyExistsf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrAlreadyExists, format, args...)
}

func Unauthorizedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnauthorized, format, args...)
}

func Validationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

func Statef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrState, format, args...)
}

// IsNotFound reports whether the error is a missing-document read.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
