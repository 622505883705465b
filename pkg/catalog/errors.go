package catalog

import "errors"

var (
	// ErrResourceNotFound is returned when a resource does not exist
	ErrResourceNotFound = errors.New("resource not found")

	// ErrPackageNotFound is returned when a package does not exist
	ErrPackageNotFound = errors.New("package not found")

	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")
)
