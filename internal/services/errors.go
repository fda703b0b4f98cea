package services

import "errors"

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrPaymentProcessor   = errors.New("payment processor error")
	// ErrCourseHasOwners blocks deleting a course that someone already bought.
	ErrCourseHasOwners = errors.New("course has owners")
	ErrInvalidCourse   = errors.New("invalid course")
	ErrStorageDisabled = errors.New("object storage is not configured")
	// ErrAdminPasswordRequired stops seeding an administrator without a password.
	ErrAdminPasswordRequired = errors.New("ADMIN_PASSWORD is required")
)
