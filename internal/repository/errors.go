// Package repository defines the storage contracts used by the booking services
// and the sentinel errors shared by their implementations.
package repository

import "errors"

// ErrPreconditionFailed is returned by a conditional update whose expected
// status no longer matches the stored booking. Services translate it into an
// invalid transition carrying the fresh status.
var ErrPreconditionFailed = errors.New("precondition failed")

// ErrNotificationNotFound is returned when a notification does not exist or
// belongs to another user.
var ErrNotificationNotFound = errors.New("notification not found or access denied")
