// Package service provides business logic for the chat platform.
package service

import "errors"

var (
	// ErrNotFound means the session or widget id is unknown. Safe to show
	// a generic "not found".
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded means the owner's monthly conversation ceiling is
	// reached. Session creation is rejected before any record is written.
	ErrQuotaExceeded = errors.New("monthly conversation limit reached")

	// ErrSessionClosed means the session is closed or archived and
	// accepts no further activity.
	ErrSessionClosed = errors.New("conversation is closed")

	// ErrIllegalTransition mirrors model.ErrIllegalTransition at the
	// service boundary.
	ErrIllegalTransition = errors.New("action not allowed in current conversation state")
)
