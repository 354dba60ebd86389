// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engagement

import "errors"

// Code categorizes engagement failures for callers and metrics. None of
// these are fatal to the process; the HTTP layer maps them to statuses and
// the UI surfaces them as dismissable notices.
type Code string

const (
	// CodeDuplicatePending: a non-terminal request for the same
	// client/advisor pair already exists. Duplicates are rejected, not
	// queued.
	CodeDuplicatePending Code = "DUPLICATE_PENDING"

	// CodeAlreadyAssigned: the client already has an active advisor
	// assignment. Also the error the loser of a concurrent-approval race
	// observes.
	CodeAlreadyAssigned Code = "ALREADY_ASSIGNED"

	// CodeAlreadyResolved: the request has already left REQUESTED.
	CodeAlreadyResolved Code = "ALREADY_RESOLVED"

	// CodeNotFound: no request with the given ID exists.
	CodeNotFound Code = "NOT_FOUND"

	// CodeForbidden: the principal does not own the request or lacks the
	// role for the operation.
	CodeForbidden Code = "FORBIDDEN"
)

// Error is a typed engagement failure. Compare with errors.Is against the
// sentinel values below; two Errors match when their codes match.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is matches any *Error carrying the same code, so wrapped errors still
// compare against the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrDuplicatePending = &Error{CodeDuplicatePending, "a pending request to this advisor already exists"}
	ErrAlreadyAssigned  = &Error{CodeAlreadyAssigned, "client already has an assigned advisor"}
	ErrAlreadyResolved  = &Error{CodeAlreadyResolved, "request has already been resolved"}
	ErrNotFound         = &Error{CodeNotFound, "request not found"}
	ErrForbidden        = &Error{CodeForbidden, "operation not permitted for this principal"}
)

// CodeOf extracts the engagement code from err. ok is false when err does
// not carry one.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
