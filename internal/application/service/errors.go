package service

import "errors"

// Precondition errors evaluated before any mutation. The HTTP layer maps
// them onto client-error status codes; anything else is an infrastructure
// fault.
var (
	// ErrNotFound is returned when a request, line or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is not the requester/approver
	// for the attempted action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when the operation is not legal in the
	// request's current status
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrAlreadyProcessed is returned when the approver's line is no longer
	// pending
	ErrAlreadyProcessed = errors.New("approval already processed")

	// ErrNoApprovalLines is returned when submitting a request without an
	// approval line
	ErrNoApprovalLines = errors.New("approval lines must be set before submission")

	// ErrDuplicateApprover is returned when a line set holds the same
	// approver twice at one step
	ErrDuplicateApprover = errors.New("approver already exists at this step")

	// ErrValidation is returned when the request payload itself is malformed
	ErrValidation = errors.New("validation failed")
)
