package service

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrOwnerNotFound      = errors.New("owner not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrSessionExpired     = errors.New("session expired (logged in on another device)")
	ErrWeakPassword       = errors.New("new password must be at least 6 characters")
)

// Validation codes.
const (
	CodeMissingSoldPrice    = "missing_sold_price"
	CodeInvalidField        = "invalid_field"
	CodeInvalidContribution = "invalid_contribution"
)

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Code  string
	Field string
	Tag   string
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeMissingSoldPrice:
		return "sold price is required when marking a product as sold"
	case CodeInvalidContribution:
		return "contribution amount must be a positive number"
	}
	if e.Tag != "" {
		return fmt.Sprintf("validation failed: field '%s' failed on tag '%s'", e.Field, e.Tag)
	}
	return fmt.Sprintf("validation failed: field '%s'", e.Field)
}

// CommitError wraps a failed atomic batch. Nothing from the batch is persisted.
type CommitError struct {
	Op  string
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: commit failed: %v", e.Op, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// ReconciliationError reports a failed duplicate cleanup. It is logged, never
// returned to API callers.
type ReconciliationError struct {
	ProductID string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile sales of product %s: %v", e.ProductID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
