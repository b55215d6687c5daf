// Package errors defines the error types surfaced across the action boundary.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ValidationError represents a rejected write due to invalid input.
// It is surfaced to callers as a {success: false, error} result and is
// never raised after a storage write has been attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// NotFoundError indicates the addressed entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// VaultCLIError enhances 1Password CLI failures with context.
func VaultCLIError(operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("1Password CLI error during %s", operation),
		Suggestion: vaultSuggestion(err),
		Err:        err,
	}
}

func vaultSuggestion(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "not signed in") || strings.Contains(errStr, "authentication") {
		return "Check that OP_SERVICE_ACCOUNT_TOKEN is set and valid"
	}
	if strings.Contains(errStr, "not found") {
		return "Verify the item exists. Use 'op item list' to see available items"
	}
	if strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests") {
		return "1Password rate limit exceeded. Wait for the limit window to reset"
	}
	if strings.Contains(errStr, "executable file not found") {
		return "Install 1Password CLI: https://developer.1password.com/docs/cli/get-started/"
	}
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}

	return ""
}
