package fundreq

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures. The HTTP layer maps kinds to status
// codes; RepositoryUnavailable is the only kind a caller may retry.
type Kind string

const (
	KindMissingField          Kind = "missing_field"
	KindInvalidAmount         Kind = "invalid_amount"
	KindInvalidPolicyCode     Kind = "invalid_policy_code"
	KindDuplicateRequest      Kind = "duplicate_request"
	KindAllocationExceeded    Kind = "allocation_exceeded"
	KindNotFound              Kind = "not_found"
	KindInvalidStatus         Kind = "invalid_status"
	KindTooManyIDs            Kind = "too_many_ids"
	KindRepositoryUnavailable Kind = "repository_unavailable"
)

// Error is the closed error set returned by the ledger engine. Persistence
// failures never escape as raw driver errors; they are wrapped as
// RepositoryUnavailable.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// KindOf extracts the Kind from err, or "" when err is not a ledger error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

func errMissingField(name string) error {
	return &Error{Kind: KindMissingField, Message: fmt.Sprintf("Field '%s' is required.", name)}
}

func errInvalidAmount(name string) error {
	return &Error{Kind: KindInvalidAmount, Message: fmt.Sprintf("Field '%s' must be a non-negative amount.", name)}
}

func errInvalidPolicy(code string) error {
	return &Error{Kind: KindInvalidPolicyCode, Message: fmt.Sprintf("Invalid VAT policy '%s'.", code)}
}

func errDuplicate(detail string) error {
	return &Error{Kind: KindDuplicateRequest, Message: "Duplicate request. " + detail}
}

func errAllocationExceeded(poNumber string, total string) error {
	return &Error{
		Kind:    KindAllocationExceeded,
		Message: fmt.Sprintf("Total percentage for PO '%s' would reach %s%%, exceeding 100%%. Please verify existing advances.", poNumber, total),
	}
}

func errNotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func errInvalidStatus(status string) error {
	return &Error{Kind: KindInvalidStatus, Message: fmt.Sprintf("Invalid payment status '%s'.", status)}
}

func errTooManyIDs(max int) error {
	return &Error{Kind: KindTooManyIDs, Message: fmt.Sprintf("Too many request IDs provided. Maximum allowed is %d.", max)}
}

func errRepository(op string, cause error) error {
	return &Error{Kind: KindRepositoryUnavailable, Message: "storage unavailable: " + op, cause: cause}
}
