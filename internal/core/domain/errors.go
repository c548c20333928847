package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	CodeEntityNotFound            Code = "ENTITY_NOT_FOUND"
	CodeEntityAlreadyExists       Code = "ENTITY_ALREADY_EXISTS"
	CodeBusinessRuleViolation     Code = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientPermissions   Code = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidStateTransition    Code = "INVALID_STATE_TRANSITION"
	CodeLimitExceeded             Code = "LIMIT_EXCEEDED"
	CodeInvalidContentOperation   Code = "INVALID_CONTENT_OPERATION"
	CodeInvalidCollaboration      Code = "INVALID_COLLABORATION"
	CodeInactiveUserAccount       Code = "INACTIVE_USER_ACCOUNT"
	CodeArchivedDocumentOperation Code = "ARCHIVED_DOCUMENT_OPERATION"
	CodeConcurrencyConflict       Code = "CONCURRENCY_CONFLICT"

	// CodeStorageFailure tags a backend failure with the operation that hit it.
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// Context keys shared by the constructors below.
const (
	KeyEntityType      = "entityType"
	KeyEntityID        = "entityId"
	KeyConflictField   = "conflictField"
	KeyConflictValue   = "conflictValue"
	KeyExpectedVersion = "expectedVersion"
	KeyActualVersion   = "actualVersion"
	KeyRule            = "rule"
	KeyUserID          = "userId"
	KeyResource        = "resource"
	KeyAction          = "action"
	KeyFromState       = "fromState"
	KeyToState         = "toState"
	KeyLimit           = "limit"
	KeyMaxAllowed      = "maxAllowed"
	KeyRequested       = "requested"
	KeyOperation       = "operation"
	KeyReason          = "reason"
	KeyDocumentID      = "documentId"
	KeyCollaboratorID  = "collaboratorId"
)

// Error is the single domain error type. Context carries the structured
// details; callers must not parse Message.
type Error struct {
	Code    Code
	Op      string
	Message string
	Context map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " ")))
	}
	b.WriteString(" (")
	b.WriteString(string(e.Code))
	b.WriteString(")")
	if e.Cause != nil && e.Code == CodeStorageFailure {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is regardless of context.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Value returns one context entry, or "" when absent.
func (e *Error) Value(key string) string {
	if e == nil || e.Context == nil {
		return ""
	}
	return e.Context[key]
}

// Sentinels for errors.Is checks.
var (
	ErrEntityNotFound            = &Error{Code: CodeEntityNotFound}
	ErrEntityAlreadyExists       = &Error{Code: CodeEntityAlreadyExists}
	ErrBusinessRuleViolation     = &Error{Code: CodeBusinessRuleViolation}
	ErrInsufficientPermissions   = &Error{Code: CodeInsufficientPermissions}
	ErrInvalidStateTransition    = &Error{Code: CodeInvalidStateTransition}
	ErrLimitExceeded             = &Error{Code: CodeLimitExceeded}
	ErrInvalidContentOperation   = &Error{Code: CodeInvalidContentOperation}
	ErrInvalidCollaboration      = &Error{Code: CodeInvalidCollaboration}
	ErrInactiveUserAccount       = &Error{Code: CodeInactiveUserAccount}
	ErrArchivedDocumentOperation = &Error{Code: CodeArchivedDocumentOperation}
	ErrConcurrencyConflict       = &Error{Code: CodeConcurrencyConflict}
	ErrStorageFailure            = &Error{Code: CodeStorageFailure}
)

func newError(code Code, msg string, ctx map[string]string) *Error {
	return &Error{Code: code, Message: msg, Context: ctx}
}

// EntityNotFound reports a missing entity where presence was required.
func EntityNotFound(entityType, id string) *Error {
	return newError(CodeEntityNotFound,
		fmt.Sprintf("%s %s not found", entityType, id),
		map[string]string{KeyEntityType: entityType, KeyEntityID: id})
}

// EntityAlreadyExists reports a unique-key collision on field=value.
func EntityAlreadyExists(entityType, field, value string) *Error {
	return newError(CodeEntityAlreadyExists,
		fmt.Sprintf("%s with %s %q already exists", entityType, field, value),
		map[string]string{KeyEntityType: entityType, KeyConflictField: field, KeyConflictValue: value})
}

// BusinessRuleViolation reports a broken rule; details are copied into the context.
func BusinessRuleViolation(rule, msg string, details map[string]string) *Error {
	ctx := make(map[string]string, len(details)+1)
	for k, v := range details {
		ctx[k] = v
	}
	ctx[KeyRule] = rule
	return newError(CodeBusinessRuleViolation, msg, ctx)
}

// InsufficientPermissions reports a denied resource:action check.
func InsufficientPermissions(userID UserID, resource, action string) *Error {
	return newError(CodeInsufficientPermissions,
		fmt.Sprintf("user %d may not %s %s", userID, action, resource),
		map[string]string{KeyUserID: formatID(int64(userID)), KeyResource: resource, KeyAction: action})
}

// InvalidStateTransition reports a disallowed from→to move.
func InvalidStateTransition(entityType, id, from, to string) *Error {
	return newError(CodeInvalidStateTransition,
		fmt.Sprintf("%s %s cannot move from %s to %s", entityType, id, from, to),
		map[string]string{KeyEntityType: entityType, KeyEntityID: id, KeyFromState: from, KeyToState: to})
}

// LimitExceeded reports a request above a configured maximum.
func LimitExceeded(limit string, maxAllowed, requested int) *Error {
	return newError(CodeLimitExceeded,
		fmt.Sprintf("%s limit exceeded: %d > %d", limit, requested, maxAllowed),
		map[string]string{KeyLimit: limit, KeyMaxAllowed: strconv.Itoa(maxAllowed), KeyRequested: strconv.Itoa(requested)})
}

// InvalidContentOperation reports an operation the document content does not allow.
func InvalidContentOperation(documentID, operation, reason string) *Error {
	return newError(CodeInvalidContentOperation,
		fmt.Sprintf("cannot %s document %s: %s", operation, documentID, reason),
		map[string]string{KeyDocumentID: documentID, KeyOperation: operation, KeyReason: reason})
}

// InvalidCollaboration reports a rejected collaborator change.
func InvalidCollaboration(documentID, collaboratorID, reason string) *Error {
	return newError(CodeInvalidCollaboration,
		fmt.Sprintf("invalid collaboration on document %s: %s", documentID, reason),
		map[string]string{KeyDocumentID: documentID, KeyCollaboratorID: collaboratorID, KeyReason: reason})
}

// InactiveUserAccount reports an account whose status flags block use.
func InactiveUserAccount(userID UserID, reason string) *Error {
	return newError(CodeInactiveUserAccount,
		fmt.Sprintf("user %d is inactive (%s)", userID, reason),
		map[string]string{KeyUserID: formatID(int64(userID)), KeyReason: reason})
}

// ArchivedDocumentOperation reports a write attempted on an archived document.
func ArchivedDocumentOperation(documentID, operation string) *Error {
	return newError(CodeArchivedDocumentOperation,
		fmt.Sprintf("document %s is archived; %s not allowed", documentID, operation),
		map[string]string{KeyDocumentID: documentID, KeyOperation: operation})
}

// ConcurrencyConflict reports a version precondition mismatch.
func ConcurrencyConflict(entityType, id string, expected, actual int64) *Error {
	return newError(CodeConcurrencyConflict,
		fmt.Sprintf("%s %s was modified concurrently: expected version %d, found %d", entityType, id, expected, actual),
		map[string]string{
			KeyEntityType:      entityType,
			KeyEntityID:        id,
			KeyExpectedVersion: formatID(expected),
			KeyActualVersion:   formatID(actual),
		})
}

// StorageFailure wraps a backend error with the operation that produced it.
func StorageFailure(op string, cause error) *Error {
	return &Error{
		Code:    CodeStorageFailure,
		Op:      op,
		Message: "storage failure",
		Context: map[string]string{KeyOperation: op},
		Cause:   cause,
	}
}

// WithOp returns a copy of e tagged with op.
func (e *Error) WithOp(op string) *Error {
	out := *e
	out.Op = op
	out.Context = make(map[string]string, len(e.Context))
	for k, v := range e.Context {
		out.Context[k] = v
	}
	return &out
}

// CodeOf extracts the code from err, or "" when err is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// ContextOf returns a copy of the structured context, or nil.
func ContextOf(err error) map[string]string {
	var e *Error
	if !errors.As(err, &e) || e.Context == nil {
		return nil
	}
	out := make(map[string]string, len(e.Context))
	for k, v := range e.Context {
		out[k] = v
	}
	return out
}

func formatID(v int64) string { return strconv.FormatInt(v, 10) }
