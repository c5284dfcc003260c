package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindConfig         ErrKind = "config"         // startup only
	KindInfrastructure ErrKind = "infrastructure" // 503
	KindInternal       ErrKind = "internal"       // 500
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (avoid leaking sensitive details)
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

// Is reports whether err (or anything it wraps) is a domain error with code.
func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf returns the kind of the first domain error in err's chain, or "".
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ----------------------
// Configuration
// ----------------------

// ErrConfigMissing names every missing key at once.
func ErrConfigMissing(keys ...string) *Error {
	return WithMeta(
		New(KindConfig, "config_missing",
			"MediaWiki OAuth enabled but missing required config values: "+strings.Join(keys, ", ")),
		map[string]string{"keys": strings.Join(keys, ",")},
	)
}

func ErrConfigInvalid(key, reason string) *Error {
	return WithMeta(New(KindConfig, "config_invalid", "invalid config value"), map[string]string{
		"key":    key,
		"reason": reason,
	})
}

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrUnsupportedLoginType(loginType string) *Error {
	return WithMeta(New(KindValidation, "unsupported_login_type", "unsupported login type"), map[string]string{
		"login_type": loginType,
	})
}

// ----------------------
// Auth errors (401)
// ----------------------

// ErrAuthFailed is the only failure a caller of check-auth ever sees for
// OAuth, identity or reconciliation problems. It never carries a cause.
func ErrAuthFailed() *Error {
	return New(KindAuth, "authentication_failed", "authentication failed")
}

func ErrUnauthorized() *Error {
	return New(KindAuth, "unauthorized", "unauthorized")
}

// ----------------------
// Not Found / Conflict
// ----------------------

func ErrAccountNotFound() *Error {
	return New(KindNotFound, "account_not_found", "account not found")
}

func ErrAccountExists() *Error {
	return New(KindConflict, "account_exists", "account already exists")
}

func ErrLockBusy(key string) *Error {
	return WithMeta(New(KindConflict, "lock_busy", "registration already in progress"), map[string]string{
		"key": key,
	})
}

func ErrRateLimited() *Error {
	return New(KindRateLimited, "rate_limited", "too many requests")
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrProvisioningFailed(cause error) *Error {
	return Wrap(KindInfrastructure, "provisioning_failed", "account provisioning failed", cause)
}

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrRedisUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "redis_unavailable", "cache unavailable", cause)
}

func ErrRabbitUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "rabbit_unavailable", "message broker unavailable", cause)
}

func ErrHomeserverUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "homeserver_unavailable", "homeserver unavailable", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}
