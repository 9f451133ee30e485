package ensemble

import "fmt"

// ErrorKind is a stable, dispatchable category for every error the
// engine can surface. Callers should switch on Kind(), never on the
// error string.
type ErrorKind string

const (
	// Transport errors. Retryable at the application level -- in
	// particular a write failing with ConnectionLoss may still have
	// been applied.
	KindConnectionLoss   ErrorKind = "connection_loss"
	KindMarshallingError ErrorKind = "marshalling_error"

	// Argument errors. Never retryable without changing inputs.
	KindInvalidArguments   ErrorKind = "invalid_arguments"
	KindAuthenticationFail ErrorKind = "authentication_failed"

	// Ensemble-state errors. Retry after backoff.
	KindNewConfigNoQuorum      ErrorKind = "new_configuration_no_quorum"
	KindReconfigInProgress     ErrorKind = "reconfiguration_in_progress"
	KindReconfigDisabled       ErrorKind = "reconfiguration_disabled"

	// Session errors. Terminal at the session level -- the caller
	// must create a fresh session.
	KindSessionExpired          ErrorKind = "session_expired"
	KindClosed                  ErrorKind = "closed"
	KindNotAuthorized           ErrorKind = "not_authorized"
	KindReadOnlyConnection      ErrorKind = "read_only_connection"
	KindEphemeralOnLocalSession ErrorKind = "ephemeral_on_local_session"

	// Check errors.
	KindNoEntry               ErrorKind = "no_entry"
	KindEntryExists           ErrorKind = "entry_exists"
	KindNotEmpty              ErrorKind = "not_empty"
	KindVersionMismatch       ErrorKind = "version_mismatch"
	KindNoChildrenForEphemera ErrorKind = "no_children_for_ephemerals"
	KindTransactionFailed     ErrorKind = "transaction_failed"

	// KindOK is never surfaced as an error; it exists only so wire
	// decoders have a sentinel "no error" value to compare against.
	KindOK ErrorKind = "ok"
)

// Retryable reports whether an application may reasonably resubmit an
// operation that failed with this kind, possibly after a backoff.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindConnectionLoss, KindMarshallingError,
		KindNewConfigNoQuorum, KindReconfigInProgress, KindReconfigDisabled:
		return true
	default:
		return false
	}
}

// Error is the concrete error type returned by every Engine operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error

	// FailedIndex is meaningful only for KindTransactionFailed: the
	// 0-based index of the first operation in the batch whose status
	// indicated a true failure.
	FailedIndex int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// newError builds an *Error of the given kind.
func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind of err if it is (or wraps) an *Error,
// or the empty string otherwise.
func KindOf(err error) ErrorKind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return ""
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Constructors for the kinds the client raises itself, mirroring
// infrastructure/errors' style. Not every kind has one, and InvalidACL
// shares KindInvalidArguments.

func ConnectionLoss(cause error) *Error {
	return wrapError(KindConnectionLoss, "connection to ensemble lost", cause)
}

func MarshallingError(cause error) *Error {
	return wrapError(KindMarshallingError, "failed to encode or decode a wire frame", cause)
}

func InvalidArguments(reason string) *Error {
	return newError(KindInvalidArguments, reason)
}

func InvalidACL(reason string) *Error {
	return newError(KindInvalidArguments, "invalid acl: "+reason)
}

func AuthenticationFailed(reason string) *Error {
	return newError(KindAuthenticationFail, reason)
}

func SessionExpired() *Error {
	return newError(KindSessionExpired, "session expired")
}

func Closed() *Error {
	return newError(KindClosed, "engine is closed")
}

func NotAuthorized(path Path) *Error {
	return newError(KindNotAuthorized, "not authorized: "+string(path))
}

func ReadOnlyConnection() *Error {
	return newError(KindReadOnlyConnection, "session is read-only")
}

func EphemeralOnLocalSession() *Error {
	return newError(KindEphemeralOnLocalSession, "ephemeral entries require a non-local session")
}

func NoEntry(path Path) *Error {
	return newError(KindNoEntry, "no entry at "+string(path))
}

func EntryExists(path Path) *Error {
	return newError(KindEntryExists, "entry already exists at "+string(path))
}

func NotEmpty(path Path) *Error {
	return newError(KindNotEmpty, "entry has children: "+string(path))
}

func VersionMismatch(path Path) *Error {
	return newError(KindVersionMismatch, "version mismatch at "+string(path))
}

func NoChildrenForEphemerals(path Path) *Error {
	return newError(KindNoChildrenForEphemera, "ephemeral entries cannot have children: "+string(path))
}

// TransactionFailed builds the aggregated multi-op failure: cause is
// the underlying per-op error kind, index is the 0-based position of
// the first failing operation in the batch.
func TransactionFailed(cause error, index int) *Error {
	return &Error{Kind: KindTransactionFailed, Message: "transaction failed", Cause: cause, FailedIndex: index}
}
