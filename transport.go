package ensemble

import "context"

// Tracker is an opaque handle a SessionTransport hands back with each
// submitted operation's eventual reply, so the engine can correlate
// replies without the transport knowing anything about completions or
// watches.
type Tracker uint64

// Op is the set of operations a transport can be asked to submit. The
// engine builds one of these per public method call; exactly one of
// the typed fields is non-nil.
type Op struct {
	Tracker  Tracker
	Get      *GetRequest
	Children *ChildrenRequest
	Exists   *ExistsRequest
	Create   *CreateRequest
	Set      *SetRequest
	Erase    *EraseRequest
	GetACL   *GetACLRequest
	SetACL   *SetACLRequest
	Fence    *FenceRequest
	Multi    *MultiOp
}

// ReplyTag classifies a notification pulled from Receive.
type ReplyTag uint8

const (
	ReplySessionEvent ReplyTag = iota
	ReplyError
	ReplyGetResult
	ReplyChildrenResult
	ReplyExistsResult
	ReplyACLResult
	ReplyCreateResult
	ReplySetResult
	ReplyEraseResult
	ReplySetACLResult
	ReplyFenceResult
	ReplyMultiResult
)

// Reply is one notification pulled from a transport's Receive call.
// Exactly one of the typed fields is meaningful, selected by Tag.
type Reply struct {
	Tracker Tracker
	Tag     ReplyTag

	SessionState SessionState
	Err          *Error

	GetResult      *GetResult
	ChildrenResult *ChildrenResult
	ExistsResult   *ExistsResult
	ACLResult      *GetACLResult
	CreateResult   *CreateResult
	SetResult      *SetResult
	MultiResult    *MultiResult

	// WatchPath/WatchKind are set alongside a successful watch-bearing
	// read's reply so the engine knows what to arm; they are zero
	// otherwise.
	WatchPath Path
	WatchKind WatchKind
	Watch     bool

	// UnsolicitedEvent is set when this Reply is an unprompted watch
	// notification from the ensemble rather than an answer to a
	// specific submission (Tracker is zero in that case).
	UnsolicitedEvent *Event
	EventPath        Path
	EventKind        WatchKind
}

// LifecycleCallback is invoked by a transport whenever the underlying
// connection observes a state change the engine should reflect in its
// session state machine (e.g. a disconnect, a reconnection, an auth
// rejection, or a server-declared expiry).
type LifecycleCallback func(SessionState)

// SessionTransport is the pluggable collaborator the engine speaks to
// instead of a wire protocol directly. It must be safe to call Submit
// from any number of goroutines; Receive is called from a single
// dedicated goroutine owned by the engine.
type SessionTransport interface {
	// Submit enqueues op for delivery to the ensemble. It must not
	// block on network I/O; ordering of ops submitted from a single
	// goroutine must be preserved on the wire.
	Submit(ctx context.Context, op Op) error

	// Receive pulls up to len(buf) completion notifications into buf,
	// blocking until at least one is available or ctx is done. It
	// returns the number of notifications written into buf.
	Receive(ctx context.Context, buf []Reply) (int, error)

	// OnLifecycle registers cb to be invoked on every session state
	// change the transport observes independently of a specific
	// Submit/Receive pair (disconnects, reconnects, expiry, auth
	// failure). Only one callback is retained; registering again
	// replaces it.
	OnLifecycle(cb LifecycleCallback)

	// NativeHandle returns an OS-level waitable usable for external
	// event-loop integration, or -1 if the transport has none (as the
	// in-memory test transport does).
	NativeHandle() int

	// Release tears down the transport's resources. Idempotent.
	Release() error
}
