package ensemble

import (
	"context"
	"sync"
	"time"

	"github.com/r3e-network/ensemble/internal/backoff"
)

// Engine is the single owner of a live session with an ensemble. It
// translates structured requests into wire operations against a
// SessionTransport, routes replies back to their waiting completions,
// drives the session state machine, and dispatches one-shot watch
// events. All public methods are non-blocking: each returns a pending
// Completion immediately; waiting is the caller's choice.
type Engine struct {
	transport SessionTransport
	opts      Options

	completions *completionRegistry
	watches     *watchRegistry
	state       *sessionStateMachine
	reconnect   *backoff.Reconnector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	lastSubmit sync.Mutex // guards lastSubmitAt
	lastSubmitAt time.Time
}

// NewEngine constructs an Engine on top of transport and starts its
// background dispatch goroutine, plus a keep-alive goroutine when
// opts.KeepAliveInterval is positive. Requests are submitted to the
// transport on the caller's goroutine. The returned Engine
// begins life in StateConnecting; use Subscribe or State to observe
// when it reaches StateConnected.
func NewEngine(transport SessionTransport, opts Options) *Engine {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		transport:   transport,
		opts:        opts,
		completions: newCompletionRegistry(),
		watches:     newWatchRegistry(),
		state:       newSessionStateMachine(),
		reconnect:   backoff.New(opts.Backoff),
		ctx:         ctx,
		cancel:      cancel,
	}

	transport.OnLifecycle(e.onLifecycle)

	e.wg.Add(1)
	go e.dispatchLoop()

	if opts.KeepAliveInterval > 0 {
		e.wg.Add(1)
		go e.keepAliveLoop(opts.KeepAliveInterval)
	}

	return e
}

// State returns the session's current state.
func (e *Engine) State() SessionState { return e.state.Current() }

// Subscribe registers a one-shot channel for the next session state
// transition. Chain Subscribe -> receive -> Subscribe to follow the
// machine continuously.
func (e *Engine) Subscribe() <-chan SessionState { return e.state.Subscribe() }

// onLifecycle is the transport's callback for state changes it
// observes independently of a specific request (disconnects,
// reconnects, auth failures, expiry).
//
// Every notification of a (re)connect attempt advances the reconnect
// schedule; once a continuous connecting episode has run longer than
// the configured escalation window, the session is driven to
// StateExpiredSession instead of being left connecting forever. A
// successful reach of Connected or ReadOnly resets the schedule.
func (e *Engine) onLifecycle(next SessionState) {
	prev := e.state.Current()

	switch next {
	case StateConnecting:
		e.reconnect.NextDelay()
		if e.reconnect.Exhausted() {
			next = StateExpiredSession
		}
	case StateConnected, StateReadOnly:
		e.reconnect.Reset()
	}

	if err := e.state.Transition(next); err != nil {
		e.opts.Logger.Warnf("ensemble: ignoring illegal lifecycle transition %s -> %s: %v", prev, next, err)
		return
	}
	e.opts.Metrics.StateTransition(prev, next)
	if next.Terminal() {
		e.teardown(next)
	}
}

// teardown runs the shutdown sequence once a terminal state has been
// reached: drain completions, drain watches, release the transport.
func (e *Engine) teardown(state SessionState) {
	var terminalErr error
	switch state {
	case StateClosed:
		terminalErr = Closed()
	case StateExpiredSession:
		terminalErr = SessionExpired()
	case StateAuthFailed:
		terminalErr = AuthenticationFailed("session authentication failed")
	default:
		terminalErr = Closed()
	}

	n := e.completions.drain(terminalErr)
	e.opts.Metrics.CompletionsDrained(n)

	w := e.watches.drainAll(state)
	e.opts.Metrics.WatchesDrained(w)

	e.cancel()
}

// Close tears the session down explicitly. It is idempotent: a second
// call returns the same result as the first.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		prev := e.state.Current()
		if err := e.state.Transition(StateClosed); err == nil {
			e.opts.Metrics.StateTransition(prev, StateClosed)
			e.teardown(StateClosed)
		}
		e.closeErr = e.transport.Release()
		e.wg.Wait()
	})
	return e.closeErr
}

func (e *Engine) submit(op Op, opKind string) error {
	if e.state.Current().Terminal() {
		return Closed()
	}
	if e.opts.SubmissionLimiter != nil {
		if err := e.opts.SubmissionLimiter.Wait(e.ctx); err != nil {
			return ConnectionLoss(err)
		}
	}
	e.lastSubmit.Lock()
	e.lastSubmitAt = time.Now()
	e.lastSubmit.Unlock()

	if err := e.transport.Submit(e.ctx, op); err != nil {
		return ConnectionLoss(err)
	}
	e.opts.Metrics.RequestSubmitted(opKind)
	return nil
}

func newCompletion[T any](ch chan completionOutcome) *Completion[T] {
	return &Completion[T]{ch: ch}
}

func resolvedCompletion[T any](err error) *Completion[T] {
	ch := make(chan completionOutcome, 1)
	ch <- completionOutcome{err: err}
	close(ch)
	return &Completion[T]{ch: ch}
}

// Get fetches the payload and stat of the entry at path.
func (e *Engine) Get(path Path) *Completion[GetResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[GetResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Get: &GetRequest{Path: path}}, "get"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[GetResult](ch)
}

// WatchData fetches the entry at path and installs a one-shot
// data-watch that fires on the next changed/erased/session event.
func (e *Engine) WatchData(path Path) *Completion[WatchDataResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[WatchDataResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Get: &GetRequest{Path: path, Watch: true, Kind: WatchData}}, "watch_data"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[WatchDataResult](ch)
}

// Children lists the direct children of path.
func (e *Engine) Children(path Path) *Completion[ChildrenResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[ChildrenResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Children: &ChildrenRequest{Path: path}}, "children"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[ChildrenResult](ch)
}

// WatchChildren lists the direct children of path and installs a
// one-shot children-watch.
func (e *Engine) WatchChildren(path Path) *Completion[WatchChildrenResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[WatchChildrenResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Children: &ChildrenRequest{Path: path, Watch: true}}, "watch_children"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[WatchChildrenResult](ch)
}

// Exists reports whether path has an entry, without treating absence
// as an error.
func (e *Engine) Exists(path Path) *Completion[ExistsResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[ExistsResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Exists: &ExistsRequest{Path: path}}, "exists"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[ExistsResult](ch)
}

// WatchExists is Exists plus an exists-watch, which additionally fires
// on a subsequent create at path.
func (e *Engine) WatchExists(path Path) *Completion[WatchExistsResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[WatchExistsResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Exists: &ExistsRequest{Path: path, Watch: true}}, "watch_exists"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[WatchExistsResult](ch)
}

// Create makes a new entry at path. If mode includes ModeSequential,
// the server appends a monotonic numeric suffix and the returned name
// reflects it.
func (e *Engine) Create(path Path, data []byte, acl []ACLEntry, mode CreateMode) *Completion[CreateResult] {
	if err := validateCreate(path, data, acl, mode); err != nil {
		return resolvedCompletion[CreateResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Create: &CreateRequest{Path: path, Data: data, ACL: acl, Mode: mode}}, "create"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[CreateResult](ch)
}

func validateCreate(path Path, data []byte, acl []ACLEntry, mode CreateMode) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if len(data) > MaxDataSize {
		return InvalidArguments("payload exceeds maximum size of 1 MiB")
	}
	if len(acl) == 0 {
		return InvalidACL("acl must not be empty")
	}
	if err := mode.Validate(); err != nil {
		return err
	}
	return nil
}

// Set overwrites the payload at path. version must be AnyDataVersion
// or the entry's current DataVersion.
func (e *Engine) Set(path Path, data []byte, version DataVersion) *Completion[SetResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[SetResult](err)
	}
	if len(data) > MaxDataSize {
		return resolvedCompletion[SetResult](InvalidArguments("payload exceeds maximum size of 1 MiB"))
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Set: &SetRequest{Path: path, Data: data, Version: version}}, "set"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[SetResult](ch)
}

// Erase deletes the entry at path, which must have no children.
func (e *Engine) Erase(path Path, version DataVersion) *Completion[EraseResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[EraseResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Erase: &EraseRequest{Path: path, Version: version}}, "erase"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[EraseResult](ch)
}

// GetACL fetches the ACL and stat of the entry at path.
func (e *Engine) GetACL(path Path) *Completion[GetACLResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[GetACLResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), GetACL: &GetACLRequest{Path: path}}, "get_acl"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[GetACLResult](ch)
}

// SetACL replaces the ACL at path. version must be AnyACLVersion or
// the entry's current ACLVersion.
func (e *Engine) SetACL(path Path, acl []ACLEntry, version ACLVersion) *Completion[SetACLResult] {
	if err := path.Validate(); err != nil {
		return resolvedCompletion[SetACLResult](err)
	}
	if len(acl) == 0 {
		return resolvedCompletion[SetACLResult](InvalidACL("acl must not be empty"))
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), SetACL: &SetACLRequest{Path: path, ACL: acl, Version: version}}, "set_acl"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[SetACLResult](ch)
}

// Fence is a barrier: every operation submitted after Fence returns
// from the client side observes the ensemble as of at least the time
// Fence was issued. It is fire-and-forget for ordering -- callers
// typically do not wait on the returned completion, but do wait on
// subsequent reads, which inherit the fence.
func (e *Engine) Fence() *Completion[struct{}] {
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Fence: &FenceRequest{}}, "fence"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[struct{}](ch)
}

func (e *Engine) keepAliveLoop(interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.lastSubmit.Lock()
			idle := time.Since(e.lastSubmitAt)
			e.lastSubmit.Unlock()
			if idle >= interval {
				e.Fence()
			}
		}
	}
}
