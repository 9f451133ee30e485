package ensemble

import "sync"

// SessionState is one of the states a session can occupy. Closed,
// ExpiredSession and AuthFailed are terminal; the machine never
// returns from them. ReadOnly is a variant of Connected indicating
// that writes will be refused.
type SessionState uint8

const (
	StateConnecting SessionState = iota
	StateConnected
	StateReadOnly
	StateExpiredSession
	StateAuthFailed
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReadOnly:
		return "read_only"
	case StateExpiredSession:
		return "expired_session"
	case StateAuthFailed:
		return "authentication_failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a terminal state: no further
// transition is ever valid once it is reached.
func (s SessionState) Terminal() bool {
	switch s {
	case StateExpiredSession, StateAuthFailed, StateClosed:
		return true
	default:
		return false
	}
}

// allowedFrom describes the transition table from section 4.4:
// intermediate transport states (TCP-up-but-unauthenticated,
// reconnecting mid-reconfiguration) are collapsed into Connecting, so
// the only transitions a caller ever observes are the ones below.
var allowedFrom = map[SessionState]map[SessionState]bool{
	StateConnecting: {
		StateConnected:      true,
		StateReadOnly:       true,
		StateAuthFailed:     true,
		StateExpiredSession: true,
		StateClosed:         true,
	},
	StateConnected: {
		StateConnecting:     true,
		StateClosed:         true,
		StateExpiredSession: true,
	},
	StateReadOnly: {
		StateConnecting:     true,
		StateClosed:         true,
		StateExpiredSession: true,
	},
}

// sessionStateMachine drives the session's externally visible state
// and fans out one-shot state-change subscriptions. A subscriber that
// wants to keep following the machine re-registers after each receive.
type sessionStateMachine struct {
	mu      sync.Mutex
	current SessionState
	subs    []chan SessionState
}

func newSessionStateMachine() *sessionStateMachine {
	return &sessionStateMachine{current: StateConnecting}
}

// Current returns the machine's present state.
func (m *sessionStateMachine) Current() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers a one-shot channel that receives the next state
// transition. The channel is buffered and closed after delivering at
// most one value.
func (m *sessionStateMachine) Subscribe() <-chan SessionState {
	ch := make(chan SessionState, 1)
	m.mu.Lock()
	if m.current.Terminal() {
		// Already terminal: nothing will ever transition again, so
		// hand back the current state immediately rather than
		// registering a subscriber that would wait forever.
		m.mu.Unlock()
		ch <- m.current
		close(ch)
		return ch
	}
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Transition moves the machine to next. It returns an error if the
// machine is already in a terminal state or if the transition is not
// in the allowed table; terminal states never transition (invariant
// 4 in the data model).
func (m *sessionStateMachine) Transition(next SessionState) error {
	m.mu.Lock()
	if m.current.Terminal() {
		m.mu.Unlock()
		return newError(KindClosed, "session state machine is already terminal: "+m.current.String())
	}
	if !allowedFrom[m.current][next] {
		m.mu.Unlock()
		return InvalidArguments("illegal session transition " + m.current.String() + " -> " + next.String())
	}
	m.current = next
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	// Subscriber delivery happens after the lock is released, to
	// avoid a subscriber's continuation re-entering the machine while
	// we still hold it.
	for _, ch := range subs {
		ch <- next
		close(ch)
	}
	return nil
}
