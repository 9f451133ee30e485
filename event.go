package ensemble

// EventKind classifies a watch notification.
type EventKind uint8

const (
	EventCreated EventKind = iota
	EventErased
	EventChanged
	EventChild
	EventSession
	EventNotWatching
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventErased:
		return "erased"
	case EventChanged:
		return "changed"
	case EventChild:
		return "child"
	case EventSession:
		return "session"
	case EventNotWatching:
		return "not_watching"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to a watch handle. It intentionally carries no
// path: the subscriber already knows which path it watched, and
// threading the path through would force an allocation on the
// dispatch goroutine for every event.
type Event struct {
	Kind  EventKind
	State SessionState
}

// WatchKind selects which class of change a watch reacts to.
type WatchKind uint8

const (
	// WatchData fires on changed/erased of the watched entry, or
	// session teardown.
	WatchData WatchKind = iota
	// WatchExists fires on created/changed/erased of the watched
	// path, or session teardown.
	WatchExists
	// WatchChildren fires on direct child add/remove, erasure of the
	// watched parent, or session teardown.
	WatchChildren
)

func (k WatchKind) String() string {
	switch k {
	case WatchData:
		return "data"
	case WatchExists:
		return "exists"
	case WatchChildren:
		return "children"
	default:
		return "unknown"
	}
}
