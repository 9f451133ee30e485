package ensemble

// These are the tagged request variants carried inside an Op. They are
// constructed internally by Engine's public methods and are part of
// the SessionTransport SPI: a transport implementation inspects them
// to decide what to put on the wire.

// GetRequest asks for an entry's payload and stat, optionally
// installing a watch once the read succeeds.
type GetRequest struct {
	Path  Path
	Watch bool
	Kind  WatchKind
}

// ChildrenRequest asks for an entry's direct children and stat,
// optionally installing a children-watch.
type ChildrenRequest struct {
	Path  Path
	Watch bool
}

// ExistsRequest asks whether an entry exists, optionally installing an
// exists-watch regardless of the outcome.
type ExistsRequest struct {
	Path  Path
	Watch bool
}

// CreateRequest asks for a new entry to be created.
type CreateRequest struct {
	Path Path
	Data []byte
	ACL  []ACLEntry
	Mode CreateMode
}

// SetRequest asks for an entry's payload to be overwritten.
type SetRequest struct {
	Path    Path
	Data    []byte
	Version DataVersion
}

// EraseRequest asks for an entry to be deleted.
type EraseRequest struct {
	Path    Path
	Version DataVersion
}

// GetACLRequest asks for an entry's ACL and stat.
type GetACLRequest struct {
	Path Path
}

// SetACLRequest asks for an entry's ACL to be replaced.
type SetACLRequest struct {
	Path    Path
	ACL     []ACLEntry
	Version ACLVersion
}

// FenceRequest asks the ensemble for a barrier: every request
// submitted afterward observes state as of at least this point.
type FenceRequest struct{}

// TxnOpKind classifies one operation inside a MultiOp batch.
type TxnOpKind uint8

const (
	TxnCheck TxnOpKind = iota
	TxnCreate
	TxnSet
	TxnErase
)

func (k TxnOpKind) String() string {
	switch k {
	case TxnCheck:
		return "check"
	case TxnCreate:
		return "create"
	case TxnSet:
		return "set"
	case TxnErase:
		return "erase"
	default:
		return "unknown"
	}
}

// TxnOp is one primitive operation inside a MultiOp batch, in the
// shape a transport needs to encode it on the wire.
type TxnOp struct {
	Kind       TxnOpKind
	Path       Path
	Data       []byte
	ACL        []ACLEntry
	Mode       CreateMode
	Version    DataVersion
	ACLVersion ACLVersion
}
