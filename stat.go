package ensemble

import "time"

// Stat is the metadata bundle returned alongside most reads and writes.
type Stat struct {
	// CreateTxn, ModifiedTxn and ChildModifiedTxn are monotone
	// ensemble-wide transaction ids marking, respectively, creation,
	// last data change and last child-set change.
	CreateTxn        int64
	ModifiedTxn      int64
	ChildModifiedTxn int64

	// CreateTime and ModifiedTime are wall-clock stamps from the
	// leader. They are informational only; never use them for
	// ordering decisions, they are not monotonic.
	CreateTime   time.Time
	ModifiedTime time.Time

	// DataVersion, ChildVersion and ACLVersion are independent
	// monotone counters used as optimistic-concurrency tokens.
	DataVersion  DataVersion
	ChildVersion ChildVersion
	ACLVersion   ACLVersion

	// EphemeralOwner is nonzero iff the entry is ephemeral; the value
	// identifies the owning session.
	EphemeralOwner int64

	// DataSize and ChildrenCount are derived sizes.
	DataSize      int32
	ChildrenCount int32
}

// Ephemeral reports whether the entry described by s is ephemeral.
func (s Stat) Ephemeral() bool {
	return s.EphemeralOwner != 0
}

// Entry is an immutable snapshot of one node in the namespace.
type Entry struct {
	Path Path
	Data []byte
	ACL  []ACLEntry
	Stat Stat
}

// MaxDataSize is the wire-format cap on an entry's payload. Payloads
// exceeding this are rejected locally, without a round trip.
const MaxDataSize = 1 << 20 // 1 MiB
