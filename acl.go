package ensemble

// Permission is a bitset over the operations an ACL entry grants.
type Permission uint8

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermCreate
	PermErase
	PermAdmin

	// PermNone grants nothing.
	PermNone Permission = 0
	// PermAll grants every permission. Its value is the literal
	// union of the bits above, not an all-ones native integer --
	// see Complement.
	PermAll Permission = PermRead | PermWrite | PermCreate | PermErase | PermAdmin
)

// Has reports whether p grants every bit set in want.
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// Complement returns the permissions not granted by p, computed
// against the PermAll mask rather than a native bitwise complement --
// preserves the original library's guarantee that
// PermNone.Complement() == PermAll even if future permission bits are
// added without updating every call site.
func (p Permission) Complement() Permission {
	return PermAll &^ p
}

func (p Permission) String() string {
	if p == PermNone {
		return "none"
	}
	flags := []struct {
		bit  Permission
		name string
	}{
		{PermRead, "r"}, {PermWrite, "w"}, {PermCreate, "c"}, {PermErase, "d"}, {PermAdmin, "a"},
	}
	out := make([]byte, 0, 5)
	for _, f := range flags {
		if p.Has(f.bit) {
			out = append(out, f.name...)
		}
	}
	return string(out)
}

// ACLEntry is one (scheme, id, permission-set) triple in an entry's ACL.
type ACLEntry struct {
	Scheme string
	ID     string
	Perms  Permission
}

// CreatorAll grants every permission to the creator's own auth scheme
// and id. It is only meaningful relative to an authenticated session;
// the transport fills in scheme/id at submission time.
func CreatorAll() []ACLEntry {
	return []ACLEntry{{Scheme: "auth", ID: "", Perms: PermAll}}
}

// OpenUnsafe grants every permission to anyone.
func OpenUnsafe() []ACLEntry {
	return []ACLEntry{{Scheme: "world", ID: "anyone", Perms: PermAll}}
}

// ReadUnsafe grants read-only access to anyone, in addition to
// whatever else the caller appends.
func ReadUnsafe() []ACLEntry {
	return []ACLEntry{{Scheme: "world", ID: "anyone", Perms: PermRead}}
}

// CreateMode is a bitset of creation flags; the zero value means
// "normal" (no ephemeral, sequential or container flag).
type CreateMode uint8

const (
	ModeEphemeral CreateMode = 1 << iota
	ModeSequential
	ModeContainer

	ModeNormal CreateMode = 0
)

// Validate rejects invalid flag combinations. Ephemeral and container
// are mutually exclusive: the server refuses an ephemeral container.
func (m CreateMode) Validate() error {
	if m&ModeEphemeral != 0 && m&ModeContainer != 0 {
		return InvalidArguments("create mode: ephemeral and container are mutually exclusive")
	}
	return nil
}

func (m CreateMode) Has(flag CreateMode) bool { return m&flag != 0 }
