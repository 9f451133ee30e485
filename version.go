package ensemble

// DataVersion is the optimistic-concurrency token guarding an entry's
// payload. It is strongly typed so it cannot be passed where a
// ChildVersion or ACLVersion is expected.
type DataVersion int32

// ChildVersion is the optimistic-concurrency token guarding an entry's
// child set.
type ChildVersion int32

// ACLVersion is the optimistic-concurrency token guarding an entry's ACL.
type ACLVersion int32

const (
	// AnyDataVersion skips the version check on a write.
	AnyDataVersion DataVersion = -1
	// InvalidDataVersion never matches any real version.
	InvalidDataVersion DataVersion = -2

	// AnyChildVersion skips the version check on a write.
	AnyChildVersion ChildVersion = -1
	// InvalidChildVersion never matches any real version.
	InvalidChildVersion ChildVersion = -2

	// AnyACLVersion skips the version check on a write.
	AnyACLVersion ACLVersion = -1
	// InvalidACLVersion never matches any real version.
	InvalidACLVersion ACLVersion = -2
)
