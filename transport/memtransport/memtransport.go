// Package memtransport is an in-memory fake ensemble for tests. It
// implements ensemble.SessionTransport entirely within the test
// process, with no sockets, so the core engine's test scenarios can be
// driven deterministically and with
// more than one simulated session against a single shared tree.
package memtransport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/r3e-network/ensemble"
)

// node is one entry in the fake tree.
type node struct {
	data     []byte
	acl      []ensemble.ACLEntry
	stat     ensemble.Stat
	children map[string]struct{}
	// seqCounter tracks the next sequential suffix to hand out to a
	// sequential child create.
	seqCounter int
}

type watchKey struct {
	path ensemble.Path
	kind ensemble.WatchKind
}

// Ensemble is the shared fake server state. Multiple Transport
// sessions can be opened against one Ensemble, modelling several
// application sessions talking to the same real ensemble -- this is
// what the seed scenarios mean by "from a second session".
type Ensemble struct {
	mu       sync.Mutex
	nodes    map[ensemble.Path]*node
	watchers map[watchKey]map[*Transport]struct{}
	txnSeq   int64
	sessSeq  int64

	// FailNextSubmit, if set, causes the next Submit call across any
	// session to fail with connection_loss -- used to exercise
	// transport-error paths in tests.
	FailNextSubmit atomic.Bool
}

// NewEnsemble constructs an empty fake ensemble with just the root.
func NewEnsemble() *Ensemble {
	e := &Ensemble{
		nodes:    make(map[ensemble.Path]*node),
		watchers: make(map[watchKey]map[*Transport]struct{}),
	}
	e.nodes[ensemble.RootPath] = &node{
		children: make(map[string]struct{}),
		acl:      ensemble.OpenUnsafe(),
	}
	return e
}

func (e *Ensemble) nextTxn() int64 {
	e.txnSeq++
	return e.txnSeq
}

// Connect opens a new simulated session against e and returns its
// transport. The transport starts in StateConnecting; call Connect's
// returned Transport.MarkConnected to simulate a completed handshake
// (most tests want this to happen immediately).
func (e *Ensemble) Connect() *Transport {
	e.mu.Lock()
	e.sessSeq++
	sessionID := e.sessSeq
	e.mu.Unlock()

	t := &Transport{
		ensemble:  e,
		sessionID: sessionID,
		inbox:     make(chan ensemble.Reply, 4096),
	}
	return t
}

// Transport is one simulated session's SessionTransport.
type Transport struct {
	ensemble  *Ensemble
	sessionID int64
	inbox     chan ensemble.Reply
	lifecycle atomic.Pointer[ensemble.LifecycleCallback]
	released  atomic.Bool
}

// MarkConnected simulates a completed handshake, firing the lifecycle
// callback with StateConnected.
func (t *Transport) MarkConnected() {
	if cb := t.lifecycle.Load(); cb != nil {
		(*cb)(ensemble.StateConnected)
	}
}

// SimulateDisconnect fires the lifecycle callback with StateConnecting,
// modelling a dropped TCP connection that will retry.
func (t *Transport) SimulateDisconnect() {
	if cb := t.lifecycle.Load(); cb != nil {
		(*cb)(ensemble.StateConnecting)
	}
}

// SimulateExpiry fires the lifecycle callback with StateExpiredSession
// and removes every ephemeral entry this session owned, exactly as a
// real ensemble would on session expiry.
func (t *Transport) SimulateExpiry() {
	t.ensemble.removeEphemeralsFor(t.sessionID)
	if cb := t.lifecycle.Load(); cb != nil {
		(*cb)(ensemble.StateExpiredSession)
	}
}

func (e *Ensemble) removeEphemeralsFor(sessionID int64) {
	e.mu.Lock()
	var fires []pendingFire
	for path, n := range e.nodes {
		if n.stat.EphemeralOwner == sessionID {
			parentPath, _ := path.Parent()
			delete(e.nodes, path)
			if pn, ok := e.nodes[parentPath]; ok {
				delete(pn.children, path.Base())
				pn.stat.ChildVersion++
				pn.stat.ChildModifiedTxn = e.nextTxn()
				pn.stat.ChildrenCount = int32(len(pn.children))
			}
			fires = append(fires, e.collectEraseFires(path, parentPath)...)
		}
	}
	e.mu.Unlock()

	for _, f := range fires {
		f.transport.push(f.reply)
	}
}

func (t *Transport) OnLifecycle(cb ensemble.LifecycleCallback) {
	t.lifecycle.Store(&cb)
}

func (t *Transport) NativeHandle() int { return -1 }

func (t *Transport) Release() error {
	t.released.Store(true)
	return nil
}

func (t *Transport) Receive(ctx context.Context, buf []ensemble.Reply) (int, error) {
	// Block for at least one reply, then drain whatever else is
	// immediately available without blocking further, matching the
	// "pull up to len(buf)" contract.
	select {
	case r := <-t.inbox:
		buf[0] = r
		n := 1
		for n < len(buf) {
			select {
			case r := <-t.inbox:
				buf[n] = r
				n++
			default:
				return n, nil
			}
		}
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (t *Transport) push(r ensemble.Reply) {
	select {
	case t.inbox <- r:
	default:
		// Test transport's buffer is generous; overflow indicates a
		// runaway test loop, not a real backpressure scenario.
		panic(fmt.Sprintf("memtransport: inbox overflow for session %d", t.sessionID))
	}
}

// pendingFire is an unsolicited watch reply waiting to be pushed once
// the ensemble's lock has been released.
type pendingFire struct {
	transport *Transport
	reply     ensemble.Reply
}

// Submit applies op against the shared fake ensemble and immediately
// pushes the resulting reply (and any watch fires it triggers) onto
// the relevant inboxes. There is no network, so there is nothing to
// actually "submit" asynchronously; the synchronous application here
// still respects the SessionTransport contract of not blocking the
// caller on I/O.
func (t *Transport) Submit(ctx context.Context, op ensemble.Op) error {
	if t.released.Load() {
		return fmt.Errorf("memtransport: session %d already released", t.sessionID)
	}
	if t.ensemble.FailNextSubmit.CompareAndSwap(true, false) {
		t.push(ensemble.Reply{Tracker: op.Tracker, Tag: ensemble.ReplyError, Err: ensemble.ConnectionLoss(fmt.Errorf("induced submission failure"))})
		return nil
	}

	switch {
	case op.Get != nil:
		t.submitGet(op.Tracker, op.Get)
	case op.Children != nil:
		t.submitChildren(op.Tracker, op.Children)
	case op.Exists != nil:
		t.submitExists(op.Tracker, op.Exists)
	case op.Create != nil:
		t.submitCreate(op.Tracker, op.Create)
	case op.Set != nil:
		t.submitSet(op.Tracker, op.Set)
	case op.Erase != nil:
		t.submitErase(op.Tracker, op.Erase)
	case op.GetACL != nil:
		t.submitGetACL(op.Tracker, op.GetACL)
	case op.SetACL != nil:
		t.submitSetACL(op.Tracker, op.SetACL)
	case op.Fence != nil:
		t.push(ensemble.Reply{Tracker: op.Tracker, Tag: ensemble.ReplyFenceResult})
	case op.Multi != nil:
		t.submitMulti(op.Tracker, op.Multi)
	default:
		return fmt.Errorf("memtransport: op carries no recognized request")
	}
	return nil
}

func (t *Transport) submitGet(tracker ensemble.Tracker, req *ensemble.GetRequest) {
	e := t.ensemble
	e.mu.Lock()
	n, ok := e.nodes[req.Path]
	if !ok {
		e.mu.Unlock()
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyError, Err: ensemble.NoEntry(req.Path)})
		return
	}
	data := append([]byte(nil), n.data...)
	stat := n.stat
	if req.Watch {
		e.addWatcher(watchKey{path: req.Path, kind: req.Kind}, t)
	}
	e.mu.Unlock()

	t.push(ensemble.Reply{
		Tracker:    tracker,
		Tag:        ensemble.ReplyGetResult,
		GetResult:  &ensemble.GetResult{Data: data, Stat: stat},
		Watch:      req.Watch,
		WatchPath:  req.Path,
		WatchKind:  req.Kind,
	})
}

func (t *Transport) submitChildren(tracker ensemble.Tracker, req *ensemble.ChildrenRequest) {
	e := t.ensemble
	e.mu.Lock()
	n, ok := e.nodes[req.Path]
	if !ok {
		e.mu.Unlock()
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyError, Err: ensemble.NoEntry(req.Path)})
		return
	}
	children := make([]string, 0, len(n.children))
	for name := range n.children {
		children = append(children, name)
	}
	stat := n.stat
	if req.Watch {
		e.addWatcher(watchKey{path: req.Path, kind: ensemble.WatchChildren}, t)
	}
	e.mu.Unlock()

	t.push(ensemble.Reply{
		Tracker:        tracker,
		Tag:            ensemble.ReplyChildrenResult,
		ChildrenResult: &ensemble.ChildrenResult{Children: children, Stat: stat},
		Watch:          req.Watch,
		WatchPath:      req.Path,
		WatchKind:      ensemble.WatchChildren,
	})
}

func (t *Transport) submitExists(tracker ensemble.Tracker, req *ensemble.ExistsRequest) {
	e := t.ensemble
	e.mu.Lock()
	n, present := e.nodes[req.Path]
	var stat ensemble.Stat
	if present {
		stat = n.stat
	}
	if req.Watch {
		e.addWatcher(watchKey{path: req.Path, kind: ensemble.WatchExists}, t)
	}
	e.mu.Unlock()

	t.push(ensemble.Reply{
		Tracker:      tracker,
		Tag:          ensemble.ReplyExistsResult,
		ExistsResult: &ensemble.ExistsResult{Present: present, Stat: stat},
		Watch:        req.Watch,
		WatchPath:    req.Path,
		WatchKind:    ensemble.WatchExists,
	})
}

func (t *Transport) submitCreate(tracker ensemble.Tracker, req *ensemble.CreateRequest) {
	e := t.ensemble
	e.mu.Lock()
	finalPath, cerr := e.create(req.Path, req.Data, req.ACL, req.Mode, t.sessionID)
	var fires []pendingFire
	if cerr == nil {
		parentPath, _ := req.Path.Parent()
		fires = e.collectCreateFires(finalPath, parentPath)
	}
	e.mu.Unlock()

	if cerr != nil {
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyError, Err: cerr})
		return
	}
	t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyCreateResult, CreateResult: &ensemble.CreateResult{Name: finalPath}})
	for _, f := range fires {
		f.transport.push(f.reply)
	}
}

func (t *Transport) submitSet(tracker ensemble.Tracker, req *ensemble.SetRequest) {
	e := t.ensemble
	e.mu.Lock()
	stat, serr := e.set(req.Path, req.Data, req.Version)
	var fires []pendingFire
	if serr == nil {
		ev := ensemble.Event{Kind: ensemble.EventChanged, State: ensemble.StateConnected}
		fires = e.takeFires(watchKey{path: req.Path, kind: ensemble.WatchData}, ev)
		fires = append(fires, e.takeFires(watchKey{path: req.Path, kind: ensemble.WatchExists}, ev)...)
	}
	e.mu.Unlock()

	if serr != nil {
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyError, Err: serr})
		return
	}
	t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplySetResult, SetResult: &ensemble.SetResult{Stat: *stat}})
	for _, f := range fires {
		f.transport.push(f.reply)
	}
}

func (t *Transport) submitErase(tracker ensemble.Tracker, req *ensemble.EraseRequest) {
	e := t.ensemble
	e.mu.Lock()
	parentPath, eerr := e.erase(req.Path, req.Version)
	var fires []pendingFire
	if eerr == nil {
		fires = e.collectEraseFires(req.Path, parentPath)
	}
	e.mu.Unlock()

	if eerr != nil {
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyError, Err: eerr})
		return
	}
	t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyEraseResult})
	for _, f := range fires {
		f.transport.push(f.reply)
	}
}

func (t *Transport) submitGetACL(tracker ensemble.Tracker, req *ensemble.GetACLRequest) {
	e := t.ensemble
	e.mu.Lock()
	n, ok := e.nodes[req.Path]
	if !ok {
		e.mu.Unlock()
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyError, Err: ensemble.NoEntry(req.Path)})
		return
	}
	acl := append([]ensemble.ACLEntry(nil), n.acl...)
	stat := n.stat
	e.mu.Unlock()

	t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyACLResult, ACLResult: &ensemble.GetACLResult{ACL: acl, Stat: stat}})
}

func (t *Transport) submitSetACL(tracker ensemble.Tracker, req *ensemble.SetACLRequest) {
	e := t.ensemble
	e.mu.Lock()
	n, ok := e.nodes[req.Path]
	if !ok {
		e.mu.Unlock()
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyError, Err: ensemble.NoEntry(req.Path)})
		return
	}
	if req.Version != ensemble.AnyACLVersion && req.Version != n.stat.ACLVersion {
		e.mu.Unlock()
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyError, Err: ensemble.VersionMismatch(req.Path)})
		return
	}
	n.acl = append([]ensemble.ACLEntry(nil), req.ACL...)
	n.stat.ACLVersion++
	e.mu.Unlock()

	t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplySetACLResult})
}

// create applies a create to the tree. Caller must hold e.mu.
func (e *Ensemble) create(path ensemble.Path, data []byte, acl []ensemble.ACLEntry, mode ensemble.CreateMode, sessionID int64) (ensemble.Path, *ensemble.Error) {
	parentPath, ok := path.Parent()
	if !ok {
		return "", ensemble.EntryExists(path)
	}
	parent, ok := e.nodes[parentPath]
	if !ok {
		return "", ensemble.NoEntry(parentPath)
	}
	if parent.stat.Ephemeral() {
		return "", ensemble.NoChildrenForEphemerals(parentPath)
	}

	finalPath := path
	name := path.Base()
	if mode.Has(ensemble.ModeSequential) {
		parent.seqCounter++
		name = name + fmt.Sprintf("%010d", parent.seqCounter)
		finalPath = parentPath.Join(name)
	}
	if _, exists := e.nodes[finalPath]; exists {
		return "", ensemble.EntryExists(finalPath)
	}

	txn := e.nextTxn()
	now := time.Now()
	var owner int64
	if mode.Has(ensemble.ModeEphemeral) {
		owner = sessionID
	}
	n := &node{
		data:     append([]byte(nil), data...),
		acl:      append([]ensemble.ACLEntry(nil), acl...),
		children: make(map[string]struct{}),
		stat: ensemble.Stat{
			CreateTxn:      txn,
			ModifiedTxn:    txn,
			CreateTime:     now,
			ModifiedTime:   now,
			EphemeralOwner: owner,
			DataSize:       int32(len(data)),
		},
	}
	e.nodes[finalPath] = n
	parent.children[name] = struct{}{}
	parent.stat.ChildVersion++
	parent.stat.ChildModifiedTxn = txn
	parent.stat.ChildrenCount = int32(len(parent.children))

	return finalPath, nil
}

// set applies a set to the tree. Caller must hold e.mu.
func (e *Ensemble) set(path ensemble.Path, data []byte, version ensemble.DataVersion) (*ensemble.Stat, *ensemble.Error) {
	n, ok := e.nodes[path]
	if !ok {
		return nil, ensemble.NoEntry(path)
	}
	if version != ensemble.AnyDataVersion && version != n.stat.DataVersion {
		return nil, ensemble.VersionMismatch(path)
	}
	n.data = append([]byte(nil), data...)
	n.stat.DataVersion++
	n.stat.ModifiedTxn = e.nextTxn()
	n.stat.ModifiedTime = time.Now()
	n.stat.DataSize = int32(len(data))
	statCopy := n.stat
	return &statCopy, nil
}

// erase applies an erase to the tree and returns the erased entry's
// parent path for watch-firing purposes. Caller must hold e.mu.
func (e *Ensemble) erase(path ensemble.Path, version ensemble.DataVersion) (ensemble.Path, *ensemble.Error) {
	n, ok := e.nodes[path]
	if !ok {
		return "", ensemble.NoEntry(path)
	}
	if len(n.children) > 0 {
		return "", ensemble.NotEmpty(path)
	}
	if version != ensemble.AnyDataVersion && version != n.stat.DataVersion {
		return "", ensemble.VersionMismatch(path)
	}
	parentPath, hasParent := path.Parent()
	if hasParent {
		if parent, ok := e.nodes[parentPath]; ok {
			delete(parent.children, path.Base())
			parent.stat.ChildVersion++
			parent.stat.ChildModifiedTxn = e.nextTxn()
			parent.stat.ChildrenCount = int32(len(parent.children))
		}
	}
	delete(e.nodes, path)
	return parentPath, nil
}

func (e *Ensemble) addWatcher(key watchKey, t *Transport) {
	set, ok := e.watchers[key]
	if !ok {
		set = make(map[*Transport]struct{})
		e.watchers[key] = set
	}
	set[t] = struct{}{}
}

// takeFires removes and returns every watcher registered for key as a
// pendingFire carrying ev, to be pushed once e.mu is released.
func (e *Ensemble) takeFires(key watchKey, ev ensemble.Event) []pendingFire {
	set, ok := e.watchers[key]
	if !ok {
		return nil
	}
	delete(e.watchers, key)
	out := make([]pendingFire, 0, len(set))
	for watcher := range set {
		// Tag is left at its zero value: handleReply checks
		// UnsolicitedEvent before ever switching on Tag for this reply.
		out = append(out, pendingFire{transport: watcher, reply: ensemble.Reply{
			UnsolicitedEvent: &ev,
			EventPath:        key.path,
			EventKind:        key.kind,
		}})
	}
	return out
}

// collectCreateFires gathers the watch fires a successful create
// triggers: an exists-watch on the new path, and a children-watch on
// its parent. Caller must hold e.mu.
func (e *Ensemble) collectCreateFires(createdPath, parentPath ensemble.Path) []pendingFire {
	var out []pendingFire
	existsEv := ensemble.Event{Kind: ensemble.EventCreated, State: ensemble.StateConnected}
	out = append(out, e.takeFires(watchKey{path: createdPath, kind: ensemble.WatchExists}, existsEv)...)
	childEv := ensemble.Event{Kind: ensemble.EventChild, State: ensemble.StateConnected}
	out = append(out, e.takeFires(watchKey{path: parentPath, kind: ensemble.WatchChildren}, childEv)...)
	return out
}

// collectEraseFires gathers the watch fires a successful erase
// triggers: a data-watch, an exists-watch and a children-watch on the
// erased path, and a children-watch on its parent. Caller must hold e.mu.
func (e *Ensemble) collectEraseFires(erasedPath, parentPath ensemble.Path) []pendingFire {
	var out []pendingFire
	ev := ensemble.Event{Kind: ensemble.EventErased, State: ensemble.StateConnected}
	out = append(out, e.takeFires(watchKey{path: erasedPath, kind: ensemble.WatchData}, ev)...)
	out = append(out, e.takeFires(watchKey{path: erasedPath, kind: ensemble.WatchExists}, ev)...)
	out = append(out, e.takeFires(watchKey{path: erasedPath, kind: ensemble.WatchChildren}, ev)...)
	childEv := ensemble.Event{Kind: ensemble.EventChild, State: ensemble.StateConnected}
	out = append(out, e.takeFires(watchKey{path: parentPath, kind: ensemble.WatchChildren}, childEv)...)
	return out
}

func (t *Transport) submitMulti(tracker ensemble.Tracker, m *ensemble.MultiOp) {
	e := t.ensemble
	e.mu.Lock()

	ops := m.Ops()
	statuses := make([]ensemble.PerOpStatus, len(ops))
	overlay := newOverlay(e)
	failed := false

	for i, op := range ops {
		if failed {
			statuses[i] = ensemble.PerOpStatus{OK: false}
			continue
		}
		if err := overlay.apply(op); err != nil {
			statuses[i] = ensemble.PerOpStatus{OK: false, Kind: err.Kind}
			failed = true
			continue
		}
		statuses[i] = ensemble.PerOpStatus{OK: true}
	}

	var fires []pendingFire
	var createdNames []ensemble.Path
	var setStats []*ensemble.Stat
	if !failed {
		createdNames, setStats, fires = overlay.commit(t.sessionID)
	}
	e.mu.Unlock()

	result, txnErr := ensemble.DecodeMultiReply(m, statuses)
	if txnErr != nil {
		t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyMultiResult, Err: txnErr})
		return
	}
	// Patch in the sequential-create names and post-set stats the
	// overlay computed, since the ops as submitted only carry the
	// caller's request and DecodeMultiReply has no access to the tree.
	for i, op := range ops {
		switch op.Kind {
		case ensemble.TxnCreate:
			result.Results[i] = ensemble.CreateResult{Name: createdNames[i]}
		case ensemble.TxnSet:
			if setStats[i] != nil {
				result.Results[i] = ensemble.SetResult{Stat: *setStats[i]}
			}
		}
	}
	t.push(ensemble.Reply{Tracker: tracker, Tag: ensemble.ReplyMultiResult, MultiResult: result})
	for _, f := range fires {
		f.transport.push(f.reply)
	}
}

// overlay validates a transaction's ops against a hypothetical view of
// the tree before any of them are actually applied, so a later op in
// the same batch sees the effects of an earlier one without mutating
// the real tree until the whole batch is known to succeed.
type overlay struct {
	e        *Ensemble
	created  map[ensemble.Path]bool
	erased   map[ensemble.Path]bool
	versions map[ensemble.Path]ensemble.DataVersion
	pending  []ensemble.TxnOp
}

func newOverlay(e *Ensemble) *overlay {
	return &overlay{
		e:        e,
		created:  make(map[ensemble.Path]bool),
		erased:   make(map[ensemble.Path]bool),
		versions: make(map[ensemble.Path]ensemble.DataVersion),
	}
}

func (o *overlay) exists(path ensemble.Path) bool {
	if o.erased[path] {
		return false
	}
	if o.created[path] {
		return true
	}
	_, ok := o.e.nodes[path]
	return ok
}

func (o *overlay) currentVersion(path ensemble.Path) (ensemble.DataVersion, bool) {
	if v, ok := o.versions[path]; ok {
		return v, true
	}
	if n, ok := o.e.nodes[path]; ok {
		return n.stat.DataVersion, true
	}
	return 0, false
}

func (o *overlay) apply(op ensemble.TxnOp) *ensemble.Error {
	switch op.Kind {
	case ensemble.TxnCheck:
		v, ok := o.currentVersion(op.Path)
		if !ok {
			return ensemble.NoEntry(op.Path)
		}
		if op.Version != ensemble.AnyDataVersion && op.Version != v {
			return ensemble.VersionMismatch(op.Path)
		}
	case ensemble.TxnCreate:
		if o.exists(op.Path) {
			return ensemble.EntryExists(op.Path)
		}
		parentPath, ok := op.Path.Parent()
		if !ok || !o.exists(parentPath) {
			return ensemble.NoEntry(parentPath)
		}
		o.created[op.Path] = true
		o.versions[op.Path] = 0
	case ensemble.TxnSet:
		v, ok := o.currentVersion(op.Path)
		if !ok {
			return ensemble.NoEntry(op.Path)
		}
		if op.Version != ensemble.AnyDataVersion && op.Version != v {
			return ensemble.VersionMismatch(op.Path)
		}
		o.versions[op.Path] = v + 1
	case ensemble.TxnErase:
		v, ok := o.currentVersion(op.Path)
		if !ok {
			return ensemble.NoEntry(op.Path)
		}
		if op.Version != ensemble.AnyDataVersion && op.Version != v {
			return ensemble.VersionMismatch(op.Path)
		}
		o.erased[op.Path] = true
	}
	o.pending = append(o.pending, op)
	return nil
}

// commit applies every validated op to the real tree in order and
// collects the watch fires each mutation triggers. It returns the
// final path assigned to each op's slot (meaningful only for creates;
// a create with ModeSequential gets its suffix here, so the name can
// differ from the requested path) and the post-set stat for each
// set op's slot. Caller must hold e.mu.
func (o *overlay) commit(sessionID int64) ([]ensemble.Path, []*ensemble.Stat, []pendingFire) {
	names := make([]ensemble.Path, len(o.pending))
	stats := make([]*ensemble.Stat, len(o.pending))
	var fires []pendingFire
	for i, op := range o.pending {
		switch op.Kind {
		case ensemble.TxnCreate:
			finalPath, err := o.e.create(op.Path, op.Data, op.ACL, op.Mode, sessionID)
			if err == nil {
				names[i] = finalPath
				parentPath, _ := op.Path.Parent()
				fires = append(fires, o.e.collectCreateFires(finalPath, parentPath)...)
			}
		case ensemble.TxnSet:
			if stat, err := o.e.set(op.Path, op.Data, op.Version); err == nil {
				stats[i] = stat
				ev := ensemble.Event{Kind: ensemble.EventChanged, State: ensemble.StateConnected}
				fires = append(fires, o.e.takeFires(watchKey{path: op.Path, kind: ensemble.WatchData}, ev)...)
				fires = append(fires, o.e.takeFires(watchKey{path: op.Path, kind: ensemble.WatchExists}, ev)...)
			}
		case ensemble.TxnErase:
			if parentPath, err := o.e.erase(op.Path, op.Version); err == nil {
				fires = append(fires, o.e.collectEraseFires(op.Path, parentPath)...)
			}
		}
	}
	return names, stats, fires
}
