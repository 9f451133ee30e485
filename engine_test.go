package ensemble_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/ensemble"
	"github.com/r3e-network/ensemble/internal/backoff"
	"github.com/r3e-network/ensemble/transport/memtransport"
)

func newConnectedEngine(t *testing.T) (*ensemble.Engine, *memtransport.Ensemble) {
	t.Helper()
	ens := memtransport.NewEnsemble()
	tr := ens.Connect()
	e := ensemble.NewEngine(tr, ensemble.Options{})
	t.Cleanup(func() { e.Close() })
	tr.MarkConnected()
	return e, ens
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// create-set-get cycle: a created entry reads back the bytes just set.
func TestCreateSetGetCycle(t *testing.T) {
	e, _ := newConnectedEngine(t)
	c := ctx(t)

	created, err := e.Create("/widget", []byte("v1"), ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)
	assert.Equal(t, ensemble.Path("/widget"), created.Name)

	got, err := e.Get("/widget").Wait(c)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got.Data)
	assert.Equal(t, ensemble.DataVersion(0), got.Stat.DataVersion)

	set, err := e.Set("/widget", []byte("v2"), got.Stat.DataVersion).Wait(c)
	require.NoError(t, err)
	assert.Equal(t, ensemble.DataVersion(1), set.Stat.DataVersion)

	got, err = e.Get("/widget").Wait(c)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got.Data)
}

// version mismatch: a Set against a stale version is rejected and
// leaves the entry untouched.
func TestSetVersionMismatch(t *testing.T) {
	e, _ := newConnectedEngine(t)
	c := ctx(t)

	_, err := e.Create("/widget", []byte("v1"), ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	_, err = e.Set("/widget", []byte("v2"), 7).Wait(c)
	require.Error(t, err)
	var ensErr *ensemble.Error
	require.ErrorAs(t, err, &ensErr)
	assert.Equal(t, ensemble.KindVersionMismatch, ensErr.Kind)

	got, err := e.Get("/widget").Wait(c)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got.Data)
}

// data watch fires on change: a handle from WatchData resolves once a
// second session changes the entry's data.
func TestDataWatchFiresOnChange(t *testing.T) {
	e, ens := newConnectedEngine(t)
	c := ctx(t)

	_, err := e.Create("/cfg", []byte("a"), ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	watched, err := e.WatchData("/cfg").Wait(c)
	require.NoError(t, err)
	require.NotNil(t, watched.Watch)

	other := ens.Connect()
	other.MarkConnected()
	otherEngine := ensemble.NewEngine(other, ensemble.Options{})
	defer otherEngine.Close()

	_, err = otherEngine.Set("/cfg", []byte("b"), 0).Wait(c)
	require.NoError(t, err)

	ev, err := watched.Watch.Wait(c)
	require.NoError(t, err)
	assert.Equal(t, ensemble.EventChanged, ev.Kind)
}

// children watch fires on creation: a handle from WatchChildren
// resolves once a child is created under the watched parent.
func TestChildrenWatchFiresOnCreate(t *testing.T) {
	e, _ := newConnectedEngine(t)
	c := ctx(t)

	_, err := e.Create("/parent", nil, ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	watched, err := e.WatchChildren("/parent").Wait(c)
	require.NoError(t, err)
	require.NotNil(t, watched.Watch)
	assert.Empty(t, watched.Children)

	_, err = e.Create("/parent/child", nil, ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	ev, err := watched.Watch.Wait(c)
	require.NoError(t, err)
	assert.Equal(t, ensemble.EventChild, ev.Kind)
}

// multi-op atomicity: a batch with a failing check at index 2 leaves
// every earlier op's target state untouched.
func TestMultiOpAtomicity(t *testing.T) {
	e, _ := newConnectedEngine(t)
	c := ctx(t)

	_, err := e.Create("/a", []byte("orig-a"), ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)
	_, err = e.Create("/b", []byte("orig-b"), ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	batch := ensemble.NewMultiOp().
		Set("/a", []byte("new-a"), 0).
		Set("/b", []byte("new-b"), 0).
		Check("/does-not-exist", 0)

	_, err = e.Commit(batch).Wait(c)
	require.Error(t, err)
	var ensErr *ensemble.Error
	require.ErrorAs(t, err, &ensErr)
	assert.Equal(t, ensemble.KindTransactionFailed, ensErr.Kind)
	assert.Equal(t, 2, ensErr.FailedIndex)

	a, err := e.Get("/a").Wait(c)
	require.NoError(t, err)
	assert.Equal(t, []byte("orig-a"), a.Data)

	b, err := e.Get("/b").Wait(c)
	require.NoError(t, err)
	assert.Equal(t, []byte("orig-b"), b.Data)
}

// a successful multi-op set yields its real post-set stat, not a zero
// value, matching what a standalone Set returns.
func TestMultiOpSetResultCarriesStat(t *testing.T) {
	e, _ := newConnectedEngine(t)
	c := ctx(t)

	_, err := e.Create("/a", []byte("orig-a"), ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	batch := ensemble.NewMultiOp().Set("/a", []byte("new-a"), 0)
	res, err := e.Commit(batch).Wait(c)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)

	setResult, ok := res.Results[0].(ensemble.SetResult)
	require.True(t, ok)
	assert.Equal(t, ensemble.DataVersion(1), setResult.Stat.DataVersion)

	got, err := e.Get("/a").Wait(c)
	require.NoError(t, err)
	assert.Equal(t, setResult.Stat, got.Stat)
}

// an exists-watch installed on a path also fires when that path is
// later set, not only on create.
func TestExistsWatchFiresOnSet(t *testing.T) {
	e, _ := newConnectedEngine(t)
	c := ctx(t)

	_, err := e.Create("/a", []byte("orig"), ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	watched, err := e.WatchExists("/a").Wait(c)
	require.NoError(t, err)
	require.NotNil(t, watched.Watch)

	_, err = e.Set("/a", []byte("new"), 0).Wait(c)
	require.NoError(t, err)

	ev, err := watched.Watch.Wait(c)
	require.NoError(t, err)
	assert.Equal(t, ensemble.EventChanged, ev.Kind)
}

// session expiry drains watches: every outstanding watch resolves with
// a synthetic session event once the transport reports expiry.
func TestSessionExpiryDrainsWatches(t *testing.T) {
	c := ctx(t)

	ens := memtransport.NewEnsemble()
	tr := ens.Connect()
	e := ensemble.NewEngine(tr, ensemble.Options{})
	defer e.Close()
	tr.MarkConnected()

	_, err := e.Create("/x", []byte("v"), ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	watched, err := e.WatchData("/x").Wait(c)
	require.NoError(t, err)

	tr.SimulateExpiry()

	ev, err := watched.Watch.Wait(c)
	require.NoError(t, err)
	assert.Equal(t, ensemble.EventSession, ev.Kind)
	assert.Equal(t, ensemble.StateExpiredSession, ev.State)
}

// a connecting episode that outlives the escalation window is treated
// as an expired session rather than left connecting indefinitely.
func TestReconnectEscalatesToExpiredSessionAfterTimeout(t *testing.T) {
	c := ctx(t)

	ens := memtransport.NewEnsemble()
	tr := ens.Connect()
	e := ensemble.NewEngine(tr, ensemble.Options{
		Backoff: backoff.Config{
			InitialDelay:  time.Millisecond,
			MaxDelay:      time.Millisecond,
			Multiplier:    2,
			EscalateAfter: 5 * time.Millisecond,
		},
	})
	defer e.Close()

	sub := e.Subscribe()

	tr.SimulateDisconnect()
	time.Sleep(10 * time.Millisecond)
	tr.SimulateDisconnect()

	select {
	case got := <-sub:
		assert.Equal(t, ensemble.StateExpiredSession, got)
	case <-c.Done():
		t.Fatal("timed out waiting for expired_session escalation")
	}
}
