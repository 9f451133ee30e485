package memtransport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/ensemble"
	"github.com/r3e-network/ensemble/transport/memtransport"
)

func newEngine(t *testing.T) (*ensemble.Engine, *memtransport.Ensemble, *memtransport.Transport) {
	t.Helper()
	ens := memtransport.NewEnsemble()
	tr := ens.Connect()
	e := ensemble.NewEngine(tr, ensemble.Options{})
	t.Cleanup(func() { e.Close() })
	tr.MarkConnected()
	return e, ens, tr
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestSequentialCreateAppendsSuffix(t *testing.T) {
	e, _, _ := newEngine(t)
	c := ctx(t)

	first, err := e.Create("/seq-", nil, ensemble.OpenUnsafe(), ensemble.ModeSequential).Wait(c)
	require.NoError(t, err)
	second, err := e.Create("/seq-", nil, ensemble.OpenUnsafe(), ensemble.ModeSequential).Wait(c)
	require.NoError(t, err)

	assert.Equal(t, ensemble.Path("/seq-0000000001"), first.Name)
	assert.Equal(t, ensemble.Path("/seq-0000000002"), second.Name)
}

func TestEphemeralRemovedOnExpiry(t *testing.T) {
	e, ens, tr := newEngine(t)
	c := ctx(t)

	_, err := e.Create("/lock", nil, ensemble.OpenUnsafe(), ensemble.ModeEphemeral).Wait(c)
	require.NoError(t, err)

	exists, err := e.Exists("/lock").Wait(c)
	require.NoError(t, err)
	assert.True(t, exists.Present)

	tr.SimulateExpiry()

	// A second, independent session against the same ensemble should
	// see the ephemeral entry gone.
	other := ens.Connect()
	otherEngine := ensemble.NewEngine(other, ensemble.Options{})
	defer otherEngine.Close()
	other.MarkConnected()

	res, err := otherEngine.Exists("/lock").Wait(c)
	require.NoError(t, err)
	assert.False(t, res.Present)
}

func TestEraseNotEmptyFails(t *testing.T) {
	e, _, _ := newEngine(t)
	c := ctx(t)

	_, err := e.Create("/parent", nil, ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)
	_, err = e.Create("/parent/child", nil, ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	_, err = e.Erase("/parent", 0).Wait(c)
	require.Error(t, err)
	var ensErr *ensemble.Error
	require.ErrorAs(t, err, &ensErr)
	assert.Equal(t, ensemble.KindNotEmpty, ensErr.Kind)
}

func TestExistsWatchFiresOnCreate(t *testing.T) {
	e, _, _ := newEngine(t)
	c := ctx(t)

	watched, err := e.WatchExists("/late").Wait(c)
	require.NoError(t, err)
	assert.False(t, watched.Present)

	_, err = e.Create("/late", nil, ensemble.OpenUnsafe(), ensemble.ModeNormal).Wait(c)
	require.NoError(t, err)

	ev, err := watched.Watch.Wait(c)
	require.NoError(t, err)
	assert.Equal(t, ensemble.EventCreated, ev.Kind)
}

func TestFenceResolves(t *testing.T) {
	e, _, _ := newEngine(t)
	c := ctx(t)

	_, err := e.Fence().Wait(c)
	assert.NoError(t, err)
}
