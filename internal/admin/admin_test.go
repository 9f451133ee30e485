package admin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/ensemble"
	"github.com/r3e-network/ensemble/transport/memtransport"
)

// newTestServer mirrors the sandbox-tolerant httptest helper used
// elsewhere in the corpus: some execution environments refuse to open
// a local listener.
func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			if strings.Contains(msg, "operation not permitted") || strings.Contains(msg, "permission denied") {
				t.Skipf("skipping admin server test due to sandbox restrictions: %v", r)
			}
			panic(r)
		}
	}()
	return httptest.NewServer(handler)
}

func newTestEngine(t *testing.T) *ensemble.Engine {
	t.Helper()
	ens := memtransport.NewEnsemble()
	tr := ens.Connect()
	e := ensemble.NewEngine(tr, ensemble.Options{})
	t.Cleanup(func() { e.Close() })
	tr.MarkConnected()
	return e
}

func TestHealthzReportsState(t *testing.T) {
	e := newTestEngine(t)
	srv := newTestServer(t, Router(e, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthzReflectsTerminalState(t *testing.T) {
	ens := memtransport.NewEnsemble()
	tr := ens.Connect()
	e := ensemble.NewEngine(tr, ensemble.Options{})
	tr.MarkConnected()
	require.NoError(t, e.Close())

	srv := newTestServer(t, Router(e, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSessionsStateEndpoint(t *testing.T) {
	e := newTestEngine(t)
	srv := newTestServer(t, Router(e, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
