package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/ensemble"
)

func TestRecorderExposesCollectorsOverHTTP(t *testing.T) {
	r := NewRecorder()
	r.RequestSubmitted("get")
	r.ReplyDispatched("get", false)
	r.WatchEventDelivered(ensemble.WatchData)
	r.StateTransition(ensemble.StateConnecting, ensemble.StateConnected)
	r.CompletionsDrained(3)
	r.WatchesDrained(1)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ensemble_client_requests_submitted_total")
	assert.Contains(t, body, "ensemble_client_completions_drained_total 3")
	assert.True(t, strings.Contains(body, `op="get"`))
}

func TestBoolLabel(t *testing.T) {
	assert.Equal(t, "true", boolLabel(true))
	assert.Equal(t, "false", boolLabel(false))
}
