package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("dictionary", ReadyCheck(func() bool { return true }, "not loaded"))
	c.Register("redis", PingCheck(pinger{err: errors.New("refused")}, true))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Components["dictionary"].Status)
	assert.Equal(t, "refused", report.Components["redis"].Message)

	c.Register("postgres", PingCheck(pinger{err: errors.New("down")}, false))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	ready := false
	c := NewChecker()
	c.Register("dictionary", ReadyCheck(func() bool { return ready }, "phrase dictionary not loaded"))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "phrase dictionary not loaded", report.Components["dictionary"].Message)

	ready = true
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
