package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-learner/internal/learner"
)

type staticStats learner.Stats

func (s staticStats) Stats() learner.Stats { return learner.Stats(s) }

type staticCounters struct {
	sent, dropped uint64
	err           error
}

func (c staticCounters) Sent() uint64    { return c.sent }
func (c staticCounters) Dropped() uint64 { return c.dropped }
func (c staticCounters) Err() error      { return c.err }

func TestAdminMux(t *testing.T) {
	t.Parallel()

	mux := newAdminMux(
		staticStats{State: "awaiting_batch", Step: 42, Publishes: 3, QueueCapacity: 1000},
		staticCounters{sent: 2, dropped: 1, err: errors.New("peer gone")},
		slog.Default(),
	)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "awaiting_batch", got["state"])
	assert.Equal(t, float64(42), got["step"])
	assert.Equal(t, float64(3), got["publishes"])
	assert.Equal(t, float64(1000), got["queue_capacity"])
	assert.Equal(t, map[string]any{"sent": float64(2), "dropped": float64(1), "last_error": "peer gone"}, got["publisher"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "learner_loop_steps_total")
}
