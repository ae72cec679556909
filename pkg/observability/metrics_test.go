package observability_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/ifgate/pkg/observability"
	"github.com/aretw0/ifgate/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	active := 2
	m.ObserveActive(func() int { return active })
	hooks := m.Hooks()

	hooks.OnCreate("a")
	hooks.OnCreate("b")
	hooks.OnTurn(session.TurnEvent{SessionID: "a", Seq: 1, Duration: 20 * time.Millisecond})
	hooks.OnTurn(session.TurnEvent{SessionID: "a", Seq: 2, Partial: true, Duration: 5 * time.Second})
	hooks.OnTurn(session.TurnEvent{SessionID: "b", Err: errors.New("boom")})
	hooks.OnEvict("a")
	hooks.OnFailure("b", errors.New("exited"))
	hooks.OnTerminate("c")

	body := scrape(t, m)
	for _, line := range []string{
		"ifgate_sessions_created_total 2",
		`ifgate_sessions_ended_total{reason="evicted"} 1`,
		`ifgate_sessions_ended_total{reason="failed"} 1`,
		`ifgate_sessions_ended_total{reason="terminated"} 1`,
		`ifgate_turns_total{outcome="complete"} 1`,
		`ifgate_turns_total{outcome="error"} 1`,
		`ifgate_turns_total{outcome="partial"} 1`,
		"ifgate_turn_duration_seconds_count 3",
		"ifgate_sessions_active 2",
	} {
		assert.Contains(t, body, line)
	}

	active = 0
	assert.Contains(t, scrape(t, m), "ifgate_sessions_active 0")
}

func TestMetrics_RuntimeCollectors(t *testing.T) {
	m := observability.NewMetrics()
	assert.Contains(t, scrape(t, m), "go_goroutines")
}

func TestMetrics_MergedWithOtherHooks(t *testing.T) {
	m := observability.NewMetrics()
	var created []string
	hooks := m.Hooks().Merge(session.Hooks{OnCreate: func(id string) { created = append(created, id) }})

	hooks.OnCreate("x")
	assert.Equal(t, []string{"x"}, created)
	assert.Contains(t, scrape(t, m), "ifgate_sessions_created_total 1")
}
