package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cargotrack/backend-cargo/internal/health"
)

type upChecker struct{}

func (upChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (upChecker) PingRedis(context.Context, time.Duration) error { return nil }

func TestReadinessGateFlipsDuringShutdown(t *testing.T) {
	handler := health.Handler{Checker: upChecker{}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	health.SetReady(true)
	t.Cleanup(func() { health.SetReady(true) })

	rr := httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	health.SetReady(false)
	rr = httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "shutting down"))

	health.SetReady(true)
	rr = httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
