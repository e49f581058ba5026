package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServer_RegisterHTTPHandler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s := NewServer(50051, 8080, logger)

	err := s.RegisterHTTPHandler(NewPayrollHandler(nil, logger), "secret")
	require.NoError(t, err)

	assert.NotNil(t, s.httpServer.Handler, "expected httpServer.Handler to be set")
	assert.Equal(t, s.httpEndpoint, s.httpServer.Addr)
}

func TestServer_Healthz(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s := NewServer(50051, 8080, logger)
	require.NoError(t, s.RegisterHTTPHandler(NewPayrollHandler(nil, logger), "secret"))

	check := func() int {
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, check(), "not serving before start")

	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	assert.Equal(t, http.StatusOK, check())

	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
