package api

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

func pingOK(context.Context) error { return nil }

func pingFail(context.Context) error { return errors.New("connection refused") }

func TestReadiness_CriticalDown(t *testing.T) {
	hc := NewHealthChecker().
		Add("database", true, 0, pingFail).
		Add("redis", false, 0, pingOK)

	rec := httptest.NewRecorder()
	hc.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_OptionalDownIsDegraded(t *testing.T) {
	hc := NewHealthChecker().
		Add("database", true, 0, pingOK).
		Add("archive", false, 0, pingFail).
		Add("redis", false, 0, nil)

	rec := httptest.NewRecorder()
	hc.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "up", status.Checks["database"].Status)
	assert.Equal(t, "not configured", status.Checks["redis"].Message)
}

func TestHealth_AllUp(t *testing.T) {
	hc := NewHealthChecker().Add("database", true, 0, pingOK).Add("redis", false, 0, nil)

	rec := httptest.NewRecorder()
	hc.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
