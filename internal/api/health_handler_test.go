package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_NoDependencies(t *testing.T) {
	hc := NewHealthChecker(nil, nil, newFakeEngine())

	rr := httptest.NewRecorder()
	hc.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[HealthStatus](t, rr)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "up", body.Checks["engine"].Status)
	assert.Equal(t, "not configured", body.Checks["database"].Message)
}

func TestHealth_ReadyWithRedisAndDB(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hc := NewHealthChecker(db, rdb, newFakeEngine())
	rr := httptest.NewRecorder()
	hc.HandleReadiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode[map[string]any](t, rr)
	assert.Equal(t, true, body["ready"])
	assert.Equal(t, "healthy", body["status"])
}

func TestHealth_NotReadyWhenDatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(assert.AnError)

	hc := NewHealthChecker(db, nil, nil)
	rr := httptest.NewRecorder()
	hc.HandleReadiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealth_Liveness(t *testing.T) {
	hc := NewHealthChecker(nil, nil, nil)
	rr := httptest.NewRecorder()
	hc.HandleLiveness(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alive", decode[map[string]string](t, rr)["status"])
}

func TestDetermineOverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]ComponentCheck
		want   string
	}{
		{"all up", map[string]ComponentCheck{"database": {Status: "up"}, "redis": {Status: "up"}}, "healthy"},
		{"unconfigured ignored", map[string]ComponentCheck{"database": {Status: "down", Message: "not configured"}}, "healthy"},
		{"db down", map[string]ComponentCheck{"database": {Status: "down", Message: "ping failed"}}, "unhealthy"},
		{"redis down", map[string]ComponentCheck{"database": {Status: "up"}, "redis": {Status: "down", Message: "ping failed"}}, "degraded"},
		{"engine degraded", map[string]ComponentCheck{"engine": {Status: "degraded"}}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineOverallStatus(tt.checks))
		})
	}
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5*time.Second))
	assert.Equal(t, "2m 3s", formatUptime(2*time.Minute+3*time.Second))
	assert.Equal(t, "1h 0m 0s", formatUptime(time.Hour))
	assert.Equal(t, "3d 4h 12m 5s", formatUptime(76*time.Hour+12*time.Minute+5*time.Second))
}
