package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appconfig "github.com/wolfman30/clinic-scheduling/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-scheduling/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Port:                       "0",
		StaffJWTSecret:             "main-secret",
		PublicRateLimitRPS:         50,
		PublicRateLimitBurst:       50,
		DefaultTimezone:            "UTC",
		CalendarGranularityMinutes: 30,
		EventsSink:                 "log",
	}
}

func newTestApp(t *testing.T, cfg *appconfig.Config) *application {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	app, err := newApp(cfg, logging.New("error"), nil, client, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(app.close)
	return app
}

func TestNewAppRequiresRedis(t *testing.T) {
	_, err := newApp(testConfig(), logging.New("error"), nil, nil, nil, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestNewAppInMemoryServesRoutes(t *testing.T) {
	app := newTestApp(t, testConfig())
	assert.Nil(t, app.deliverer, "no outbox without postgres")

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	claims := httpmiddleware.StaffClaims{Role: httpmiddleware.RoleAdmin}
	claims.Subject = "ops"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("main-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clinics/clinic-1/calendar/day?clinician_id=dr-a&date=2025-03-10", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"duration_minutes":30`, "calendar granularity default applies")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/clinics/clinic-1/audit", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code, "audit trail needs postgres")
}

func TestNewAppExposesMetrics(t *testing.T) {
	app := newTestApp(t, testConfig())

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"), "runtime collectors registered")
}
