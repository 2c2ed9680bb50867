package restapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"
	networkdefinition "deploy_networks/internal/infrastructure/network/definition"
	"deploy_networks/internal/pkg/logger"
	"deploy_networks/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	gin.SetMode(gin.TestMode)
}

// stubTargets answers Check from a fixed table.
type stubTargets struct {
	port.DeployTargetService
	results map[string]entity.CheckResult
}

func (s stubTargets) Check(_ context.Context, names []string) []entity.CheckResult {
	out := make([]entity.CheckResult, 0, len(names))
	for _, name := range names {
		r, ok := s.results[name]
		if !ok {
			r = entity.CheckResult{Name: name, Err: &entity.NotFoundError{Name: name, Known: []string{"development", "quaitestnet"}}}
		}
		out = append(out, r)
	}
	return out
}

func newRouter(t *testing.T, m *metrics.Metrics) *gin.Engine {
	t.Helper()

	log := logger.NewNop()
	targets := stubTargets{results: map[string]entity.CheckResult{
		"development": {Name: "development", Endpoint: "http://127.0.0.1:8678", Probe: &entity.ProbeResult{NetworkID: 9303}},
		"quaitestnet": {Name: "quaitestnet", Endpoint: "http://127.0.0.1:8610", Err: &entity.NetworkMismatchError{Profile: "quaitestnet", Expected: 12101, Actual: 1}},
	}}
	handler := NewNetworkHandler(
		networkdefinition.NewProfileProvider(networkdefinition.DefaultProfiles(), log),
		targets,
		map[string]any{"timeout": 100000},
	)
	return SetupRouter(handler, m, log)
}

func serve(router http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestListNetworks(t *testing.T) {
	t.Parallel()

	rec := serve(newRouter(t, nil), "/api/v1/networks")
	require.Equal(t, http.StatusOK, rec.Code)

	var body APINetworksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Networks, 2)
	assert.Equal(t, "development", body.Data.Networks[0].Name)
	assert.Equal(t, "quaitestnet", body.Data.Networks[1].Name)
	assert.Equal(t, uint64(490335), body.Data.Networks[1].Gas)
}

func TestGetNetwork(t *testing.T) {
	t.Parallel()

	rec := serve(newRouter(t, nil), "/api/v1/networks/quaitestnet")
	require.Equal(t, http.StatusOK, rec.Code)

	var body APINetworkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 8610, body.Data.Network.Port)
	assert.Equal(t, uint64(12101), body.Data.Network.NetworkID)
}

// TestGetNetwork_NotFound tests that unknown names get a 404 listing the configured networks
func TestGetNetwork_NotFound(t *testing.T) {
	t.Parallel()

	rec := serve(newRouter(t, nil), "/api/v1/networks/mainnet")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "mainnet")
	assert.Contains(t, body.Error, "development, quaitestnet")
}

func TestCheckNetwork(t *testing.T) {
	t.Parallel()

	router := newRouter(t, nil)

	rec := serve(router, "/api/v1/networks/development/check")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"networkId":9303`)

	rec = serve(router, "/api/v1/networks/quaitestnet/check")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "expected 12101")

	rec = serve(router, "/api/v1/networks/mainnet/check")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTestRunner(t *testing.T) {
	t.Parallel()

	rec := serve(newRouter(t, nil), "/api/v1/test-runner")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"timeout":100000}}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ProfileLookups.WithLabelValues("development", metrics.ResultOK).Inc()
	router := newRouter(t, m)

	rec := serve(router, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "deploy_networks_profile_lookups_total"))
}

func TestMetricsDisabled(t *testing.T) {
	t.Parallel()

	rec := serve(newRouter(t, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
