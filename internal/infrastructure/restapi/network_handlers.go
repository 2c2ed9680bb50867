package restapi

import (
	"errors"
	"net/http"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// APINetworksResponse is the body of GET /api/v1/networks.
type APINetworksResponse struct {
	Data struct {
		Networks []entity.NetworkProfile `json:"networks"`
	} `json:"data"`
	StatusMessage string `json:"status_message"`
}

// APINetworkResponse is the body of GET /api/v1/networks/:name.
type APINetworkResponse struct {
	Data struct {
		Network entity.NetworkProfile `json:"network"`
	} `json:"data"`
}

// APICheckResponse is the body of GET /api/v1/networks/:name/check.
type APICheckResponse struct {
	Data struct {
		entity.CheckResult
		Error string `json:"error,omitempty"`
	} `json:"data"`
}

// APIErrorResponse is returned for every failed request.
type APIErrorResponse struct {
	Error string `json:"error"`
}

// NetworkHandler serves network profiles. It never exposes credentials.
type NetworkHandler struct {
	profiles   port.ProfileProvider
	targets    port.DeployTargetService
	testRunner map[string]any
}

// NewNetworkHandler creates a new instance of NetworkHandler.
func NewNetworkHandler(pp port.ProfileProvider, ts port.DeployTargetService, testRunner map[string]any) *NetworkHandler {
	if testRunner == nil {
		testRunner = map[string]any{}
	}
	return &NetworkHandler{
		profiles:   pp,
		targets:    ts,
		testRunner: testRunner,
	}
}

// ListNetworksHandler returns every configured profile in name order.
func (h *NetworkHandler) ListNetworksHandler(c *gin.Context) {
	var response APINetworksResponse
	response.Data.Networks = make([]entity.NetworkProfile, 0)

	for _, name := range h.profiles.ListProfiles() {
		profile, err := h.profiles.GetProfile(name)
		if err != nil {
			_ = c.Error(err)
			continue
		}
		response.Data.Networks = append(response.Data.Networks, profile)
	}

	if len(response.Data.Networks) == 0 {
		response.StatusMessage = "No networks configured."
	} else {
		response.StatusMessage = "Networks retrieved successfully."
	}
	c.JSON(http.StatusOK, response)
}

// GetNetworkHandler returns one profile, or 404 listing the known names.
func (h *NetworkHandler) GetNetworkHandler(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}

	var response APINetworkResponse
	response.Data.Network = profile
	c.JSON(http.StatusOK, response)
}

// CheckNetworkHandler selects and probes one network.
func (h *NetworkHandler) CheckNetworkHandler(c *gin.Context) {
	results := h.targets.Check(c.Request.Context(), []string{c.Param("name")})
	if len(results) != 1 {
		c.JSON(http.StatusInternalServerError, APIErrorResponse{Error: "unexpected check result"})
		return
	}
	result := results[0]

	var notFound *entity.NotFoundError
	if errors.As(result.Err, &notFound) {
		writeError(c, result.Err)
		return
	}

	var response APICheckResponse
	response.Data.CheckResult = result
	status := http.StatusOK
	if result.Err != nil {
		response.Data.Error = result.Err.Error()
		status = http.StatusBadGateway
	}
	c.JSON(status, response)
}

// GetTestRunnerHandler returns the pass-through test harness options.
func (h *NetworkHandler) GetTestRunnerHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.testRunner})
}

// HealthHandler reports liveness.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var notFound *entity.NotFoundError
	if errors.As(err, &notFound) {
		status = http.StatusNotFound
	}
	_ = c.Error(err)
	c.JSON(status, APIErrorResponse{Error: err.Error()})
}
