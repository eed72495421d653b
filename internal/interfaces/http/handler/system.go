package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordersplit/backend/internal/interfaces/http/dto"
)

// ServiceStatus reports the live state of the split service
type ServiceStatus interface {
	GatewayConfigured() bool
	InFlight() int64
}

// SystemInfo describes the running build
type SystemInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// SystemHandler serves health and info endpoints
type SystemHandler struct {
	BaseHandler
	status  ServiceStatus
	info    SystemInfo
	started time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(status ServiceStatus, info SystemInfo) *SystemHandler {
	return &SystemHandler{status: status, info: info, started: time.Now()}
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status            string `json:"status"`
	GatewayConfigured bool   `json:"gateway_configured"`
	InFlight          int64  `json:"in_flight"`
}

// InfoResponse is the service info payload
type InfoResponse struct {
	SystemInfo
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Description  Reports liveness. A missing ShipStation gateway reports "degraded" but still answers 200.
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:            "healthy",
		GatewayConfigured: h.status.GatewayConfigured(),
		InFlight:          h.status.InFlight(),
	}
	if !resp.GatewayConfigured {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}

// Info godoc
// @ID           getSystemInfo
// @Summary      Get system information
// @Description  Returns build and runtime information including version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=InfoResponse}
// @Router       /system/info [get]
func (h *SystemHandler) Info(c *gin.Context) {
	h.Success(c, InfoResponse{
		SystemInfo: h.info,
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(h.started).Truncate(time.Second).String(),
	})
}

// Ping godoc
// @ID           getSystemPing
// @Summary      Ping
// @Description  Answers with pong
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"message": "pong"}))
}
