package api

import (
	"net/http"
	"time"

	"animatronic/motion"

	"github.com/gin-gonic/gin"
)

// handleGetMetrics 获取系统指标快照
func (s *Server) handleGetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   s.scheduler.Metrics(),
	})
}

// handleHealth 健康检查
func (s *Server) handleHealth(c *gin.Context) {
	snap := s.scheduler.Metrics()

	status := "healthy"
	switch snap.State {
	case motion.StateError:
		status = "unhealthy"
	case motion.StateEmergencyStop:
		status = "stopped"
	}

	response := HealthResponse{
		Status:       status,
		Timestamp:    time.Now(),
		Version:      s.version,
		Backend:      snap.Backend,
		HardwareLive: snap.HardwareLive,
		Uptime:       time.Since(s.startTime),
	}

	// 根据健康状态返回相应的 HTTP 状态码
	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, ApiResponse{
		Status: "success",
		Data:   response,
	})
}
