package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"animatronic/easing"

	"github.com/gin-gonic/gin"
)

// handleGetState 获取运动状态
func (s *Server) handleGetState(c *gin.Context) {
	snap := s.scheduler.Metrics()

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: StateResponse{
			State:               snap.State.String(),
			EmergencyStopActive: snap.EmergencyStopActive,
			ActiveSequenceCount: snap.ActiveSequenceCount,
		},
	})
}

// handleEmergencyStop 急停：清除全部运动
func (s *Server) handleEmergencyStop(c *gin.Context) {
	cleared := s.scheduler.EmergencyStopAll()
	s.log.Warn("🛑 收到急停请求", "client", c.ClientIP(), "cleared_sequences", cleared)

	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("急停已触发，清除 %d 个序列", cleared),
		Data:    map[string]any{"cleared": cleared, "state": s.scheduler.State().String()},
	})
}

// handleResetEmergencyStop 解除急停
func (s *Server) handleResetEmergencyStop(c *gin.Context) {
	if err := s.scheduler.ResetEmergencyStop(); err != nil {
		respondError(c, "解除急停失败：", err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "急停已解除",
		Data:    map[string]any{"state": s.scheduler.State().String()},
	})
}

// handlePause 暂停全部运动
func (s *Server) handlePause(c *gin.Context) {
	if err := s.scheduler.Pause(); err != nil {
		respondError(c, "暂停失败：", err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "运动已暂停",
		Data:    map[string]any{"state": s.scheduler.State().String()},
	})
}

// handleResume 恢复运动
func (s *Server) handleResume(c *gin.Context) {
	if err := s.scheduler.Resume(); err != nil {
		respondError(c, "恢复失败：", err)
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "运动已恢复",
		Data:    map[string]any{"state": s.scheduler.State().String()},
	})
}

// handleCenter 全部通道归中，请求体可省略
func (s *Server) handleCenter(c *gin.Context) {
	req := CenterRequest{Duration: 1}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  "无效的归中请求：" + err.Error(),
		})
		return
	}

	kind, _ := easing.Parse(req.Easing)
	id, err := s.scheduler.CenterAll(seconds(req.Duration), kind)
	if err != nil {
		respondError(c, "归中失败：", err)
		return
	}

	c.JSON(http.StatusAccepted, ApiResponse{
		Status:  "success",
		Message: "归中指令已接受",
		Data:    map[string]any{"id": id, "duration": req.Duration},
	})
}
