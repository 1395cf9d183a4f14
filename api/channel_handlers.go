package api

import (
	"fmt"
	"net/http"
	"strconv"

	"animatronic/easing"

	"github.com/gin-gonic/gin"
)

// handleGetChannels 获取所有通道配置及当前角度
func (s *Server) handleGetChannels(c *gin.Context) {
	channels := s.scheduler.ChannelStates()
	enabled := 0
	for _, ch := range channels {
		if ch.Enabled {
			enabled++
		}
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: ChannelListResponse{
			Channels: channels,
			Total:    len(channels),
			Enabled:  enabled,
		},
	})
}

// handleGetAngle 获取通道当前角度
func (s *Server) handleGetAngle(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}

	angle, ok := s.scheduler.ChannelAngle(channel)
	if !ok {
		c.JSON(http.StatusNotFound, ApiResponse{
			Status: "error",
			Error:  fmt.Sprintf("通道 %d 不存在", channel),
		})
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   ChannelAngleResponse{Channel: channel, Angle: angle},
	})
}

// handleMoveChannel 移动单个通道
func (s *Server) handleMoveChannel(c *gin.Context) {
	channel, ok := channelParam(c)
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  "无效的移动请求：" + err.Error(),
		})
		return
	}

	kind, _ := easing.Parse(req.Easing)
	id, err := s.scheduler.MoveChannel(channel, *req.Angle, seconds(req.Duration), kind)
	if err != nil {
		respondError(c, "移动通道失败：", err)
		return
	}

	c.JSON(http.StatusAccepted, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("通道 %d 移动指令已接受", channel),
		Data: map[string]any{
			"id":       id,
			"channel":  channel,
			"angle":    *req.Angle,
			"duration": req.Duration,
			"easing":   kind,
		},
	})
}

func channelParam(c *gin.Context) (int, bool) {
	channel, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  "无效的通道编号：" + c.Param("channel"),
		})
		return 0, false
	}
	return channel, true
}
