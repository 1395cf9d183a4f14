package api

import (
	"time"

	"animatronic/define"
	"animatronic/scheduler"
)

// ===== 通用响应模型 =====

// ApiResponse 统一 API 响应格式
type ApiResponse = define.ApiResponse

// ===== 通道控制相关模型 =====

// MoveRequest 单通道移动请求，时长单位为秒
type MoveRequest struct {
	Angle    *float64 `json:"angle" binding:"required"`
	Duration float64  `json:"duration" binding:"gte=0,lte=600"`
	Easing   string   `json:"easing,omitempty"`
}

// ChannelListResponse 通道列表响应
type ChannelListResponse struct {
	Channels []scheduler.ChannelSnapshot `json:"channels"`
	Total    int                         `json:"total"`
	Enabled  int                         `json:"enabled"`
}

// ChannelAngleResponse 通道角度响应
type ChannelAngleResponse struct {
	Channel int     `json:"channel"`
	Angle   float64 `json:"angle"`
}

// ===== 序列相关模型 =====

// KeyframeRequest 关键帧，offset 相对序列开始时刻，单位均为秒
type KeyframeRequest struct {
	Channel  *int     `json:"channel" binding:"required,gte=0"`
	Angle    *float64 `json:"angle" binding:"required"`
	Offset   float64  `json:"offset" binding:"gte=0,lte=3600"`
	Duration float64  `json:"duration" binding:"gte=0,lte=600"`
	Easing   string   `json:"easing,omitempty"`
	Hold     float64  `json:"hold,omitempty" binding:"gte=0,lte=3600"`
}

// SequenceRequest 序列提交请求
type SequenceRequest struct {
	Name          string            `json:"name"`
	Keyframes     []KeyframeRequest `json:"keyframes" binding:"required,min=1,dive"`
	Loop          bool              `json:"loop"`
	Priority      int               `json:"priority"`
	TotalDuration float64           `json:"total_duration" binding:"gte=0,lte=3600"`
}

// SequenceAcceptedResponse 序列已接受响应
type SequenceAcceptedResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// SequenceListResponse 活动序列列表响应
type SequenceListResponse struct {
	Sequences []scheduler.SequenceSnapshot `json:"sequences"`
	Total     int                          `json:"total"`
}

// ===== 序列库相关模型 =====

// LibraryEntry 序列库条目
type LibraryEntry struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Loop        bool    `json:"loop"`
	Keyframes   int     `json:"keyframes"`
	Duration    float64 `json:"duration"`
}

// LibraryResponse 序列库响应
type LibraryResponse struct {
	Sequences []LibraryEntry `json:"sequences"`
	Total     int            `json:"total"`
}

// ===== 运动控制相关模型 =====

// CenterRequest 归中请求，可省略
type CenterRequest struct {
	Duration float64 `json:"duration" binding:"gte=0,lte=600"`
	Easing   string  `json:"easing,omitempty"`
}

// StateResponse 运动状态响应
type StateResponse struct {
	State               string `json:"state"`
	EmergencyStopActive bool   `json:"emergency_stop_active"`
	ActiveSequenceCount int    `json:"active_sequence_count"`
}

// ===== 系统管理相关模型 =====

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status       string        `json:"status"`
	Timestamp    time.Time     `json:"timestamp"`
	Version      string        `json:"version,omitempty"`
	Backend      string        `json:"backend"`
	HardwareLive bool          `json:"hardware_live"`
	Uptime       time.Duration `json:"uptime"`
}
