package api

import (
	"log/slog"
	"time"

	"animatronic/motion"
	"animatronic/scheduler"

	"github.com/gin-gonic/gin"
)

// Server API 服务器结构体
type Server struct {
	scheduler *scheduler.Scheduler
	library   *motion.Library
	log       *slog.Logger
	startTime time.Time
	version   string
}

// NewServer 创建新的 API 服务器实例
func NewServer(sched *scheduler.Scheduler, library *motion.Library, log *slog.Logger) *Server {
	if library == nil {
		library = motion.NewDefaultLibrary()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		scheduler: sched,
		library:   library,
		log:       log,
		startTime: time.Now(),
		version:   "1.0.0",
	}
}

// SetupRoutes 设置 API 路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		// 通道控制路由
		channels := v1.Group("/channels")
		{
			channels.GET("", s.handleGetChannels)                // 获取所有通道及当前角度
			channels.GET("/:channel/angle", s.handleGetAngle)    // 获取通道当前角度
			channels.POST("/:channel/move", s.handleMoveChannel) // 移动单个通道
		}

		// 序列路由
		sequences := v1.Group("/sequences")
		{
			sequences.GET("", s.handleGetSequences)          // 获取活动序列
			sequences.POST("", s.handleSubmitSequence)       // 提交序列
			sequences.DELETE("/:id", s.handleCancelSequence) // 取消序列
		}

		// 序列库路由
		library := v1.Group("/library")
		{
			library.GET("", s.handleGetLibrary)              // 获取序列库
			library.POST("/:name/play", s.handlePlayLibrary) // 播放命名序列
		}

		// 运动控制路由
		motionRoutes := v1.Group("/motion")
		{
			motionRoutes.GET("/state", s.handleGetState)                // 获取运动状态
			motionRoutes.POST("/emergency-stop", s.handleEmergencyStop) // 急停
			motionRoutes.POST("/reset", s.handleResetEmergencyStop)     // 解除急停
			motionRoutes.POST("/pause", s.handlePause)                  // 暂停
			motionRoutes.POST("/resume", s.handleResume)                // 恢复
			motionRoutes.POST("/center", s.handleCenter)                // 全部归中
		}

		// 系统管理路由
		system := v1.Group("/system")
		{
			system.GET("/metrics", s.handleGetMetrics) // 获取系统指标
			system.GET("/health", s.handleHealth)      // 健康检查
		}
	}
}
