package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"animatronic/api"
	"animatronic/cli"
	"animatronic/logger"
	"animatronic/pkg/rig"
	"animatronic/telemetry"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

func printUsage() {
	fmt.Println("Animatronic Motion Control Service")
	fmt.Println("Usage:")
	fmt.Println("  -config string      rig 配置文件路径 (YAML 或 JSON)，留空使用内置六通道头部")
	fmt.Println("  -port string        Web 服务的端口 (default: 9099)")
	fmt.Println("  -backend string     硬件后端 simulated | canbridge | maestro")
	fmt.Println("  -tick-rate float    控制频率 Hz (default: 50)")
	fmt.Println("  -library string     序列库 YAML 文件")
	fmt.Println("  -log-level string   日志级别 (default: info)")
	fmt.Println("  -log-format string  日志格式 json | text (default: json)")
	fmt.Println("")
	fmt.Println("Environment Variables (.env supported):")
	fmt.Println("  MOTION_CONFIG      rig 配置文件路径")
	fmt.Println("  WEB_PORT           Web 服务的端口")
	fmt.Println("  MOTION_BACKEND     硬件后端类型")
	fmt.Println("  TICK_RATE_HZ       控制频率")
	fmt.Println("  SEQUENCE_LIBRARY   序列库文件")
	fmt.Println("  LOG_LEVEL          日志级别")
	fmt.Println("  LOG_FORMAT         日志格式")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  ./animatronic -config rig.yaml")
	fmt.Println("  MOTION_BACKEND=maestro ./animatronic -config rig.yaml -log-format text")
}

func main() {
	// 检查是否请求帮助
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		return
	}

	// 解析配置
	opts, err := cli.ParseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 参数错误: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(opts.LogLevel, opts.LogFormat)
	slog.SetDefault(log)

	cfg, err := rig.LoadConfig(opts, log)
	if err != nil {
		log.Error("❌ 配置无效", "error", err)
		os.Exit(1)
	}

	metrics := telemetry.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	r, err := rig.Assemble(ctx, cfg, log, metrics)
	cancel()
	if err != nil {
		log.Error("❌ 装置初始化失败", "error", err)
		os.Exit(1)
	}

	log.Info("🚀 启动动作控制服务",
		"backend", r.Actuator.BackendName(),
		"hardware_live", r.Actuator.HardwareLive(),
		"channels", len(cfg.Channels),
		"enabled_channels", r.Actuator.EnabledCount(),
		"tick_rate_hz", r.Scheduler.TickRate(),
		"sequences", r.Library.Names(),
	)
	r.Scheduler.Start()

	// 设置 Gin 模式
	gin.SetMode(gin.ReleaseMode)

	// 创建 Gin 引擎
	engine := gin.New()
	engine.Use(gin.Recovery(), logger.RequestLogger(log), metrics.Middleware())

	if cfg.Server.EnableCORS {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"*"}, // 允许的域，*表示允许所有
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	engine.GET("/metrics", gin.WrapH(metrics.Handler(r.Scheduler)))

	// 设置 API 路由
	api.NewServer(r.Scheduler, r.Library, log).SetupRoutes(engine)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{Addr: addr, Handler: engine}

	go func() {
		log.Info("🌐 动作控制服务运行中", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("❌ 服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("🛑 收到退出信号，正在关闭")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("❌ HTTP 服务关闭失败", "error", err)
	}
	if err := r.Close(shutdownCtx); err != nil {
		log.Error("❌ 装置关闭失败", "error", err)
		os.Exit(1)
	}

	log.Info("👋 服务已停止")
}
