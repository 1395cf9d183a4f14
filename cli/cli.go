package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"animatronic/define"

	"github.com/joho/godotenv"
)

// LoadEnv 读取 .env 文件到环境变量。文件不存在时返回 error，调用方可以忽略。
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// 解析配置
func ParseConfig() (*define.Config, error) {
	_ = LoadEnv()
	return Parse(os.Args[1:])
}

// Parse 解析命令行参数，环境变量覆盖命令行参数
func Parse(args []string) (*define.Config, error) {
	cfg := &define.Config{}

	// 命令行参数
	fs := flag.NewFlagSet("animatronic", flag.ContinueOnError)
	fs.StringVar(&cfg.ConfigPath, "config", "", "rig 配置文件路径 (YAML 或 JSON)，留空使用内置默认配置")
	fs.StringVar(&cfg.WebPort, "port", "", "Web 服务的端口，覆盖配置文件")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "日志级别 (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", "json", "日志格式 (json, text)")
	fs.StringVar(&cfg.Backend, "backend", "", "硬件后端类型 (simulated, canbridge, maestro)，覆盖配置文件")
	fs.Float64Var(&cfg.TickRate, "tick-rate", 0, "控制频率 (Hz)，覆盖配置文件")
	fs.StringVar(&cfg.SequenceLibrary, "library", "", "序列库文件路径，覆盖配置文件")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// 环境变量覆盖命令行参数
	cfg.ConfigPath = GetEnv("MOTION_CONFIG", cfg.ConfigPath)
	cfg.WebPort = GetEnv("WEB_PORT", cfg.WebPort)
	cfg.LogLevel = GetEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = GetEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.Backend = GetEnv("MOTION_BACKEND", cfg.Backend)
	cfg.SequenceLibrary = GetEnv("SEQUENCE_LIBRARY", cfg.SequenceLibrary)
	if env := os.Getenv("TICK_RATE_HZ"); env != "" {
		rate, err := strconv.ParseFloat(env, 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("无效的 TICK_RATE_HZ：%q", env)
		}
		cfg.TickRate = rate
	}

	if cfg.WebPort != "" {
		if port, err := strconv.Atoi(cfg.WebPort); err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("无效的端口：%q", cfg.WebPort)
		}
	}
	return cfg, nil
}

// GetEnv 返回环境变量的值，未设置或为空时返回 fallback
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}
