package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"animatronic/device"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config 整机配置（rig 文件）
type Config struct {
	Channels        []device.ChannelConfig `json:"channels" yaml:"channels" validate:"required,min=1,dive"`
	Backend         BackendConfig          `json:"backend" yaml:"backend"`
	Scheduler       SchedulerConfig        `json:"scheduler" yaml:"scheduler"`
	Server          ServerConfig           `json:"server" yaml:"server"`
	SequenceLibrary string                 `json:"sequence_library,omitempty" yaml:"sequence_library,omitempty"`
}

// BackendConfig 硬件后端配置
type BackendConfig struct {
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// SchedulerConfig 控制循环配置
type SchedulerConfig struct {
	TickRateHz     float64 `json:"tick_rate_hz" yaml:"tick_rate_hz" validate:"gte=0,lte=1000"`
	WriteTimeoutMs int     `json:"write_timeout_ms" yaml:"write_timeout_ms" validate:"gte=0"`
	ErrorThreshold int     `json:"error_threshold" yaml:"error_threshold"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port       int    `json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Host       string `json:"host" yaml:"host"`
	EnableCORS bool   `json:"enable_cors" yaml:"enable_cors"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig 从文件加载配置，按扩展名选择 YAML 或 JSON
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败：%w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败：%w", err)
	}

	// 设置默认值
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Backend.Type == "" {
		c.Backend.Type = device.SimulatedName
	}
	if c.Scheduler.TickRateHz == 0 {
		c.Scheduler.TickRateHz = 50
	}
	if c.Scheduler.WriteTimeoutMs == 0 {
		c.Scheduler.WriteTimeoutMs = int(device.DefaultWriteTimeout.Milliseconds())
	}
	if c.Scheduler.ErrorThreshold == 0 {
		c.Scheduler.ErrorThreshold = 25
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9099
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
}

// Validate 检查字段取值以及跨字段约束（角度范围、通道 ID 唯一）
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败：%w", err)
	}
	seen := make(map[int]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if seen[ch.ID] {
			return fmt.Errorf("配置校验失败：通道 %d 重复配置", ch.ID)
		}
		seen[ch.ID] = true
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("配置校验失败：%w", err)
		}
	}
	return nil
}

// SaveConfig 保存配置到文件，格式由扩展名决定
func SaveConfig(config *Config, configPath string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		data, err = yaml.Marshal(config)
	}
	if err != nil {
		return fmt.Errorf("保存配置文件失败：%w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("创建配置文件失败：%w", err)
	}
	return nil
}

// GetDefaultConfig 获取默认配置：模拟后端上的六通道头部
func GetDefaultConfig() *Config {
	return &Config{
		Channels: []device.ChannelConfig{
			{ID: 0, Name: "eye_pan", MinAngle: 30, MaxAngle: 150, CenterAngle: 90, SpeedLimit: 400, Enabled: true},
			{ID: 1, Name: "eye_tilt", MinAngle: 45, MaxAngle: 135, CenterAngle: 90, SpeedLimit: 400, Enabled: true},
			{ID: 2, Name: "eyelids", MinAngle: 0, MaxAngle: 180, CenterAngle: 90, Enabled: true},
			{ID: 3, Name: "jaw", MinAngle: 80, MaxAngle: 130, CenterAngle: 90, Enabled: true},
			{ID: 4, Name: "neck_pan", MinAngle: 0, MaxAngle: 180, CenterAngle: 90, SpeedLimit: 120, AccelerationLimit: 300, Enabled: true},
			{ID: 5, Name: "neck_tilt", MinAngle: 50, MaxAngle: 130, CenterAngle: 90, SpeedLimit: 90, AccelerationLimit: 300, Enabled: true},
		},
		Backend: BackendConfig{
			Type:   device.SimulatedName,
			Params: map[string]any{},
		},
		Scheduler: SchedulerConfig{
			TickRateHz:     50,
			WriteTimeoutMs: int(device.DefaultWriteTimeout.Milliseconds()),
			ErrorThreshold: 25,
		},
		Server: ServerConfig{
			Port:       9099,
			Host:       "0.0.0.0",
			EnableCORS: true,
		},
	}
}
