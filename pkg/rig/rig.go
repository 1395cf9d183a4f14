// Package rig 根据配置组装执行器、调度器和序列库。
package rig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"animatronic/define"
	"animatronic/device"
	"animatronic/device/models"
	"animatronic/motion"
	"animatronic/pkg/config"
	"animatronic/scheduler"
)

// Rig 运行中的一套装置
type Rig struct {
	Config    *config.Config
	Actuator  *device.Actuator
	Scheduler *scheduler.Scheduler
	Library   *motion.Library

	log *slog.Logger
}

// LoadConfig 读取 rig 配置并应用进程级覆盖项。路径为空时使用内置默认配置。
func LoadConfig(opts *define.Config, log *slog.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath == "" {
		cfg = config.GetDefaultConfig()
		log.Info("📋 未指定配置文件，使用内置默认配置", "channels", len(cfg.Channels))
	} else {
		cfg, err = config.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		log.Info("📋 配置文件已加载", "path", opts.ConfigPath, "channels", len(cfg.Channels))
	}

	if opts.Backend != "" {
		cfg.Backend.Type = opts.Backend
	}
	if opts.TickRate > 0 {
		cfg.Scheduler.TickRateHz = opts.TickRate
	}
	if opts.SequenceLibrary != "" {
		cfg.SequenceLibrary = opts.SequenceLibrary
	}
	if opts.WebPort != "" {
		port, err := strconv.Atoi(opts.WebPort)
		if err != nil {
			return nil, fmt.Errorf("无效的端口：%q", opts.WebPort)
		}
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrCreateConfig 配置文件不存在时写入默认配置
func LoadOrCreateConfig(path string, log *slog.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.GetDefaultConfig()
		if err := config.SaveConfig(cfg, path); err != nil {
			return nil, fmt.Errorf("保存默认配置失败：%w", err)
		}
		log.Info("📝 创建默认配置文件", "path", path)
		return cfg, nil
	}
	return config.LoadConfig(path)
}

// Assemble 打开后端（失败时回退模拟）、创建调度器并加载序列库。调度器尚未启动。
func Assemble(ctx context.Context, cfg *config.Config, log *slog.Logger, observer scheduler.Observer) (*Rig, error) {
	registry := device.NewRegistry()
	models.RegisterBackendTypes(registry)

	actuator, err := device.Open(ctx, device.Options{
		Backend:      cfg.Backend.Type,
		Params:       cfg.Backend.Params,
		Channels:     cfg.Channels,
		WriteTimeout: time.Duration(cfg.Scheduler.WriteTimeoutMs) * time.Millisecond,
		Registry:     registry,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(actuator, scheduler.Config{
		TickRate:       cfg.Scheduler.TickRateHz,
		ErrorThreshold: cfg.Scheduler.ErrorThreshold,
		Logger:         log,
		Observer:       observer,
	})
	if err != nil {
		_ = actuator.Close()
		return nil, err
	}

	library := motion.NewDefaultLibrary()
	if cfg.SequenceLibrary != "" {
		if err := library.LoadLibraryFile(cfg.SequenceLibrary, log); err != nil {
			log.Warn("⚠️ 序列库加载失败，仅使用内置动作", "path", cfg.SequenceLibrary, "error", err)
		}
	}

	return &Rig{
		Config:    cfg,
		Actuator:  actuator,
		Scheduler: sched,
		Library:   library,
		log:       log,
	}, nil
}

// Close 停止控制循环并关闭后端
func (r *Rig) Close(ctx context.Context) error {
	var errs []error
	if err := r.Scheduler.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := r.Actuator.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
