package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"animatronic/motion"
)

// DefaultWriteTimeout 单次通道写入的默认超时
const DefaultWriteTimeout = 15 * time.Millisecond

// DefaultCloseTimeout 关闭后端的最长等待时间
const DefaultCloseTimeout = time.Second

// Options 打开执行器所需的参数
type Options struct {
	Backend      string         // 后端类型名，空表示模拟
	Params       map[string]any // 传给后端构造函数
	Channels     []ChannelConfig
	WriteTimeout time.Duration
	Registry     *Registry
	Logger       *slog.Logger
}

// Actuator 拥有通道配置和选定的后端，负责限幅与超时控制
type Actuator struct {
	backend      Backend
	channels     []ChannelConfig
	index        map[int]int
	live         bool
	writeTimeout time.Duration
	closeTimeout time.Duration
	log          *slog.Logger

	// busy[i] 为 true 表示 channels[i] 有写入尚未从后端返回
	busy []atomic.Bool
}

// Open 创建并初始化后端。后端创建或初始化失败时回退到模拟后端，仅记录日志；
// 只有通道配置错误才会返回 error。
func Open(ctx context.Context, opts Options) (*Actuator, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := validateChannels(opts.Channels); err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	name := opts.Backend
	if name == "" {
		name = SimulatedName
	}

	backend, err := initialize(ctx, registry, name, opts.Params, opts.Channels)
	live := err == nil && backend.Name() != SimulatedName
	if err != nil {
		log.Warn("⚠️ 硬件后端初始化失败，切换到模拟模式", "backend", name, "error", err)
		backend = NewSimulatedBackend()
		if err := backend.Initialize(ctx, opts.Channels); err != nil {
			return nil, fmt.Errorf("模拟后端初始化失败：%w", err)
		}
	}

	a, err := New(backend, opts.Channels, opts.WriteTimeout, log)
	if err != nil {
		return nil, err
	}
	a.live = live
	log.Info("✅ 执行器已就绪", "backend", backend.Name(), "hardware_live", live, "channels", len(opts.Channels))
	return a, nil
}

func initialize(ctx context.Context, registry *Registry, name string, params map[string]any, channels []ChannelConfig) (Backend, error) {
	backend, err := registry.Create(name, params)
	if err != nil {
		return nil, &InitError{Backend: name, Err: err}
	}
	if err := backend.Initialize(ctx, channels); err != nil {
		_ = backend.Close()
		return nil, &InitError{Backend: name, Err: err}
	}
	return backend, nil
}

// New 使用已初始化的后端创建执行器。真实后端需调用方自行标记，见 Open。
func New(backend Backend, channels []ChannelConfig, writeTimeout time.Duration, log *slog.Logger) (*Actuator, error) {
	if err := validateChannels(channels); err != nil {
		return nil, err
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Actuator{
		backend:      backend,
		channels:     slices.Clone(channels),
		index:        make(map[int]int, len(channels)),
		writeTimeout: writeTimeout,
		closeTimeout: DefaultCloseTimeout,
		log:          log,
		busy:         make([]atomic.Bool, len(channels)),
	}
	for i, ch := range a.channels {
		a.index[ch.ID] = i
	}
	return a, nil
}

func validateChannels(channels []ChannelConfig) error {
	if len(channels) == 0 {
		return ErrNoChannels
	}
	seen := make(map[int]bool, len(channels))
	for _, ch := range channels {
		if seen[ch.ID] {
			return fmt.Errorf("通道 %d 重复配置", ch.ID)
		}
		seen[ch.ID] = true
		if err := ch.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Channel 获取通道配置
func (a *Actuator) Channel(id int) (ChannelConfig, bool) {
	i, ok := a.index[id]
	if !ok {
		return ChannelConfig{}, false
	}
	return a.channels[i], true
}

// Lookup 获取可用通道配置，未配置或被禁用时返回对应错误
func (a *Actuator) Lookup(id int) (ChannelConfig, error) {
	ch, ok := a.Channel(id)
	if !ok {
		return ChannelConfig{}, fmt.Errorf("%w: %d", motion.ErrUnknownChannel, id)
	}
	if !ch.Enabled {
		return ch, fmt.Errorf("%w: %d (%s)", motion.ErrDisabledChannel, id, ch.Name)
	}
	return ch, nil
}

// Channels 返回全部通道配置的副本
func (a *Actuator) Channels() []ChannelConfig { return slices.Clone(a.channels) }

// EnabledCount 启用的通道数
func (a *Actuator) EnabledCount() int {
	n := 0
	for _, ch := range a.channels {
		if ch.Enabled {
			n++
		}
	}
	return n
}

// HardwareLive 是否连接真实硬件
func (a *Actuator) HardwareLive() bool { return a.live }

// BackendName 当前后端类型名
func (a *Actuator) BackendName() string { return a.backend.Name() }

// SetAngle 限幅后写入后端，单次写入受 writeTimeout 约束。
// 同一通道最多只有一个写入在途：上一次写入超时后仍未返回时，本次直接返回 ErrWriteInFlight。
// 返回实际下发（限幅后）的角度；失败时 error 为 *HardwareError。
func (a *Actuator) SetAngle(ctx context.Context, channel int, angle float64) (float64, error) {
	i, ok := a.index[channel]
	if !ok {
		return angle, fmt.Errorf("%w: %d", motion.ErrUnknownChannel, channel)
	}
	clamped := a.channels[i].Clamp(angle)

	if !a.busy[i].CompareAndSwap(false, true) {
		return clamped, &HardwareError{Backend: a.backend.Name(), Channel: channel, Angle: clamped, Err: ErrWriteInFlight}
	}

	ctx, cancel := context.WithTimeout(ctx, a.writeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer a.busy[i].Store(false)
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("driver panic: %v", r)
			}
		}()
		done <- a.backend.SetAngle(ctx, channel, clamped)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		var hwErr *HardwareError
		if errors.As(err, &hwErr) {
			return clamped, hwErr
		}
		return clamped, &HardwareError{Backend: a.backend.Name(), Channel: channel, Angle: clamped, Err: err}
	}
	return clamped, nil
}

// InFlight 尚未从后端返回的写入数量，最多等于通道数
func (a *Actuator) InFlight() int {
	n := 0
	for i := range a.busy {
		if a.busy[i].Load() {
			n++
		}
	}
	return n
}

// Close 关闭后端，最多等待 closeTimeout
func (a *Actuator) Close() error {
	done := make(chan error, 1)
	go func() { done <- a.backend.Close() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("关闭后端 %s 失败：%w", a.backend.Name(), err)
		}
		return nil
	case <-time.After(a.closeTimeout):
		a.log.Error("❌ 后端关闭超时", "backend", a.backend.Name(), "timeout", a.closeTimeout)
		return fmt.Errorf("%w: %s 超过 %s", ErrCloseTimeout, a.backend.Name(), a.closeTimeout)
	}
}
