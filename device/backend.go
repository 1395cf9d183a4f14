// Package device 把 (通道, 角度) 写入转换为真实或模拟的执行器指令。
package device

import (
	"context"
	"errors"
	"fmt"
)

// Backend 执行器驱动
type Backend interface {
	// Name 返回后端类型名，例如 "simulated"、"canbridge"
	Name() string
	// Initialize 使用通道配置初始化硬件，失败时系统回退到模拟后端
	Initialize(ctx context.Context, channels []ChannelConfig) error
	// SetAngle 写入一个通道角度，调用方保证角度已被限幅
	SetAngle(ctx context.Context, channel int, angle float64) error
	// Close 释放硬件资源
	Close() error
}

// ErrNoChannels 没有配置任何通道，属于启动期配置错误
var ErrNoChannels = errors.New("device: no channels configured")

// ErrWriteInFlight 通道上一次写入尚未返回，本次写入被跳过
var ErrWriteInFlight = errors.New("device: previous write still in flight")

// ErrCloseTimeout 后端未能在限定时间内关闭
var ErrCloseTimeout = errors.New("device: backend close timed out")

// HardwareError 单次通道写入失败
type HardwareError struct {
	Backend string
	Channel int
	Angle   float64
	Err     error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("%s: channel %d write %.2f failed: %v", e.Backend, e.Channel, e.Angle, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

// InitError 后端初始化失败
type InitError struct {
	Backend string
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: initialize failed: %v", e.Backend, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
