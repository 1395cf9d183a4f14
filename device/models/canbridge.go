package models

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"animatronic/device"
	"animatronic/pkg/communication"
)

// CanBridgeName canbridge 后端类型名
const CanBridgeName = "canbridge"

// cmdSetAngle 舵机节点的设角指令前缀
const cmdSetAngle = 0x10

// CanBridgeBackend 通过 can-bridge HTTP 服务驱动舵机节点
type CanBridgeBackend struct {
	communicator communication.Communicator
	canInterface string // CAN 接口名称，如 "can0"
	nodeID       uint32 // 舵机节点的 CAN ID

	mutex  sync.Mutex
	status device.Status
}

// NewCanBridgeBackend 根据参数创建后端。
// 参数：can_service_url（必填）、can_interface（默认 can0）、node_id（默认 0x120）。
func NewCanBridgeBackend(params map[string]any) (device.Backend, error) {
	serviceURL, ok := params["can_service_url"].(string)
	if !ok || serviceURL == "" {
		return nil, fmt.Errorf("缺少 can 服务 URL 配置")
	}

	canInterface, ok := params["can_interface"].(string)
	if !ok || canInterface == "" {
		canInterface = "can0" // 默认接口
	}

	nodeID, err := uintParam(params, "node_id", 0x120)
	if err != nil {
		return nil, err
	}
	if nodeID > 0x7FF {
		return nil, fmt.Errorf("node_id 0x%X 超出标准帧范围", nodeID)
	}

	return NewCanBridgeBackendWith(communication.NewCanBridgeClient(serviceURL), canInterface, uint32(nodeID)), nil
}

// NewCanBridgeBackendWith 使用给定的 Communicator 创建后端
func NewCanBridgeBackendWith(comm communication.Communicator, canInterface string, nodeID uint32) *CanBridgeBackend {
	return &CanBridgeBackend{
		communicator: comm,
		canInterface: canInterface,
		nodeID:       nodeID,
		status:       device.Status{LastUpdate: time.Now()},
	}
}

func (b *CanBridgeBackend) Name() string { return CanBridgeName }

// Initialize 确认 CAN 接口处于活动状态，并把各通道送到中位
func (b *CanBridgeBackend) Initialize(ctx context.Context, channels []device.ChannelConfig) error {
	active, err := b.communicator.GetInterfaceStatus(ctx, b.canInterface)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("CAN 接口 %s 未激活", b.canInterface)
	}

	b.mutex.Lock()
	b.status.IsConnected = true
	b.status.LastUpdate = time.Now()
	b.mutex.Unlock()

	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		if err := b.SetAngle(ctx, ch.ID, ch.CenterAngle); err != nil {
			return fmt.Errorf("通道 %d 归中失败：%w", ch.ID, err)
		}
	}
	return nil
}

// SetAngle 编码为 [0x10, 通道, 角度(0.01°, int16 大端)] 并发送
func (b *CanBridgeBackend) SetAngle(ctx context.Context, channel int, angle float64) error {
	data, err := encodeAngleFrame(channel, angle)
	if err != nil {
		return err
	}

	msg := communication.RawMessage{
		Interface: b.canInterface,
		ID:        b.nodeID,
		Data:      data,
	}

	err = b.communicator.SendMessage(ctx, msg)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err != nil {
		b.status.ErrorCount++
		b.status.LastError = err.Error()
		return fmt.Errorf("发送指令失败：%w", err)
	}
	b.status.LastUpdate = time.Now()
	return nil
}

func (b *CanBridgeBackend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.status.IsConnected = false
	b.status.LastUpdate = time.Now()
	return nil
}

// Status 实现 device.StatusReporter
func (b *CanBridgeBackend) Status() device.Status {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.status
}

func encodeAngleFrame(channel int, angle float64) ([]byte, error) {
	if channel < 0 || channel > 0xFF {
		return nil, fmt.Errorf("通道 %d 超出 CAN 帧范围", channel)
	}
	centi := math.Round(angle * 100)
	if centi < math.MinInt16 || centi > math.MaxInt16 {
		return nil, fmt.Errorf("角度 %.2f 超出编码范围", angle)
	}
	data := []byte{cmdSetAngle, byte(channel), 0, 0}
	binary.BigEndian.PutUint16(data[2:], uint16(int16(centi)))
	return data, nil
}

// uintParam 读取数值参数，兼容 JSON (float64) 与 YAML (int) 解码结果
func uintParam(params map[string]any, key string, fallback uint64) (uint64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		if n >= 0 {
			return uint64(n), nil
		}
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case uint64:
		return n, nil
	case float64:
		if n >= 0 && n == math.Trunc(n) {
			return uint64(n), nil
		}
	}
	return 0, fmt.Errorf("参数 %s 不是有效的非负整数：%v", key, v)
}
