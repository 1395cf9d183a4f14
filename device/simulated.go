package device

import (
	"context"
	"maps"
	"sync"
)

// SimulatedName 模拟后端的类型名
const SimulatedName = "simulated"

// SimulatedBackend 不连接任何硬件，写入总是成功，只记录最近一次角度
type SimulatedBackend struct {
	mu     sync.Mutex
	angles map[int]float64
	writes uint64
}

// NewSimulatedBackend 创建模拟后端
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{angles: make(map[int]float64)}
}

func (s *SimulatedBackend) Name() string { return SimulatedName }

func (s *SimulatedBackend) Initialize(_ context.Context, channels []ChannelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		s.angles[ch.ID] = ch.CenterAngle
	}
	return nil
}

func (s *SimulatedBackend) SetAngle(_ context.Context, channel int, angle float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.angles[channel] = angle
	s.writes++
	return nil
}

func (s *SimulatedBackend) Close() error { return nil }

// Angles 返回各通道最近写入角度的副本
func (s *SimulatedBackend) Angles() map[int]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.angles)
}

// Writes 累计写入次数
func (s *SimulatedBackend) Writes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
