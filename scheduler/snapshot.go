package scheduler

import (
	"time"

	"animatronic/device"
	"animatronic/motion"
)

// Snapshot 调度器的只读快照
type Snapshot struct {
	State               motion.MotionState `json:"state"`
	StateSince          time.Time          `json:"state_since"`
	ActiveSequenceCount int                `json:"active_sequence_count"`
	ConfiguredChannels  int                `json:"configured_channels"`
	EnabledChannels     int                `json:"enabled_channels"`
	HardwareLive        bool               `json:"hardware_live"`
	Backend             string             `json:"backend"`
	BackendStatus       *device.Status     `json:"backend_status,omitempty"`
	TickRateHz          float64            `json:"tick_rate_hz"`
	EmergencyStopActive bool               `json:"emergency_stop_active"`
	EmergencyStopCount  uint64             `json:"emergency_stop_count"`
	LastEmergencyStop   *time.Time         `json:"last_emergency_stop,omitempty"`
	Ticks               uint64             `json:"ticks"`
	Overruns            uint64             `json:"overruns"`
	HardwareErrors      uint64             `json:"hardware_errors"`
	WritesInFlight      int                `json:"writes_in_flight"`
	RetiredSequences    uint64             `json:"retired_sequences"`
	LastTickDuration    time.Duration      `json:"last_tick_duration_ns"`
	Uptime              time.Duration      `json:"uptime_ns"`
}

// ChannelSnapshot 单个通道的配置与运行时角度
type ChannelSnapshot struct {
	device.ChannelConfig
	CurrentAngle float64 `json:"current_angle"`
	TargetAngle  float64 `json:"target_angle"`
}

// SequenceSnapshot 活动序列摘要
type SequenceSnapshot struct {
	ID        motion.SequenceID `json:"id"`
	Name      string            `json:"name"`
	Priority  int               `json:"priority"`
	Loop      bool              `json:"loop"`
	Channels  []int             `json:"channels"`
	Keyframes int               `json:"keyframes"`
	Submitted time.Time         `json:"submitted"`
	Cycles    uint64            `json:"cycles"`
}

// Metrics 系统指标快照
func (s *Scheduler) Metrics() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:               s.safety.state,
		StateSince:          s.safety.since,
		ActiveSequenceCount: len(s.active),
		ConfiguredChannels:  len(s.channels),
		EmergencyStopActive: s.safety.stopped(),
		EmergencyStopCount:  s.safety.stopCount,
		Ticks:               s.stats.ticks,
		Overruns:            s.stats.overruns,
		HardwareErrors:      s.stats.hardwareErrors,
		RetiredSequences:    s.stats.retired,
		LastTickDuration:    s.stats.lastTick,
		TickRateHz:          s.tickRate,
	}
	if !s.safety.lastStop.IsZero() {
		last := s.safety.lastStop
		snap.LastEmergencyStop = &last
	}
	s.mu.Unlock()

	s.lifecycle.Lock()
	if !s.startedAt.IsZero() {
		snap.Uptime = time.Since(s.startedAt)
	}
	s.lifecycle.Unlock()

	snap.EnabledChannels = s.actuator.EnabledCount()
	snap.HardwareLive = s.actuator.HardwareLive()
	snap.Backend = s.actuator.BackendName()
	snap.WritesInFlight = s.actuator.InFlight()
	if status, ok := s.actuator.BackendStatus(); ok {
		snap.BackendStatus = &status
	}
	return snap
}

// ChannelStates 全部通道的当前状态，按配置顺序
func (s *Scheduler) ChannelStates() []ChannelSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChannelSnapshot, len(s.channels))
	for i, st := range s.channels {
		out[i] = ChannelSnapshot{ChannelConfig: st.config, CurrentAngle: st.current, TargetAngle: st.target}
	}
	return out
}

// ActiveSequences 活动序列，按执行顺序
func (s *Scheduler) ActiveSequences() []SequenceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SequenceSnapshot, len(s.active))
	for i, as := range s.active {
		out[i] = SequenceSnapshot{
			ID:        as.seq.ID,
			Name:      as.seq.Name,
			Priority:  as.seq.Priority,
			Loop:      as.seq.Loop,
			Channels:  as.seq.Channels(),
			Keyframes: len(as.keyframes),
			Submitted: as.submitted,
			Cycles:    as.cycles,
		}
	}
	return out
}
