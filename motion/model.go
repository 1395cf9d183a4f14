// Package motion 定义关键帧、动作序列以及全局运动状态。
package motion

import (
	"fmt"
	"math"
	"slices"
	"time"

	"animatronic/easing"

	"github.com/google/uuid"
)

// MotionState 全局运动状态
type MotionState int

const (
	StateIdle MotionState = iota
	StateMoving
	StatePaused
	StateEmergencyStop
	StateError
)

func (s MotionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	case StatePaused:
		return "paused"
	case StateEmergencyStop:
		return "emergency_stop"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText 让状态在 JSON 中以字符串输出
func (s MotionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SequenceID 序列提交后分配的唯一标识
type SequenceID string

// NewSequenceID 生成新的序列 ID
func NewSequenceID() SequenceID { return SequenceID(uuid.NewString()) }

// Keyframe 在 [Start, Start+Duration] 时间窗内把一个通道插值到目标角度
type Keyframe struct {
	Channel  int           `json:"channel"`
	Target   float64       `json:"target"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Easing   easing.Kind   `json:"easing"`
	Hold     time.Duration `json:"hold,omitempty"` // 到达目标后继续占用的时间
}

// Until 关键帧（含保持时间）完全结束的时刻
func (k Keyframe) Until() time.Time { return k.Start.Add(k.Duration + k.Hold) }

// Validate 检查关键帧自身的取值
func (k Keyframe) Validate() error {
	if math.IsNaN(k.Target) || math.IsInf(k.Target, 0) {
		return fmt.Errorf("%w: channel %d target is not finite", ErrInvalidKeyframe, k.Channel)
	}
	if k.Duration < 0 {
		return fmt.Errorf("%w: channel %d negative duration %s", ErrInvalidKeyframe, k.Channel, k.Duration)
	}
	if k.Hold < 0 {
		return fmt.Errorf("%w: channel %d negative hold %s", ErrInvalidKeyframe, k.Channel, k.Hold)
	}
	if k.Start.IsZero() {
		return fmt.Errorf("%w: channel %d has no start time", ErrInvalidKeyframe, k.Channel)
	}
	return nil
}

// Sequence 一组按顺序排列的关键帧，可跨多个通道
type Sequence struct {
	ID            SequenceID    `json:"id"`
	Name          string        `json:"name"`
	Keyframes     []Keyframe    `json:"keyframes"`
	TotalDuration time.Duration `json:"total_duration"`
	Loop          bool          `json:"loop"`
	Priority      int           `json:"priority"`
}

// Validate 检查序列及其全部关键帧
func (s Sequence) Validate() error {
	if len(s.Keyframes) == 0 {
		return fmt.Errorf("%w: sequence %q has no keyframes", ErrInvalidSequence, s.Name)
	}
	if s.TotalDuration < 0 {
		return fmt.Errorf("%w: sequence %q negative total duration", ErrInvalidSequence, s.Name)
	}
	for i, kf := range s.Keyframes {
		if err := kf.Validate(); err != nil {
			return fmt.Errorf("sequence %q keyframe %d: %w", s.Name, i, err)
		}
	}
	if s.Loop && s.Cycle() <= 0 {
		return fmt.Errorf("%w: looping sequence %q needs a positive cycle", ErrInvalidSequence, s.Name)
	}
	return nil
}

// Span 从最早开始到最晚结束（含保持）的时长
func (s Sequence) Span() time.Duration {
	if len(s.Keyframes) == 0 {
		return 0
	}
	first := s.Keyframes[0].Start
	last := s.Keyframes[0].Until()
	for _, kf := range s.Keyframes[1:] {
		if kf.Start.Before(first) {
			first = kf.Start
		}
		if kf.Until().After(last) {
			last = kf.Until()
		}
	}
	return last.Sub(first)
}

// Cycle 循环序列每轮平移的时长：优先使用 TotalDuration，否则取 Span
func (s Sequence) Cycle() time.Duration {
	if s.TotalDuration > 0 {
		return s.TotalDuration
	}
	return s.Span()
}

// Channels 序列涉及的通道（去重、升序）
func (s Sequence) Channels() []int {
	out := make([]int, 0, len(s.Keyframes))
	for _, kf := range s.Keyframes {
		if !slices.Contains(out, kf.Channel) {
			out = append(out, kf.Channel)
		}
	}
	slices.Sort(out)
	return out
}

// Clone 深拷贝，调用方之后修改原序列不会影响副本
func (s Sequence) Clone() Sequence {
	c := s
	c.Keyframes = slices.Clone(s.Keyframes)
	return c
}
