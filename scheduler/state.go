package scheduler

import (
	"errors"
	"fmt"
	"time"

	"animatronic/motion"
)

// ErrInvalidTransition 状态机不允许的转换
var ErrInvalidTransition = errors.New("scheduler: invalid state transition")

// transitions 允许的状态转换。任何状态都可以进入 EmergencyStop，单独处理。
var transitions = map[motion.MotionState][]motion.MotionState{
	motion.StateIdle:          {motion.StateMoving, motion.StatePaused},
	motion.StateMoving:        {motion.StateIdle, motion.StatePaused, motion.StateError},
	motion.StatePaused:        {motion.StateMoving, motion.StateIdle},
	motion.StateError:         {motion.StateMoving, motion.StateIdle},
	motion.StateEmergencyStop: {motion.StateIdle},
}

// safetyMachine 运动状态机。调用方持有 Scheduler.mu。
type safetyMachine struct {
	state      motion.MotionState
	since      time.Time
	stopCount  uint64
	lastStop   time.Time
	stopReason string
	onChange   func(from, to motion.MotionState)
}

func newSafetyMachine(now time.Time, onChange func(from, to motion.MotionState)) *safetyMachine {
	return &safetyMachine{state: motion.StateIdle, since: now, onChange: onChange}
}

func (m *safetyMachine) allowed(to motion.MotionState) bool {
	if to == motion.StateEmergencyStop {
		return true
	}
	for _, s := range transitions[m.state] {
		if s == to {
			return true
		}
	}
	return false
}

// transition 执行转换；目标与当前状态相同时为空操作
func (m *safetyMachine) transition(to motion.MotionState, now time.Time) error {
	if m.state == to {
		return nil
	}
	if !m.allowed(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	from := m.state
	m.state = to
	m.since = now
	if m.onChange != nil {
		m.onChange(from, to)
	}
	return nil
}

// emergencyStop 从任意状态进入急停
func (m *safetyMachine) emergencyStop(reason string, now time.Time) {
	m.stopCount++
	m.lastStop = now
	m.stopReason = reason
	_ = m.transition(motion.StateEmergencyStop, now)
}

func (m *safetyMachine) stopped() bool { return m.state == motion.StateEmergencyStop }
