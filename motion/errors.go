package motion

import "errors"

var (
	// ErrUnknownChannel 通道不在配置中
	ErrUnknownChannel = errors.New("motion: unknown channel")
	// ErrDisabledChannel 通道已配置但被禁用
	ErrDisabledChannel = errors.New("motion: channel disabled")
	// ErrEmergencyStop 急停状态下拒绝新的运动
	ErrEmergencyStop = errors.New("motion: rejected, emergency stop active")

	ErrInvalidKeyframe  = errors.New("motion: invalid keyframe")
	ErrInvalidSequence  = errors.New("motion: invalid sequence")
	ErrSequenceNotFound = errors.New("motion: sequence not found")
	ErrTemplateNotFound = errors.New("motion: sequence template not found")

	// ErrNotPaused 在未暂停时调用 Resume
	ErrNotPaused = errors.New("motion: not paused")
	// ErrSchedulerStopped 调度器已关闭
	ErrSchedulerStopped = errors.New("motion: scheduler stopped")
)
