package scheduler

import (
	"time"

	"animatronic/motion"
)

// Observer 接收调度器事件，用于导出指标。回调在调度器锁内执行，必须快速返回。
type Observer interface {
	TickCompleted(took time.Duration, report TickReport)
	HardwareError(channel int)
	StateChanged(from, to motion.MotionState)
	SequenceAccepted(seq motion.Sequence)
	SequenceRejected(reason error)
	SequenceRetired(seq motion.Sequence)
	EmergencyStopped(cleared int)
}

type nopObserver struct{}

func (nopObserver) TickCompleted(time.Duration, TickReport) {}
func (nopObserver) HardwareError(int) {}
func (nopObserver) StateChanged(_, _ motion.MotionState) {}
func (nopObserver) SequenceAccepted(motion.Sequence) {}
func (nopObserver) SequenceRejected(error) {}
func (nopObserver) SequenceRetired(motion.Sequence) {}
func (nopObserver) EmergencyStopped(int) {}
