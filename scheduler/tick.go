package scheduler

import (
	"context"
	"time"

	"animatronic/easing"
	"animatronic/motion"
)

// TickReport 单次 tick 的处理结果
type TickReport struct {
	Processed int // 本次参与插值或最终写入的关键帧数
	Writes    int
	Failures  int
	Retired   int
	Looped    int
}

// tick 推进一次控制循环。整个修改阶段持有 mu；暂停或急停时不做任何写入。
func (s *Scheduler) tick(now time.Time) TickReport {
	started := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var report TickReport
	if s.closed {
		return report
	}
	switch s.safety.state {
	case motion.StatePaused, motion.StateEmergencyStop:
		return report
	}

	kept := s.active[:0]
	for _, as := range s.active {
		if s.advanceLocked(as, now, &report) {
			kept = append(kept, as)
			continue
		}
		report.Retired++
		s.stats.retired++
		s.observer.SequenceRetired(as.seq)
		s.log.Debug("🏁 序列已完成", "sequence", as.seq.Name, "id", string(as.seq.ID))
	}
	for i := len(kept); i < len(s.active); i++ {
		s.active[i] = nil
	}
	s.active = kept

	s.trackFailuresLocked(report, now)
	s.settleIdleLocked()

	s.stats.ticks++
	s.observer.TickCompleted(time.Since(started), report)
	return report
}

// advanceLocked 推进一个序列的全部关键帧，返回序列是否仍然活动
func (s *Scheduler) advanceLocked(as *activeSequence, now time.Time, report *TickReport) bool {
	complete := true
	for i := range as.keyframes {
		kf := &as.keyframes[i]
		elapsed := now.Sub(kf.Start)
		if elapsed < 0 {
			complete = false
			continue
		}

		idx, ok := s.index[kf.Channel]
		if !ok {
			continue
		}
		st := &s.channels[idx]
		if !kf.started {
			kf.baseline = st.current
			kf.started = true
			st.target = st.config.Clamp(kf.Target)
		}

		if elapsed >= kf.Duration {
			if !kf.settled {
				kf.settled = true
				report.Processed++
				s.writeLocked(st, kf.Target, report)
			}
			if elapsed < kf.Duration+kf.Hold {
				complete = false
			}
			continue
		}

		complete = false
		report.Processed++
		progress := float64(elapsed) / float64(kf.Duration)
		eased := easing.Apply(kf.Easing, progress)
		s.writeLocked(st, kf.baseline+(kf.Target-kf.baseline)*eased, report)
	}

	if !complete {
		return true
	}
	if !as.seq.Loop {
		return false
	}

	// 循环：整体平移一个周期，下一轮从当前位置重新取基准
	cycle := as.seq.Cycle()
	for i := range as.keyframes {
		kf := &as.keyframes[i]
		kf.Start = kf.Start.Add(cycle)
		kf.started = false
		kf.settled = false
	}
	as.cycles++
	report.Looped++
	return true
}

// writeLocked 限幅后写入硬件。写入失败只影响本通道本次 tick，当前角度仍按指令值更新。
func (s *Scheduler) writeLocked(st *channelState, angle float64, report *TickReport) {
	clamped := st.config.Clamp(angle)
	st.current = clamped
	report.Writes++

	if _, err := s.actuator.SetAngle(context.Background(), st.config.ID, clamped); err != nil {
		report.Failures++
		s.stats.hardwareErrors++
		s.observer.HardwareError(st.config.ID)
		s.log.Warn("⚠️ 通道写入失败", "channel", st.config.ID, "name", st.config.Name, "angle", clamped, "error", err)
	}
}

// trackFailuresLocked 连续多个 tick 全部写入失败时进入 Error；任一写入成功即恢复
func (s *Scheduler) trackFailuresLocked(report TickReport, now time.Time) {
	if report.Writes == 0 {
		return
	}
	if report.Failures < report.Writes {
		s.failStreak = 0
		if s.safety.state == motion.StateError {
			s.log.Info("✅ 硬件写入恢复")
			_ = s.safety.transition(motion.StateMoving, now)
		}
		return
	}

	s.failStreak++
	if s.errorThreshold > 0 && s.failStreak >= s.errorThreshold && s.safety.state == motion.StateMoving {
		s.log.Error("❌ 硬件连续写入失败，进入错误状态", "consecutive_ticks", s.failStreak)
		_ = s.safety.transition(motion.StateError, now)
	}
}
