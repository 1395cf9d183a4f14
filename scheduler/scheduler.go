// Package scheduler 以固定频率推进所有活动关键帧，并维护运动状态机。
//
// 活动序列集合与通道运行时状态只在 mu 保护下修改；通道当前角度只由 tick 写入。
// API 调用只短暂持锁修改集合或标志，不在锁内做插值计算，也不访问硬件。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"animatronic/device"
	"animatronic/easing"
	"animatronic/motion"
)

const (
	// DefaultTickRate 默认控制频率（Hz）
	DefaultTickRate = 50.0
	// DefaultErrorThreshold 连续多少个 tick 全部写入失败后进入 Error
	DefaultErrorThreshold = 25
)

// Config 调度器配置
type Config struct {
	TickRate       float64          // Hz，<=0 时使用 DefaultTickRate
	ErrorThreshold int              // 0 使用默认值，<0 关闭 Error 检测
	Clock          func() time.Time // 测试中注入，默认 time.Now
	Logger         *slog.Logger
	Observer       Observer
}

// channelState 通道运行时状态，按通道配置顺序存放
type channelState struct {
	config  device.ChannelConfig
	current float64
	target  float64
}

// activeKeyframe 关键帧及其插值基准
type activeKeyframe struct {
	motion.Keyframe
	baseline float64 // 关键帧开始时通道的角度
	started  bool
	settled  bool // 已写入最终目标
}

type activeSequence struct {
	seq       motion.Sequence
	keyframes []activeKeyframe
	order     uint64
	submitted time.Time
	cycles    uint64
}

// Scheduler 运动调度器
type Scheduler struct {
	actuator       *device.Actuator
	log            *slog.Logger
	observer       Observer
	now            func() time.Time
	period         time.Duration
	tickRate       float64
	errorThreshold int

	mu         sync.Mutex
	active     []*activeSequence
	channels   []channelState
	index      map[int]int
	safety     *safetyMachine
	pausedAt   time.Time
	failStreak int
	submitted  uint64
	closed     bool

	stats stats

	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}
	startedAt time.Time
}

type stats struct {
	ticks          uint64
	overruns       uint64
	hardwareErrors uint64
	retired        uint64
	lastTick       time.Duration
}

// New 创建调度器。每个通道的运行时状态从 center_angle 开始。
func New(actuator *device.Actuator, cfg Config) (*Scheduler, error) {
	if actuator == nil {
		return nil, errors.New("scheduler: actuator is required")
	}
	channels := actuator.Channels()
	if len(channels) == 0 {
		return nil, device.ErrNoChannels
	}
	rate := cfg.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	if math.IsInf(rate, 0) || math.IsNaN(rate) || rate > 1000 {
		return nil, fmt.Errorf("scheduler: unsupported tick rate %v", cfg.TickRate)
	}
	threshold := cfg.ErrorThreshold
	if threshold == 0 {
		threshold = DefaultErrorThreshold
	}
	s := &Scheduler{
		actuator:       actuator,
		log:            cfg.Logger,
		observer:       cfg.Observer,
		now:            cfg.Clock,
		period:         time.Duration(float64(time.Second) / rate),
		tickRate:       rate,
		errorThreshold: threshold,
		channels:       make([]channelState, len(channels)),
		index:          make(map[int]int, len(channels)),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	for i, ch := range channels {
		s.channels[i] = channelState{config: ch, current: ch.CenterAngle, target: ch.CenterAngle}
		s.index[ch.ID] = i
	}
	s.safety = newSafetyMachine(s.now(), func(from, to motion.MotionState) {
		s.log.Info("🔁 运动状态切换", "from", from.String(), "to", to.String())
		s.observer.StateChanged(from, to)
	})
	return s, nil
}

// Start 启动控制循环。重复调用无效。
func (s *Scheduler) Start() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.startedAt = time.Now()
	go s.run(s.stop, s.done)
	s.log.Info("🚀 控制循环已启动", "tick_rate_hz", s.tickRate, "period", s.period.String())
}

// Shutdown 停止控制循环，等待当前 tick 完成后返回
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.lifecycle.Lock()
	stop, done := s.stop, s.done
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	s.lifecycle.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		s.log.Info("👋 控制循环已停止")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待控制循环退出超时：%w", ctx.Err())
	}
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			started := time.Now()
			s.tick(s.now())
			took := time.Since(started)

			s.mu.Lock()
			s.stats.lastTick = took
			if took > s.period {
				s.stats.overruns++
			}
			s.mu.Unlock()
		}
	}
}

// Now 调度器使用的时钟
func (s *Scheduler) Now() time.Time { return s.now() }

// TickRate 控制频率（Hz）
func (s *Scheduler) TickRate() float64 { return s.tickRate }

// Submit 把序列加入活动集合。急停时返回 motion.ErrEmergencyStop，活动集合不变。
func (s *Scheduler) Submit(seq motion.Sequence) (motion.SequenceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.admitLocked(seq); err != nil {
		s.observer.SequenceRejected(err)
		s.log.Info("⚠️ 序列被拒绝", "sequence", seq.Name, "error", err)
		return "", err
	}

	seq = seq.Clone()
	if seq.ID == "" {
		seq.ID = motion.NewSequenceID()
	}
	s.submitted++
	as := &activeSequence{
		seq:       seq,
		keyframes: make([]activeKeyframe, len(seq.Keyframes)),
		order:     s.submitted,
		submitted: s.now(),
	}
	for i, kf := range seq.Keyframes {
		as.keyframes[i] = activeKeyframe{Keyframe: kf}
	}
	s.insertLocked(as)

	if s.safety.state == motion.StateIdle {
		_ = s.safety.transition(motion.StateMoving, s.now())
	}
	s.observer.SequenceAccepted(seq)
	s.log.Debug("✅ 序列已提交", "sequence", seq.Name, "id", string(seq.ID), "keyframes", len(seq.Keyframes))
	return seq.ID, nil
}

func (s *Scheduler) admitLocked(seq motion.Sequence) error {
	if s.closed {
		return motion.ErrSchedulerStopped
	}
	if s.safety.stopped() {
		return motion.ErrEmergencyStop
	}
	if err := seq.Validate(); err != nil {
		return err
	}
	for _, ch := range seq.Channels() {
		if _, err := s.actuator.Lookup(ch); err != nil {
			return err
		}
	}
	return nil
}

// insertLocked 按优先级升序、同优先级按提交顺序插入；tick 依此顺序写入，后写者胜出
func (s *Scheduler) insertLocked(as *activeSequence) {
	i := sort.Search(len(s.active), func(i int) bool {
		return s.active[i].seq.Priority > as.seq.Priority
	})
	s.active = append(s.active, nil)
	copy(s.active[i+1:], s.active[i:])
	s.active[i] = as
}

// MoveChannel 把单个通道从当前位置移动到 angle。角度先按通道范围限幅；
// 通道配置了 speed_limit 时，时长会被延长到不超过该速度。
func (s *Scheduler) MoveChannel(channel int, angle float64, duration time.Duration, kind easing.Kind) (motion.SequenceID, error) {
	ch, err := s.actuator.Lookup(channel)
	if err != nil {
		s.observer.SequenceRejected(err)
		s.log.Info("⚠️ 通道移动被拒绝", "channel", channel, "error", err)
		return "", err
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return "", fmt.Errorf("%w: channel %d target is not finite", motion.ErrInvalidKeyframe, channel)
	}
	if duration < 0 {
		duration = 0
	}
	target := ch.Clamp(angle)
	if target != angle {
		s.log.Debug("✂️ 目标角度已限幅", "channel", channel, "requested", angle, "clamped", target)
	}

	if ch.SpeedLimit > 0 {
		current, _ := s.ChannelAngle(channel)
		minimum := time.Duration(math.Abs(target-current) / ch.SpeedLimit * float64(time.Second))
		if duration < minimum {
			s.log.Debug("🐢 移动时长按速度限制延长", "channel", channel, "requested", duration.String(), "extended", minimum.String())
			duration = minimum
		}
	}

	seq, err := motion.NewSequence("move:"+ch.Name).
		Move(channel, target, 0, duration, kind).
		At(s.now())
	if err != nil {
		return "", err
	}
	return s.Submit(seq)
}

// CenterAll 把所有启用的通道移动到中位
func (s *Scheduler) CenterAll(duration time.Duration, kind easing.Kind) (motion.SequenceID, error) {
	b := motion.NewSequence("center")
	for _, ch := range s.actuator.Channels() {
		if ch.Enabled {
			b.Move(ch.ID, ch.CenterAngle, 0, duration, kind)
		}
	}
	seq, err := b.At(s.now())
	if err != nil {
		return "", err
	}
	return s.Submit(seq)
}

// CancelSequence 按 ID 取消一个活动序列
func (s *Scheduler) CancelSequence(id motion.SequenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, as := range s.active {
		if as.seq.ID != id {
			continue
		}
		s.active = append(s.active[:i], s.active[i+1:]...)
		s.log.Info("🛑 序列已取消", "sequence", as.seq.Name, "id", string(id))
		s.settleIdleLocked()
		return nil
	}
	return fmt.Errorf("%w: %s", motion.ErrSequenceNotFound, id)
}

// EmergencyStopAll 立即清空活动集合并进入急停，返回被清除的序列数
func (s *Scheduler) EmergencyStopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := len(s.active)
	s.active = nil
	s.pausedAt = time.Time{}
	s.failStreak = 0
	s.safety.emergencyStop("emergency_stop_all", s.now())
	s.observer.EmergencyStopped(cleared)
	s.log.Warn("🛑 急停！所有运动已清除", "cleared_sequences", cleared)
	return cleared
}

// ResetEmergencyStop 解除急停（或 Error）。其他状态下为空操作。
func (s *Scheduler) ResetEmergencyStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.safety.state {
	case motion.StateEmergencyStop:
		s.log.Info("✅ 急停已解除")
		return s.safety.transition(motion.StateIdle, s.now())
	case motion.StateError:
		s.failStreak = 0
		s.log.Info("✅ 错误状态已清除")
		if len(s.active) > 0 {
			return s.safety.transition(motion.StateMoving, s.now())
		}
		return s.safety.transition(motion.StateIdle, s.now())
	}
	return nil
}

// Pause 冻结所有活动序列，tick 不再写入
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.safety.state {
	case motion.StatePaused:
		return nil
	case motion.StateEmergencyStop:
		return motion.ErrEmergencyStop
	}
	if err := s.safety.transition(motion.StatePaused, s.now()); err != nil {
		return err
	}
	s.pausedAt = s.now()
	s.log.Info("⏸️ 运动已暂停", "active_sequences", len(s.active))
	return nil
}

// Resume 从暂停处继续：所有关键帧开始时间顺延暂停的时长
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.safety.state != motion.StatePaused {
		return motion.ErrNotPaused
	}
	now := s.now()
	shift := now.Sub(s.pausedAt)
	for _, as := range s.active {
		for i := range as.keyframes {
			as.keyframes[i].Start = as.keyframes[i].Start.Add(shift)
		}
	}
	s.pausedAt = time.Time{}

	next := motion.StateIdle
	if len(s.active) > 0 {
		next = motion.StateMoving
	}
	s.log.Info("▶️ 运动已恢复", "paused_for", shift.String())
	return s.safety.transition(next, now)
}

// settleIdleLocked 活动集合为空时回到 Idle
func (s *Scheduler) settleIdleLocked() {
	if len(s.active) > 0 {
		return
	}
	switch s.safety.state {
	case motion.StateMoving, motion.StateError:
		s.failStreak = 0
		_ = s.safety.transition(motion.StateIdle, s.now())
	}
}

// State 当前运动状态
func (s *Scheduler) State() motion.MotionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safety.state
}

// ChannelAngle 通道当前角度；通道未配置时 ok 为 false
func (s *Scheduler) ChannelAngle(channel int) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[channel]
	if !ok {
		return 0, false
	}
	return s.channels[i].current, true
}
