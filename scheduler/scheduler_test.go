package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"animatronic/device"
	"animatronic/easing"
	"animatronic/motion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// recordingBackend 记录每个通道最近一次写入；failing 中的通道总是写入失败
type recordingBackend struct {
	mu      sync.Mutex
	last    map[int]float64
	writes  map[int]int
	failing map[int]bool
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{last: map[int]float64{}, writes: map[int]int{}, failing: map[int]bool{}}
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Initialize(context.Context, []device.ChannelConfig) error { return nil }

func (b *recordingBackend) SetAngle(_ context.Context, channel int, angle float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing[channel] {
		return errors.New("bus nack")
	}
	b.last[channel] = angle
	b.writes[channel]++
	return nil
}

func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) setFailing(channel int, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[channel] = fail
}

func (b *recordingBackend) lastAngle(channel int) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.last[channel]
	return v, ok
}

func testChannels() []device.ChannelConfig {
	return []device.ChannelConfig{
		{ID: 0, Name: "jaw", MinAngle: 0, MaxAngle: 180, CenterAngle: 0, Enabled: true},
		{ID: 1, Name: "eye_pan", MinAngle: 0, MaxAngle: 180, CenterAngle: 90, Enabled: true},
		{ID: 2, Name: "neck", MinAngle: 0, MaxAngle: 180, CenterAngle: 90, SpeedLimit: 90, Enabled: true},
		{ID: 3, Name: "tail", MinAngle: 0, MaxAngle: 180, CenterAngle: 90, Enabled: false},
	}
}

type harness struct {
	s       *Scheduler
	clock   *fakeClock
	backend *recordingBackend
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := newRecordingBackend()
	act, err := device.New(backend, testChannels(), time.Second, log)
	require.NoError(t, err)

	clock := &fakeClock{now: epoch}
	cfg.Clock = clock.Now
	cfg.Logger = log
	s, err := New(act, cfg)
	require.NoError(t, err)
	return &harness{s: s, clock: clock, backend: backend}
}

func (h *harness) angle(t *testing.T, channel int) float64 {
	t.Helper()
	v, ok := h.s.ChannelAngle(channel)
	require.True(t, ok)
	return v
}

func single(t *testing.T, channel int, target float64, start time.Time, d time.Duration, kind easing.Kind) motion.Sequence {
	t.Helper()
	seq, err := motion.NewSequence("test").Move(channel, target, 0, d, kind).At(start)
	require.NoError(t, err)
	return seq
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)

	act, err := device.New(newRecordingBackend(), testChannels(), 0, nil)
	require.NoError(t, err)
	_, err = New(act, Config{TickRate: 5000})
	assert.Error(t, err)

	s, err := New(act, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTickRate, s.TickRate())
	assert.Equal(t, motion.StateIdle, s.State())
}

func TestChannelsStartAtCenter(t *testing.T) {
	h := newHarness(t, Config{})
	assert.Equal(t, 0.0, h.angle(t, 0))
	assert.Equal(t, 90.0, h.angle(t, 1))

	_, ok := h.s.ChannelAngle(42)
	assert.False(t, ok)
}

func TestLinearInterpolationMidpoint(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.s.Submit(single(t, 0, 180, epoch, time.Second, easing.Linear))
	require.NoError(t, err)
	assert.Equal(t, motion.StateMoving, h.s.State())

	h.s.tick(h.clock.Now())
	assert.InDelta(t, 0, h.angle(t, 0), 1e-9)

	h.s.tick(h.clock.Advance(500 * time.Millisecond))
	assert.InDelta(t, 90, h.angle(t, 0), 0.5)
	got, ok := h.backend.lastAngle(0)
	require.True(t, ok)
	assert.InDelta(t, 90, got, 0.5)
}

func TestEasedInterpolationUsesKind(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.s.Submit(single(t, 0, 100, epoch, time.Second, easing.EaseInQuad))
	require.NoError(t, err)

	h.s.tick(h.clock.Now())
	h.s.tick(h.clock.Advance(500 * time.Millisecond))
	assert.InDelta(t, 25, h.angle(t, 0), 1e-6)
}

func TestBaselineCapturedWhenKeyframeStarts(t *testing.T) {
	h := newHarness(t, Config{})
	// 第二段从第一段结束的位置出发
	seq, err := motion.NewSequence("two-step").
		Move(0, 100, 0, time.Second, easing.Linear).
		Move(0, 0, time.Second, time.Second, easing.Linear).
		At(epoch)
	require.NoError(t, err)
	_, err = h.s.Submit(seq)
	require.NoError(t, err)

	h.s.tick(h.clock.Now())
	h.s.tick(h.clock.Advance(time.Second))
	assert.InDelta(t, 100, h.angle(t, 0), 1e-9)

	h.s.tick(h.clock.Advance(500 * time.Millisecond))
	assert.InDelta(t, 50, h.angle(t, 0), 1e-6)
}

func TestMoveChannelClampsTarget(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.s.MoveChannel(1, 200, 200*time.Millisecond, easing.EaseOutBack)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		h.s.tick(h.clock.Advance(20 * time.Millisecond))
		a := h.angle(t, 1)
		assert.GreaterOrEqual(t, a, 0.0)
		assert.LessOrEqual(t, a, 180.0)
	}
	assert.Equal(t, 180.0, h.angle(t, 1))
	got, _ := h.backend.lastAngle(1)
	assert.Equal(t, 180.0, got)
}

func TestMoveChannelRejectsUnknownAndDisabled(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.s.MoveChannel(42, 10, time.Second, easing.Linear)
	assert.ErrorIs(t, err, motion.ErrUnknownChannel)

	_, err = h.s.MoveChannel(3, 10, time.Second, easing.Linear)
	assert.ErrorIs(t, err, motion.ErrDisabledChannel)

	assert.Empty(t, h.s.ActiveSequences())
	assert.Equal(t, motion.StateIdle, h.s.State())
}

func TestMoveChannelHonoursSpeedLimit(t *testing.T) {
	h := newHarness(t, Config{})
	// 90°/s，从 90 到 180 至少需要 1s
	_, err := h.s.MoveChannel(2, 180, 100*time.Millisecond, easing.Linear)
	require.NoError(t, err)

	h.s.tick(h.clock.Now())
	h.s.tick(h.clock.Advance(500 * time.Millisecond))
	assert.InDelta(t, 135, h.angle(t, 2), 1e-6)

	h.s.tick(h.clock.Advance(500 * time.Millisecond))
	assert.Equal(t, 180.0, h.angle(t, 2))
}

func TestSubmitRejectsInvalidSequence(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.s.Submit(motion.Sequence{Name: "empty"})
	assert.ErrorIs(t, err, motion.ErrInvalidSequence)

	_, err = h.s.Submit(single(t, 3, 10, epoch, time.Second, easing.Linear))
	assert.ErrorIs(t, err, motion.ErrDisabledChannel)

	assert.Empty(t, h.s.ActiveSequences())
}

func TestSubmitRejectedDuringEmergencyStop(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.s.Submit(single(t, 0, 180, epoch, time.Second, easing.Linear))
	require.NoError(t, err)

	assert.Equal(t, 1, h.s.EmergencyStopAll())
	assert.Equal(t, motion.StateEmergencyStop, h.s.State())

	_, err = h.s.Submit(single(t, 1, 10, epoch, time.Second, easing.Linear))
	assert.ErrorIs(t, err, motion.ErrEmergencyStop)
	_, err = h.s.MoveChannel(1, 10, time.Second, easing.Linear)
	assert.ErrorIs(t, err, motion.ErrEmergencyStop)
	assert.Empty(t, h.s.ActiveSequences())
}

func TestEmergencyStopHaltsNextTick(t *testing.T) {
	h := newHarness(t, Config{})
	seq, err := motion.NewSequence("pair").
		Move(0, 180, 0, time.Second, easing.Linear).
		Move(1, 0, 0, time.Second, easing.Linear).
		At(epoch)
	require.NoError(t, err)
	_, err = h.s.Submit(seq)
	require.NoError(t, err)

	report := h.s.tick(h.clock.Advance(300 * time.Millisecond))
	assert.Equal(t, 2, report.Processed)
	frozen := h.angle(t, 0)

	h.s.EmergencyStopAll()
	report = h.s.tick(h.clock.Advance(300 * time.Millisecond))
	assert.Zero(t, report.Processed)
	assert.Zero(t, report.Writes)
	assert.Equal(t, frozen, h.angle(t, 0))
}

func TestResetEmergencyStop(t *testing.T) {
	h := newHarness(t, Config{})

	require.NoError(t, h.s.ResetEmergencyStop())
	assert.Equal(t, motion.StateIdle, h.s.State())

	h.s.EmergencyStopAll()
	require.NoError(t, h.s.ResetEmergencyStop())
	assert.Equal(t, motion.StateIdle, h.s.State())

	_, err := h.s.MoveChannel(0, 45, time.Second, easing.Linear)
	assert.NoError(t, err)
	assert.Equal(t, 1, int(h.s.Metrics().EmergencyStopCount))
}

func TestSequenceCompletesAtLatestEnd(t *testing.T) {
	h := newHarness(t, Config{})
	seq, err := motion.NewSequence("staggered").
		Move(0, 90, 0, 400*time.Millisecond, easing.Linear).
		Move(1, 0, 200*time.Millisecond, 600*time.Millisecond, easing.EaseInOutCubic).
		At(epoch)
	require.NoError(t, err)
	_, err = h.s.Submit(seq)
	require.NoError(t, err)

	// 最晚结束时刻为 800ms
	for _, at := range []time.Duration{0, 200, 400, 600, 790} {
		h.s.tick(epoch.Add(at * time.Millisecond))
		assert.Len(t, h.s.ActiveSequences(), 1, "at %dms", at)
		assert.Equal(t, motion.StateMoving, h.s.State())
	}

	report := h.s.tick(epoch.Add(800 * time.Millisecond))
	assert.Equal(t, 1, report.Retired)
	assert.Empty(t, h.s.ActiveSequences())
	assert.Equal(t, motion.StateIdle, h.s.State())
	assert.Equal(t, 90.0, h.angle(t, 0))
	assert.Equal(t, 0.0, h.angle(t, 1))
}

func TestHoldKeepsSequenceActive(t *testing.T) {
	h := newHarness(t, Config{})
	seq, err := motion.NewSequence("hold").
		Add(motion.Step{Channel: 0, Target: 30, Duration: 100 * time.Millisecond, Hold: 300 * time.Millisecond, Easing: easing.Linear}).
		At(epoch)
	require.NoError(t, err)
	_, err = h.s.Submit(seq)
	require.NoError(t, err)

	h.s.tick(epoch.Add(100 * time.Millisecond))
	assert.Equal(t, 30.0, h.angle(t, 0))
	assert.Len(t, h.s.ActiveSequences(), 1)

	h.s.tick(epoch.Add(400 * time.Millisecond))
	assert.Empty(t, h.s.ActiveSequences())
}

func TestLoopingSequenceShiftsByTotalDuration(t *testing.T) {
	h := newHarness(t, Config{})
	seq, err := motion.NewSequence("wag").
		Move(0, 60, 0, 200*time.Millisecond, easing.Linear).
		Move(0, 0, 200*time.Millisecond, 200*time.Millisecond, easing.Linear).
		Loop().
		TotalDuration(500 * time.Millisecond).
		At(epoch)
	require.NoError(t, err)
	id, err := h.s.Submit(seq)
	require.NoError(t, err)

	h.s.tick(epoch)
	report := h.s.tick(epoch.Add(400 * time.Millisecond))
	assert.Equal(t, 1, report.Looped)
	assert.Zero(t, report.Retired)

	active := h.s.ActiveSequences()
	require.Len(t, active, 1)
	assert.Equal(t, uint64(1), active[0].Cycles)

	// 下一轮从 500ms 开始
	h.s.tick(epoch.Add(450 * time.Millisecond))
	assert.Equal(t, 0.0, h.angle(t, 0))
	h.s.tick(epoch.Add(600 * time.Millisecond))
	assert.InDelta(t, 30, h.angle(t, 0), 1e-6)

	for i := 0; i < 10; i++ {
		h.s.tick(epoch.Add(time.Duration(i)*500*time.Millisecond + time.Second))
	}
	assert.Len(t, h.s.ActiveSequences(), 1)
	assert.Equal(t, motion.StateMoving, h.s.State())

	require.NoError(t, h.s.CancelSequence(id))
	assert.Empty(t, h.s.ActiveSequences())
	assert.Equal(t, motion.StateIdle, h.s.State())
	assert.ErrorIs(t, h.s.CancelSequence(id), motion.ErrSequenceNotFound)
}

func TestPartialFailureIsolation(t *testing.T) {
	h := newHarness(t, Config{})
	h.backend.setFailing(0, true)

	seq, err := motion.NewSequence("pair").
		Move(0, 180, 0, time.Second, easing.Linear).
		Move(1, 0, 0, time.Second, easing.Linear).
		At(epoch)
	require.NoError(t, err)
	_, err = h.s.Submit(seq)
	require.NoError(t, err)

	report := h.s.tick(epoch.Add(500 * time.Millisecond))
	assert.Equal(t, 2, report.Writes)
	assert.Equal(t, 1, report.Failures)

	got, ok := h.backend.lastAngle(1)
	require.True(t, ok)
	assert.InDelta(t, 45, got, 1e-6)
	_, ok = h.backend.lastAngle(0)
	assert.False(t, ok)
	assert.Equal(t, motion.StateMoving, h.s.State())
	assert.Equal(t, uint64(1), h.s.Metrics().HardwareErrors)
}

func TestPriorityLastWriterWins(t *testing.T) {
	h := newHarness(t, Config{})
	high, err := motion.NewSequence("high").Move(1, 10, 0, 0, easing.Linear).Priority(5).At(epoch)
	require.NoError(t, err)
	low, err := motion.NewSequence("low").Move(1, 170, 0, 0, easing.Linear).At(epoch)
	require.NoError(t, err)

	_, err = h.s.Submit(high)
	require.NoError(t, err)
	_, err = h.s.Submit(low)
	require.NoError(t, err)

	active := h.s.ActiveSequences()
	require.Len(t, active, 2)
	assert.Equal(t, "low", active[0].Name)

	h.s.tick(epoch)
	assert.Equal(t, 10.0, h.angle(t, 1))
}

func TestPauseAndResume(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.s.Submit(single(t, 0, 100, epoch, time.Second, easing.Linear))
	require.NoError(t, err)

	h.s.tick(h.clock.Now())
	h.s.tick(h.clock.Advance(500 * time.Millisecond))
	require.NoError(t, h.s.Pause())
	assert.Equal(t, motion.StatePaused, h.s.State())

	report := h.s.tick(h.clock.Advance(2 * time.Second))
	assert.Zero(t, report.Writes)
	assert.InDelta(t, 50, h.angle(t, 0), 1e-6)

	require.NoError(t, h.s.Resume())
	assert.Equal(t, motion.StateMoving, h.s.State())
	assert.ErrorIs(t, h.s.Resume(), motion.ErrNotPaused)

	h.s.tick(h.clock.Advance(250 * time.Millisecond))
	assert.InDelta(t, 75, h.angle(t, 0), 1e-6)
}

func TestErrorStateAfterConsecutiveFailures(t *testing.T) {
	h := newHarness(t, Config{ErrorThreshold: 3})
	h.backend.setFailing(0, true)
	_, err := h.s.Submit(single(t, 0, 100, epoch, 10*time.Second, easing.Linear))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		h.s.tick(h.clock.Advance(20 * time.Millisecond))
	}
	assert.Equal(t, motion.StateError, h.s.State())

	h.backend.setFailing(0, false)
	h.s.tick(h.clock.Advance(20 * time.Millisecond))
	assert.Equal(t, motion.StateMoving, h.s.State())

	h.backend.setFailing(0, true)
	for i := 0; i < 3; i++ {
		h.s.tick(h.clock.Advance(20 * time.Millisecond))
	}
	require.Equal(t, motion.StateError, h.s.State())
	require.NoError(t, h.s.ResetEmergencyStop())
	assert.Equal(t, motion.StateMoving, h.s.State())
}

func TestCenterAll(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.s.MoveChannel(1, 10, 0, easing.Linear)
	require.NoError(t, err)
	h.s.tick(h.clock.Now())
	assert.Equal(t, 10.0, h.angle(t, 1))

	_, err = h.s.CenterAll(0, easing.Linear)
	require.NoError(t, err)
	h.s.tick(h.clock.Advance(time.Millisecond))
	assert.Equal(t, 90.0, h.angle(t, 1))
	assert.Equal(t, 0.0, h.angle(t, 0))
}

func TestChannelStatesReportTarget(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.s.MoveChannel(1, 120, time.Second, easing.Linear)
	require.NoError(t, err)
	h.s.tick(h.clock.Now())

	states := h.s.ChannelStates()
	require.Len(t, states, 4)
	assert.Equal(t, "eye_pan", states[1].Name)
	assert.Equal(t, 120.0, states[1].TargetAngle)
	assert.Equal(t, 90.0, states[1].CurrentAngle)
}

func TestMetricsSnapshot(t *testing.T) {
	h := newHarness(t, Config{})
	snap := h.s.Metrics()
	assert.Equal(t, motion.StateIdle, snap.State)
	assert.Equal(t, 4, snap.ConfiguredChannels)
	assert.Equal(t, 3, snap.EnabledChannels)
	assert.False(t, snap.HardwareLive)
	assert.Equal(t, "recording", snap.Backend)
	assert.Equal(t, DefaultTickRate, snap.TickRateHz)
	assert.False(t, snap.EmergencyStopActive)
}

func TestStartAndShutdown(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := newRecordingBackend()
	act, err := device.New(backend, testChannels(), time.Second, log)
	require.NoError(t, err)
	s, err := New(act, Config{TickRate: 200, Logger: log})
	require.NoError(t, err)

	s.Start()
	s.Start()
	_, err = s.MoveChannel(1, 120, 20*time.Millisecond, easing.Linear)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return s.State() == motion.StateIdle
	}, 2*time.Second, 5*time.Millisecond)
	got, ok := backend.lastAngle(1)
	require.True(t, ok)
	assert.Equal(t, 120.0, got)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err = s.MoveChannel(1, 10, 0, easing.Linear)
	assert.ErrorIs(t, err, motion.ErrSchedulerStopped)
}

// stuckChannelBackend 指定通道的写入阻塞到 release 关闭，其余通道正常
type stuckChannelBackend struct {
	*recordingBackend
	channel int
	entered atomic.Int32
	release chan struct{}
}

func (b *stuckChannelBackend) SetAngle(ctx context.Context, channel int, angle float64) error {
	if channel == b.channel {
		b.entered.Add(1)
		<-b.release
		return nil
	}
	return b.recordingBackend.SetAngle(ctx, channel, angle)
}

func TestStuckWriteDoesNotStarveTelemetry(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &stuckChannelBackend{recordingBackend: newRecordingBackend(), channel: 0, release: make(chan struct{})}
	act, err := device.New(backend, testChannels(), 10*time.Millisecond, log)
	require.NoError(t, err)

	clock := &fakeClock{now: epoch}
	s, err := New(act, Config{Clock: clock.Now, Logger: log})
	require.NoError(t, err)

	seq, err := motion.NewSequence("stuck").
		Move(0, 90, 0, time.Second, easing.Linear).
		Move(1, 45, 0, time.Second, easing.Linear).
		At(epoch)
	require.NoError(t, err)
	_, err = s.Submit(seq)
	require.NoError(t, err)

	ticking := make(chan struct{})
	go func() {
		defer close(ticking)
		s.tick(clock.Now())
		for i := 0; i < 40; i++ {
			s.tick(clock.Advance(20 * time.Millisecond))
		}
	}()

	var slowest time.Duration
	for done := false; !done; {
		select {
		case <-ticking:
			done = true
		default:
			start := time.Now()
			snap := s.Metrics()
			slowest = max(slowest, time.Since(start))
			assert.LessOrEqual(t, snap.WritesInFlight, 1)
			time.Sleep(time.Millisecond)
		}
	}
	assert.Less(t, slowest, 100*time.Millisecond)

	// 卡住的通道只进入后端一次，其余通道照常写入
	assert.Equal(t, int32(1), backend.entered.Load())
	assert.Equal(t, 1, act.InFlight())
	assert.Equal(t, 1, s.Metrics().WritesInFlight)
	got, ok := backend.lastAngle(1)
	require.True(t, ok)
	assert.InDelta(t, 90-45*0.8, got, 1e-6)

	close(backend.release)
	require.Eventually(t, func() bool { return s.Metrics().WritesInFlight == 0 }, time.Second, time.Millisecond)
}
