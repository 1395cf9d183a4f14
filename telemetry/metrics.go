// Package telemetry 以 Prometheus 格式导出调度器与 HTTP 指标。
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"animatronic/motion"
	"animatronic/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 实现 scheduler.Observer，并在每次抓取前刷新状态类仪表
type Metrics struct {
	registry *prometheus.Registry

	ticksTotal          prometheus.Counter
	tickDuration        prometheus.Histogram
	keyframesProcessed  prometheus.Counter
	hardwareErrorsTotal *prometheus.CounterVec
	sequencesAccepted   prometheus.Counter
	sequencesRejected   *prometheus.CounterVec
	sequencesRetired    prometheus.Counter
	emergencyStopsTotal prometheus.Counter
	stateTransitions    *prometheus.CounterVec

	activeSequences prometheus.Gauge
	motionState     *prometheus.GaugeVec
	channelAngle    *prometheus.GaugeVec
	hardwareLive    prometheus.Gauge
	writesInFlight  prometheus.Gauge

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
}

var _ scheduler.Observer = (*Metrics)(nil)

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_ticks_total",
			Help: "Total number of control loop ticks",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "motion_tick_duration_seconds",
			Help:    "Time spent in one control loop tick",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .02, .05},
		}),
		keyframesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_keyframes_processed_total",
			Help: "Total number of keyframe interpolation steps",
		}),
		hardwareErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "motion_hardware_errors_total",
			Help: "Total number of failed channel writes",
		}, []string{"channel"}),
		sequencesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_sequences_accepted_total",
			Help: "Total number of sequences added to the active set",
		}),
		sequencesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "motion_sequences_rejected_total",
			Help: "Total number of rejected sequence submissions by reason",
		}, []string{"reason"}),
		sequencesRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_sequences_completed_total",
			Help: "Total number of sequences that ran to completion",
		}),
		emergencyStopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_emergency_stops_total",
			Help: "Total number of emergency stops",
		}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "motion_state_transitions_total",
			Help: "Motion state transitions by target state",
		}, []string{"to"}),
		activeSequences: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "motion_active_sequences",
			Help: "Number of sequences in the active set",
		}),
		motionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "motion_state",
			Help: "Current motion state (1 for the active state)",
		}, []string{"state"}),
		channelAngle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "motion_channel_angle_degrees",
			Help: "Last commanded angle per channel",
		}, []string{"channel", "name"}),
		hardwareLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "motion_hardware_live",
			Help: "1 when a real hardware backend is connected",
		}),
		writesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "motion_writes_in_flight",
			Help: "Channel writes that have not yet returned from the backend",
		}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
	}

	m.registry.MustRegister(
		m.ticksTotal,
		m.tickDuration,
		m.keyframesProcessed,
		m.hardwareErrorsTotal,
		m.sequencesAccepted,
		m.sequencesRejected,
		m.sequencesRetired,
		m.emergencyStopsTotal,
		m.stateTransitions,
		m.activeSequences,
		m.motionState,
		m.channelAngle,
		m.hardwareLive,
		m.writesInFlight,
		m.requestsTotal,
		m.errorsTotal,
	)
	return m
}

func (m *Metrics) TickCompleted(took time.Duration, report scheduler.TickReport) {
	m.ticksTotal.Inc()
	m.tickDuration.Observe(took.Seconds())
	m.keyframesProcessed.Add(float64(report.Processed))
}

func (m *Metrics) HardwareError(channel int) {
	m.hardwareErrorsTotal.WithLabelValues(strconv.Itoa(channel)).Inc()
}

func (m *Metrics) StateChanged(_, to motion.MotionState) {
	m.stateTransitions.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) SequenceAccepted(motion.Sequence) { m.sequencesAccepted.Inc() }

func (m *Metrics) SequenceRejected(reason error) {
	m.sequencesRejected.WithLabelValues(rejectReason(reason)).Inc()
}

// rejectReason 把拒绝原因归类为有限的标签值
func rejectReason(err error) string {
	switch {
	case errors.Is(err, motion.ErrEmergencyStop):
		return "emergency_stop"
	case errors.Is(err, motion.ErrUnknownChannel):
		return "unknown_channel"
	case errors.Is(err, motion.ErrDisabledChannel):
		return "disabled_channel"
	case errors.Is(err, motion.ErrInvalidKeyframe), errors.Is(err, motion.ErrInvalidSequence):
		return "invalid"
	case errors.Is(err, motion.ErrSchedulerStopped):
		return "stopped"
	default:
		return "other"
	}
}

func (m *Metrics) SequenceRetired(motion.Sequence) { m.sequencesRetired.Inc() }

func (m *Metrics) EmergencyStopped(int) { m.emergencyStopsTotal.Inc() }

// Source 抓取时读取的状态来源，由 *scheduler.Scheduler 实现
type Source interface {
	Metrics() scheduler.Snapshot
	ChannelStates() []scheduler.ChannelSnapshot
}

// Refresh 用最新快照更新状态类仪表
func (m *Metrics) Refresh(src Source) {
	snap := src.Metrics()
	m.activeSequences.Set(float64(snap.ActiveSequenceCount))
	for _, st := range []motion.MotionState{
		motion.StateIdle, motion.StateMoving, motion.StatePaused, motion.StateEmergencyStop, motion.StateError,
	} {
		v := 0.0
		if st == snap.State {
			v = 1
		}
		m.motionState.WithLabelValues(st.String()).Set(v)
	}
	if snap.HardwareLive {
		m.hardwareLive.Set(1)
	} else {
		m.hardwareLive.Set(0)
	}
	m.writesInFlight.Set(float64(snap.WritesInFlight))
	for _, ch := range src.ChannelStates() {
		m.channelAngle.WithLabelValues(strconv.Itoa(ch.ID), ch.Name).Set(ch.CurrentAngle)
	}
}

// Handler 返回 Prometheus 抓取端点；src 非空时抓取前先刷新仪表
func (m *Metrics) Handler(src Source) http.Handler {
	exporter := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if src != nil {
			m.Refresh(src)
		}
		exporter.ServeHTTP(w, r)
	})
}

// Middleware 统计请求数与错误响应数（状态码 >= 400）
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.requestsTotal.Inc()
		if c.Writer.Status() >= http.StatusBadRequest {
			m.errorsTotal.Inc()
		}
	}
}
