package telemetry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"animatronic/device"
	"animatronic/motion"
	"animatronic/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snap     scheduler.Snapshot
	channels []scheduler.ChannelSnapshot
}

func (f fakeSource) Metrics() scheduler.Snapshot { return f.snap }
func (f fakeSource) ChannelStates() []scheduler.ChannelSnapshot { return f.channels }

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserverCounters(t *testing.T) {
	m := New()
	m.TickCompleted(2*time.Millisecond, scheduler.TickReport{Processed: 3, Writes: 3})
	m.TickCompleted(time.Millisecond, scheduler.TickReport{Processed: 2, Writes: 2})
	m.HardwareError(4)
	m.SequenceAccepted(motion.Sequence{})
	m.SequenceRejected(errors.New("nope"))
	m.SequenceRejected(fmt.Errorf("wrapped: %w", motion.ErrEmergencyStop))
	m.SequenceRetired(motion.Sequence{})
	m.EmergencyStopped(2)
	m.StateChanged(motion.StateIdle, motion.StateMoving)

	body := scrape(t, m.Handler(nil))
	assert.Contains(t, body, "motion_ticks_total 2")
	assert.Contains(t, body, "motion_keyframes_processed_total 5")
	assert.Contains(t, body, `motion_hardware_errors_total{channel="4"} 1`)
	assert.Contains(t, body, "motion_sequences_accepted_total 1")
	assert.Contains(t, body, `motion_sequences_rejected_total{reason="other"} 1`)
	assert.Contains(t, body, `motion_sequences_rejected_total{reason="emergency_stop"} 1`)
	assert.Contains(t, body, "motion_sequences_completed_total 1")
	assert.Contains(t, body, "motion_emergency_stops_total 1")
	assert.Contains(t, body, `motion_state_transitions_total{to="moving"} 1`)
	assert.Contains(t, body, "motion_tick_duration_seconds_count 2")
}

func TestHandlerRefreshesGauges(t *testing.T) {
	m := New()
	src := fakeSource{
		snap: scheduler.Snapshot{State: motion.StateMoving, ActiveSequenceCount: 3, HardwareLive: true, WritesInFlight: 1},
		channels: []scheduler.ChannelSnapshot{
			{ChannelConfig: device.ChannelConfig{ID: 3, Name: "jaw"}, CurrentAngle: 42.5},
		},
	}

	body := scrape(t, m.Handler(src))
	assert.Contains(t, body, "motion_active_sequences 3")
	assert.Contains(t, body, `motion_state{state="moving"} 1`)
	assert.Contains(t, body, `motion_state{state="idle"} 0`)
	assert.Contains(t, body, "motion_hardware_live 1")
	assert.Contains(t, body, "motion_writes_in_flight 1")
	assert.Contains(t, body, `motion_channel_angle_degrees{channel="3",name="jaw"} 42.5`)
}

func TestMiddlewareCountsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	for _, path := range []string{"/ok", "/bad", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m.Handler(nil))
	assert.Contains(t, body, "motion_http_requests_total 3")
	assert.Contains(t, body, "motion_http_errors_total 2")
}
