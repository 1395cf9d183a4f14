package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"animatronic/motion"
	"animatronic/scheduler"

	"github.com/gin-gonic/gin"
)

// statusFor 把调度器错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, motion.ErrUnknownChannel),
		errors.Is(err, motion.ErrSequenceNotFound),
		errors.Is(err, motion.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, motion.ErrEmergencyStop),
		errors.Is(err, motion.ErrNotPaused),
		errors.Is(err, scheduler.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, motion.ErrSchedulerStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, motion.ErrDisabledChannel),
		errors.Is(err, motion.ErrInvalidKeyframe),
		errors.Is(err, motion.ErrInvalidSequence):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, prefix string, err error) {
	c.JSON(statusFor(err), ApiResponse{
		Status: "error",
		Error:  prefix + err.Error(),
	})
}

// seconds 把秒数换算为 time.Duration
func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}
