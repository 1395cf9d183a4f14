// Package logger 构造结构化日志器和 gin 请求日志中间件。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// New 返回指定级别与格式的日志器。
// level: debug、info、warn、error（默认 info）；format: json 或 text（默认 json）。
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter 与 New 相同，但输出到 w
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel 解析日志级别，无法识别时返回 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RequestLogger 记录每个请求的方法、路径、状态码、耗时和响应大小
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Int("duration_ms", int(time.Since(start).Milliseconds())),
			slog.Int("size", c.Writer.Size()),
		}
		if status >= 500 {
			log.Error("request", attrs...)
			return
		}
		log.Debug("request", attrs...)
	}
}
