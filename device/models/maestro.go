package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"animatronic/device"

	"github.com/tarm/serial"
)

// MaestroName maestro 后端类型名
const MaestroName = "maestro"

// Maestro 紧凑协议指令
const (
	maestroSetTarget       = 0x84
	maestroSetSpeed        = 0x87
	maestroSetAcceleration = 0x89
	maestroGetErrors       = 0xA1
)

const (
	maestroQueueSize    = 8
	maestroCloseTimeout = 200 * time.Millisecond
)

var errPortClosed = errors.New("串口已关闭")

// writeRequest 交给写协程的一帧指令
type writeRequest struct {
	ctx   context.Context
	frame []byte
	done  chan error
}

// MaestroBackend 通过串口驱动 Pololu Maestro 舵机控制器
type MaestroBackend struct {
	portName   string
	baud       int
	minPulse   float64 // 微秒
	maxPulse   float64 // 微秒
	angleRange float64 // 脉宽区间对应的角度范围

	open func() (io.ReadWriteCloser, error)

	// mutex 只保护下面的生命周期字段，不在串口写入期间持有
	mutex    sync.Mutex
	port     io.ReadWriteCloser
	requests chan writeRequest
	quit     chan struct{}
	stopped  chan struct{}

	statusMu sync.Mutex
	status   device.Status
}

// NewMaestroBackend 根据参数创建后端。
// 参数：port（必填）、baud（默认 9600）、min_pulse_us（默认 500）、max_pulse_us（默认 2500）、angle_range（默认 180）。
func NewMaestroBackend(params map[string]any) (device.Backend, error) {
	portName, ok := params["port"].(string)
	if !ok || portName == "" {
		return nil, fmt.Errorf("缺少串口配置 port")
	}
	baud, err := uintParam(params, "baud", 9600)
	if err != nil {
		return nil, err
	}
	minPulse, err := uintParam(params, "min_pulse_us", 500)
	if err != nil {
		return nil, err
	}
	maxPulse, err := uintParam(params, "max_pulse_us", 2500)
	if err != nil {
		return nil, err
	}
	angleRange, err := uintParam(params, "angle_range", 180)
	if err != nil {
		return nil, err
	}
	if minPulse >= maxPulse || angleRange == 0 {
		return nil, fmt.Errorf("无效的脉宽/角度范围：%d-%dus, %d°", minPulse, maxPulse, angleRange)
	}

	b := &MaestroBackend{
		portName:   portName,
		baud:       int(baud),
		minPulse:   float64(minPulse),
		maxPulse:   float64(maxPulse),
		angleRange: float64(angleRange),
	}
	b.open = func() (io.ReadWriteCloser, error) {
		port, err := serial.OpenPort(&serial.Config{
			Name:        b.portName,
			Baud:        b.baud,
			ReadTimeout: 100 * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		return port, nil
	}
	return b, nil
}

func (b *MaestroBackend) Name() string { return MaestroName }

// Initialize 打开串口，读取错误寄存器确认控制器在线，并下发速度/加速度限制。
// 握手完成后由单独的写协程按顺序写串口。
func (b *MaestroBackend) Initialize(_ context.Context, channels []device.ChannelConfig) error {
	port, err := b.open()
	if err != nil {
		return fmt.Errorf("打开串口 %s 失败：%w", b.portName, err)
	}
	if err := b.handshake(port, channels); err != nil {
		_ = port.Close()
		return err
	}

	requests := make(chan writeRequest, maestroQueueSize)
	quit := make(chan struct{})
	stopped := make(chan struct{})

	b.mutex.Lock()
	b.port, b.requests, b.quit, b.stopped = port, requests, quit, stopped
	b.mutex.Unlock()
	go b.writer(port, requests, quit, stopped)

	b.statusMu.Lock()
	b.status.IsConnected = true
	b.status.LastUpdate = time.Now()
	b.statusMu.Unlock()
	return nil
}

func (b *MaestroBackend) handshake(port io.ReadWriter, channels []device.ChannelConfig) error {
	if _, err := port.Write([]byte{maestroGetErrors}); err != nil {
		return fmt.Errorf("查询控制器错误寄存器失败：%w", err)
	}
	reply := make([]byte, 2)
	if err := readReply(port, reply); err != nil {
		return fmt.Errorf("控制器无响应：%w", err)
	}
	if code := uint16(reply[0]) | uint16(reply[1])<<8; code != 0 {
		return fmt.Errorf("控制器报告错误 0x%04X", code)
	}

	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		if ch.SpeedLimit > 0 {
			if err := writeFrame(port, maestroSetSpeed, ch.ID, b.speedUnits(ch.SpeedLimit)); err != nil {
				return err
			}
		}
		if ch.AccelerationLimit > 0 {
			if err := writeFrame(port, maestroSetAcceleration, ch.ID, b.accelUnits(ch.AccelerationLimit)); err != nil {
				return err
			}
		}
	}
	return nil
}

// writer 按提交顺序写串口；调用方已放弃（ctx 结束）的请求直接丢弃，不会晚于后续指令落到硬件
func (b *MaestroBackend) writer(port io.Writer, requests <-chan writeRequest, quit <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case <-quit:
			return
		case req := <-requests:
			if err := req.ctx.Err(); err != nil {
				req.done <- err
				continue
			}
			_, err := port.Write(req.frame)
			req.done <- err
		}
	}
}

// SetAngle 把目标帧交给写协程，等待结果或 ctx 结束
func (b *MaestroBackend) SetAngle(ctx context.Context, channel int, angle float64) error {
	frame, err := encodeFrame(maestroSetTarget, channel, b.targetUnits(angle))
	if err != nil {
		return err
	}

	b.mutex.Lock()
	requests, quit := b.requests, b.quit
	b.mutex.Unlock()
	if requests == nil {
		return fmt.Errorf("串口未打开")
	}

	req := writeRequest{ctx: ctx, frame: frame, done: make(chan error, 1)}
	select {
	case <-quit:
		return errPortClosed
	default:
	}
	select {
	case requests <- req:
		select {
		case err = <-req.done:
		case <-ctx.Done():
			err = ctx.Err()
		case <-quit:
			err = errPortClosed
		}
	case <-ctx.Done():
		err = ctx.Err()
	case <-quit:
		err = errPortClosed
	}

	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	if err != nil {
		b.status.ErrorCount++
		b.status.LastError = err.Error()
		return fmt.Errorf("串口写入失败：%w", err)
	}
	b.status.LastUpdate = time.Now()
	return nil
}

// Close 停止写协程并关闭串口。关闭串口会打断阻塞中的写入；写协程在 maestroCloseTimeout 内仍未退出时返回错误。
func (b *MaestroBackend) Close() error {
	b.mutex.Lock()
	port, quit, stopped := b.port, b.quit, b.stopped
	b.port, b.requests, b.quit, b.stopped = nil, nil, nil, nil
	b.mutex.Unlock()

	b.statusMu.Lock()
	b.status.IsConnected = false
	b.statusMu.Unlock()

	if port == nil {
		return nil
	}
	close(quit)
	err := port.Close()

	select {
	case <-stopped:
	case <-time.After(maestroCloseTimeout):
		err = errors.Join(err, fmt.Errorf("串口写入在 %s 内未结束", maestroCloseTimeout))
	}
	return err
}

// Status 实现 device.StatusReporter
func (b *MaestroBackend) Status() device.Status {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	return b.status
}

func encodeFrame(cmd byte, channel int, value uint16) ([]byte, error) {
	if channel < 0 || channel > 23 {
		return nil, fmt.Errorf("通道 %d 超出 Maestro 范围", channel)
	}
	return []byte{cmd, byte(channel), byte(value & 0x7F), byte((value >> 7) & 0x7F)}, nil
}

func writeFrame(w io.Writer, cmd byte, channel int, value uint16) error {
	frame, err := encodeFrame(cmd, channel, value)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("串口写入失败：%w", err)
	}
	return nil
}

func (b *MaestroBackend) usPerDegree() float64 {
	return (b.maxPulse - b.minPulse) / b.angleRange
}

// targetUnits 角度换算为 0.25µs 单位的脉宽
func (b *MaestroBackend) targetUnits(angle float64) uint16 {
	us := b.minPulse + angle*b.usPerDegree()
	return clampUnits(us*4, 0x3FFF)
}

// speedUnits 度/秒换算为 (0.25µs)/(10ms)
func (b *MaestroBackend) speedUnits(degPerSec float64) uint16 {
	return clampUnits(degPerSec*b.usPerDegree()*4/100, 0x3FFF)
}

// accelUnits 度/秒² 换算为 (0.25µs)/(10ms)/(80ms)
func (b *MaestroBackend) accelUnits(degPerSec2 float64) uint16 {
	return clampUnits(degPerSec2*b.usPerDegree()*4*0.0008, 255)
}

func clampUnits(v float64, limit uint16) uint16 {
	v = math.Round(v)
	if v < 1 {
		return 1
	}
	if v > float64(limit) {
		return limit
	}
	return uint16(v)
}

func readReply(r io.Reader, buf []byte) error {
	got := 0
	for attempt := 0; attempt < 3 && got < len(buf); attempt++ {
		n, err := r.Read(buf[got:])
		got += n
		if err != nil && got < len(buf) {
			return err
		}
	}
	if got < len(buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}
