package device

import (
	"fmt"
	"math"
)

// ChannelConfig 单个执行器通道的静态配置，创建后不再修改
type ChannelConfig struct {
	ID                int     `json:"id" yaml:"id" validate:"gte=0"`
	Name              string  `json:"name" yaml:"name" validate:"required"`
	MinAngle          float64 `json:"min_angle" yaml:"min_angle"`
	MaxAngle          float64 `json:"max_angle" yaml:"max_angle"`
	CenterAngle       float64 `json:"center_angle" yaml:"center_angle"`
	SpeedLimit        float64 `json:"speed_limit" yaml:"speed_limit" validate:"gte=0"`               // 度/秒，0 表示不限
	AccelerationLimit float64 `json:"acceleration_limit" yaml:"acceleration_limit" validate:"gte=0"` // 度/秒²，仅上报
	Enabled           bool    `json:"enabled" yaml:"enabled"`
}

// Validate 检查角度范围
func (c ChannelConfig) Validate() error {
	for _, v := range []float64{c.MinAngle, c.MaxAngle, c.CenterAngle, c.SpeedLimit, c.AccelerationLimit} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("通道 %d (%s) 含非有限数值", c.ID, c.Name)
		}
	}
	if c.MinAngle >= c.MaxAngle {
		return fmt.Errorf("通道 %d (%s) min_angle %.1f 必须小于 max_angle %.1f", c.ID, c.Name, c.MinAngle, c.MaxAngle)
	}
	if c.CenterAngle < c.MinAngle || c.CenterAngle > c.MaxAngle {
		return fmt.Errorf("通道 %d (%s) center_angle %.1f 超出 [%.1f, %.1f]", c.ID, c.Name, c.CenterAngle, c.MinAngle, c.MaxAngle)
	}
	if c.SpeedLimit < 0 || c.AccelerationLimit < 0 {
		return fmt.Errorf("通道 %d (%s) 速度/加速度限制不能为负", c.ID, c.Name)
	}
	return nil
}

// Clamp 把角度限制在 [MinAngle, MaxAngle]
func (c ChannelConfig) Clamp(angle float64) float64 {
	if angle < c.MinAngle {
		return c.MinAngle
	}
	if angle > c.MaxAngle {
		return c.MaxAngle
	}
	return angle
}
