package motion

import (
	"time"

	"animatronic/easing"
)

// 默认头部装置的通道编号，与 pkg/config.GetDefaultConfig 一致
const (
	ChannelEyePan   = 0
	ChannelEyeTilt  = 1
	ChannelEyelids  = 2
	ChannelJaw      = 3
	ChannelNeckPan  = 4
	ChannelNeckTilt = 5
)

const ms = time.Millisecond

// DefaultTemplates 返回内置的角色动作
func DefaultTemplates() []Template {
	return []Template{
		{
			Name:        "nod",
			Description: "点头",
			Steps: []Step{
				{Channel: ChannelNeckTilt, Target: 115, Offset: 0, Duration: 350 * ms, Easing: easing.EaseOutQuad},
				{Channel: ChannelNeckTilt, Target: 75, Offset: 350 * ms, Duration: 450 * ms, Easing: easing.EaseInOutCubic},
				{Channel: ChannelNeckTilt, Target: 90, Offset: 800 * ms, Duration: 400 * ms, Easing: easing.EaseOutBack},
			},
		},
		{
			Name:        "shake",
			Description: "摇头",
			Steps: []Step{
				{Channel: ChannelNeckPan, Target: 60, Offset: 0, Duration: 300 * ms, Easing: easing.EaseOutQuad},
				{Channel: ChannelNeckPan, Target: 120, Offset: 300 * ms, Duration: 500 * ms, Easing: easing.EaseInOutQuad},
				{Channel: ChannelNeckPan, Target: 90, Offset: 800 * ms, Duration: 400 * ms, Easing: easing.EaseOutCubic},
			},
		},
		{
			Name:        "look_around",
			Description: "眼睛先动，脖子跟随",
			Steps: []Step{
				{Channel: ChannelEyePan, Target: 40, Offset: 0, Duration: 200 * ms, Easing: easing.EaseOutQuart},
				{Channel: ChannelNeckPan, Target: 50, Offset: 150 * ms, Duration: 900 * ms, Easing: easing.EaseInOutCubic},
				{Channel: ChannelEyePan, Target: 140, Offset: 1300 * ms, Duration: 250 * ms, Easing: easing.EaseOutQuart},
				{Channel: ChannelNeckPan, Target: 130, Offset: 1450 * ms, Duration: 1200 * ms, Easing: easing.EaseInOutCubic},
				{Channel: ChannelEyePan, Target: 90, Offset: 2900 * ms, Duration: 200 * ms, Easing: easing.EaseOutQuad},
				{Channel: ChannelNeckPan, Target: 90, Offset: 3000 * ms, Duration: 800 * ms, Easing: easing.EaseOutBack},
			},
		},
		{
			Name:        "blink",
			Description: "眨眼",
			Steps: []Step{
				{Channel: ChannelEyelids, Target: 0, Offset: 0, Duration: 80 * ms, Easing: easing.EaseInQuad, Hold: 40 * ms},
				{Channel: ChannelEyelids, Target: 90, Offset: 120 * ms, Duration: 140 * ms, Easing: easing.EaseOutQuad},
			},
		},
		{
			Name:          "talk",
			Description:   "循环开合下巴，直到被取消",
			Loop:          true,
			TotalDuration: 500 * ms,
			Steps: []Step{
				{Channel: ChannelJaw, Target: 120, Offset: 0, Duration: 180 * ms, Easing: easing.EaseOutQuad},
				{Channel: ChannelJaw, Target: 90, Offset: 250 * ms, Duration: 200 * ms, Easing: easing.BounceOut},
			},
		},
	}
}

// NewDefaultLibrary 创建包含内置动作的序列库
func NewDefaultLibrary() *Library {
	l := NewLibrary()
	for _, t := range DefaultTemplates() {
		l.Register(t)
	}
	return l
}
