// Package easing 提供归一化的缓动曲线，把进度 t ∈ [0,1] 映射为缓动后的进度。
//
// 所有曲线满足 f(0) = 0、f(1) = 1。Back 与 Elastic 曲线在两端之间可能越过 [0,1]。
package easing

import (
	"math"
	"strings"
)

// Kind 缓动类型
type Kind string

const (
	Linear         Kind = "linear"
	EaseInQuad     Kind = "ease_in_quad"
	EaseOutQuad    Kind = "ease_out_quad"
	EaseInOutQuad  Kind = "ease_in_out_quad"
	EaseInCubic    Kind = "ease_in_cubic"
	EaseOutCubic   Kind = "ease_out_cubic"
	EaseInOutCubic Kind = "ease_in_out_cubic"
	EaseInQuart    Kind = "ease_in_quart"
	EaseOutQuart   Kind = "ease_out_quart"
	EaseInOutQuart Kind = "ease_in_out_quart"
	EaseInBack     Kind = "ease_in_back"
	EaseOutBack    Kind = "ease_out_back"
	EaseInOutBack  Kind = "ease_in_out_back"
	BounceOut      Kind = "bounce_out"
	ElasticOut     Kind = "elastic_out"
)

// Default 未知类型时使用的缓动
const Default = EaseInOutCubic

const (
	backC1 = 1.70158
	backC2 = backC1 * 1.525
	backC3 = backC1 + 1

	bounceN1 = 7.5625
	bounceD1 = 2.75

	elasticC4 = (2 * math.Pi) / 3
)

// Func 缓动函数
type Func func(t float64) float64

var table = map[Kind]Func{
	Linear:         linear,
	EaseInQuad:     inQuad,
	EaseOutQuad:    outQuad,
	EaseInOutQuad:  inOutQuad,
	EaseInCubic:    inCubic,
	EaseOutCubic:   outCubic,
	EaseInOutCubic: inOutCubic,
	EaseInQuart:    inQuart,
	EaseOutQuart:   outQuart,
	EaseInOutQuart: inOutQuart,
	EaseInBack:     inBack,
	EaseOutBack:    outBack,
	EaseInOutBack:  inOutBack,
	BounceOut:      bounceOut,
	ElasticOut:     elasticOut,
}

// All 返回全部已定义的缓动类型，顺序固定
func All() []Kind {
	return []Kind{
		Linear,
		EaseInQuad, EaseOutQuad, EaseInOutQuad,
		EaseInCubic, EaseOutCubic, EaseInOutCubic,
		EaseInQuart, EaseOutQuart, EaseInOutQuart,
		EaseInBack, EaseOutBack, EaseInOutBack,
		BounceOut, ElasticOut,
	}
}

// Valid 判断是否为已定义的缓动类型
func (k Kind) Valid() bool {
	_, ok := table[k]
	return ok
}

// Overshoots 报告该曲线在 (0,1) 内是否会越过 [0,1]。BounceOut 只在区间内回弹，不算越界。
func (k Kind) Overshoots() bool {
	switch k {
	case EaseInBack, EaseOutBack, EaseInOutBack, ElasticOut:
		return true
	}
	return false
}

// Get 查找缓动函数。未知类型回退到 Default，不返回错误。
func Get(k Kind) Func {
	if fn, ok := table[k]; ok {
		return fn
	}
	return table[Default]
}

// Parse 把外部输入（大小写、连字符不敏感）解析为 Kind。
// 无法识别时返回 Default 和 false。
func Parse(s string) (Kind, bool) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if k == "" {
		return Default, false
	}
	if k.Valid() {
		return k, true
	}
	return Default, false
}

// Apply 对 t 应用缓动。t 会先被限制在 [0,1]。
func Apply(k Kind, t float64) float64 {
	switch {
	case t <= 0:
		t = 0
	case t >= 1:
		t = 1
	}
	return Get(k)(t)
}

func linear(t float64) float64 { return t }

func inQuad(t float64) float64  { return t * t }
func outQuad(t float64) float64 { return 1 - (1-t)*(1-t) }
func inOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

func inCubic(t float64) float64  { return t * t * t }
func outCubic(t float64) float64 { return 1 - math.Pow(1-t, 3) }
func inOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func inQuart(t float64) float64  { return t * t * t * t }
func outQuart(t float64) float64 { return 1 - math.Pow(1-t, 4) }
func inOutQuart(t float64) float64 {
	if t < 0.5 {
		return 8 * t * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 4)/2
}

func inBack(t float64) float64 {
	return backC3*t*t*t - backC1*t*t
}

func outBack(t float64) float64 {
	return 1 + backC3*math.Pow(t-1, 3) + backC1*math.Pow(t-1, 2)
}

func inOutBack(t float64) float64 {
	if t < 0.5 {
		return (math.Pow(2*t, 2) * ((backC2+1)*2*t - backC2)) / 2
	}
	return (math.Pow(2*t-2, 2)*((backC2+1)*(t*2-2)+backC2) + 2) / 2
}

func bounceOut(t float64) float64 {
	switch {
	case t < 1/bounceD1:
		return bounceN1 * t * t
	case t < 2/bounceD1:
		t -= 1.5 / bounceD1
		return bounceN1*t*t + 0.75
	case t < 2.5/bounceD1:
		t -= 2.25 / bounceD1
		return bounceN1*t*t + 0.9375
	default:
		t -= 2.625 / bounceD1
		return bounceN1*t*t + 0.984375
	}
}

func elasticOut(t float64) float64 {
	// 端点单独处理，避免浮点误差
	if t == 0 {
		return 0
	}
	if t == 1 {
		return 1
	}
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*elasticC4) + 1
}
