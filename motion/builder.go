package motion

import (
	"time"

	"animatronic/easing"
)

// Step 以相对序列起点的偏移描述一个关键帧
type Step struct {
	Channel  int           `yaml:"channel" json:"channel"`
	Target   float64       `yaml:"target" json:"target"`
	Offset   time.Duration `yaml:"offset" json:"offset"`
	Duration time.Duration `yaml:"duration" json:"duration"`
	Easing   easing.Kind   `yaml:"easing" json:"easing"`
	Hold     time.Duration `yaml:"hold,omitempty" json:"hold,omitempty"`
}

// Builder 逐步组装一个 Sequence
type Builder struct {
	name     string
	steps    []Step
	loop     bool
	priority int
	total    time.Duration
}

// NewSequence 创建序列构建器
func NewSequence(name string) *Builder {
	return &Builder{name: name}
}

// Add 追加一个步骤。未指定缓动时使用 easing.Default。
func (b *Builder) Add(s Step) *Builder {
	if s.Easing == "" {
		s.Easing = easing.Default
	}
	b.steps = append(b.steps, s)
	return b
}

// Move 追加一个通道动作的便捷写法
func (b *Builder) Move(channel int, target float64, offset, duration time.Duration, kind easing.Kind) *Builder {
	return b.Add(Step{Channel: channel, Target: target, Offset: offset, Duration: duration, Easing: kind})
}

// Loop 标记为循环序列
func (b *Builder) Loop() *Builder {
	b.loop = true
	return b
}

func (b *Builder) Priority(p int) *Builder {
	b.priority = p
	return b
}

// TotalDuration 设置声明的总时长，循环序列每轮按此平移
func (b *Builder) TotalDuration(d time.Duration) *Builder {
	b.total = d
	return b
}

// At 以 start 为起点生成序列并校验
func (b *Builder) At(start time.Time) (Sequence, error) {
	seq := Sequence{
		Name:          b.name,
		Keyframes:     make([]Keyframe, 0, len(b.steps)),
		TotalDuration: b.total,
		Loop:          b.loop,
		Priority:      b.priority,
	}
	for _, s := range b.steps {
		seq.Keyframes = append(seq.Keyframes, Keyframe{
			Channel:  s.Channel,
			Target:   s.Target,
			Start:    start.Add(s.Offset),
			Duration: s.Duration,
			Easing:   s.Easing,
			Hold:     s.Hold,
		})
	}
	if err := seq.Validate(); err != nil {
		return Sequence{}, err
	}
	return seq, nil
}
