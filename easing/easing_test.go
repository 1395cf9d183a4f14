package easing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestEndpoints(t *testing.T) {
	for _, k := range All() {
		t.Run(string(k), func(t *testing.T) {
			fn := Get(k)
			assert.InDelta(t, 0.0, fn(0), epsilon, "f(0)")
			assert.InDelta(t, 1.0, fn(1), epsilon, "f(1)")
		})
	}
}

func TestBoundedKindsStayInRange(t *testing.T) {
	for _, k := range All() {
		if k.Overshoots() {
			continue
		}
		fn := Get(k)
		for i := 0; i <= 1000; i++ {
			v := fn(float64(i) / 1000)
			require.GreaterOrEqual(t, v, -epsilon, "%s at step %d", k, i)
			require.LessOrEqual(t, v, 1+epsilon, "%s at step %d", k, i)
		}
	}
}

func TestOvershootKindsLeaveRange(t *testing.T) {
	outside := func(fn Func) bool {
		for i := 1; i < 1000; i++ {
			v := fn(float64(i) / 1000)
			if v < -epsilon || v > 1+epsilon {
				return true
			}
		}
		return false
	}

	assert.True(t, outside(Get(EaseInBack)), "ease_in_back should dip below 0")
	assert.True(t, outside(Get(EaseOutBack)), "ease_out_back should pass 1")
	for _, k := range All() {
		assert.Equal(t, k.Overshoots(), outside(Get(k)), "%s", k)
	}
	assert.False(t, BounceOut.Overshoots())
}

func TestKnownValues(t *testing.T) {
	cases := []struct {
		kind Kind
		t    float64
		want float64
	}{
		{Linear, 0.25, 0.25},
		{EaseInQuad, 0.5, 0.25},
		{EaseOutQuad, 0.5, 0.75},
		{EaseInOutQuad, 0.25, 0.125},
		{EaseInOutQuad, 0.75, 0.875},
		{EaseInCubic, 0.5, 0.125},
		{EaseOutCubic, 0.5, 0.875},
		{EaseInOutCubic, 0.5, 0.5},
		{EaseInQuart, 0.5, 0.0625},
		{EaseOutQuart, 0.5, 0.9375},
		{EaseInOutQuart, 0.25, 0.03125},
		{BounceOut, 1 / bounceD1, 1},
		{BounceOut, 0.5, 0.765625},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, Get(tc.kind)(tc.t), epsilon, "%s(%v)", tc.kind, tc.t)
	}
}

func TestUnknownKindFallsBack(t *testing.T) {
	fn := Get(Kind("wobble"))
	assert.InDelta(t, inOutCubic(0.3), fn(0.3), epsilon)
	assert.False(t, Kind("wobble").Valid())
}

func TestParse(t *testing.T) {
	k, ok := Parse("Ease-Out-Back")
	assert.True(t, ok)
	assert.Equal(t, EaseOutBack, k)

	k, ok = Parse("nope")
	assert.False(t, ok)
	assert.Equal(t, Default, k)

	k, ok = Parse("")
	assert.False(t, ok)
	assert.Equal(t, Default, k)
}

func TestApplyClampsInput(t *testing.T) {
	assert.Equal(t, 0.0, Apply(Linear, -0.5))
	assert.Equal(t, 1.0, Apply(Linear, 2))
	assert.InDelta(t, 1.0, Apply(ElasticOut, 1.5), epsilon)
}
