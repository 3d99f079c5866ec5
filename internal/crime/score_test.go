package crime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_Scenarios(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 0},
		{1, 5},   // raw 1 -> 1, clamped up
		{10, 5},  // raw 5 -> 3, clamped up
		{20, 5},  // raw 10 -> 5
		{50, 13}, // raw 25 -> 12.5 -> 13
		{51, 13}, // raw 25
		{125, 18},
		{200, 23},  // raw 45 -> 22.5 -> 23
		{600, 28},  // raw 55 -> 27.5 -> 28
		{1000, 33}, // raw 65 -> 32.5 -> 33
		{1001, 33}, // log10(2)/log10(4001)*10 = 0.84 -> raw 66 -> 33
		{5000, 38}, // raw 75 -> 37.5 -> 38
		{1_000_000, 38},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(tt.total), "total=%d", tt.total)
	}
}

func TestScore_Bounds(t *testing.T) {
	assert.Equal(t, 0, Score(-3))

	prev := 0
	for total := 0; total <= 20000; total += 7 {
		s := Score(total)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 75)
		if total > 0 {
			assert.GreaterOrEqual(t, s, 5, "total=%d", total)
		}
		assert.GreaterOrEqual(t, s, prev, "score must not decrease, total=%d", total)
		prev = s
	}
}

func TestClamp100(t *testing.T) {
	assert.Equal(t, 0, Clamp100(-10))
	assert.Equal(t, 42, Clamp100(42))
	assert.Equal(t, 100, Clamp100(250))
}
