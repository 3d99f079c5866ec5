package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridCell(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		size float64
		want int64
	}{
		{"inside positive cell", 51.5194, 0.001, 51519},
		{"inside negative cell", -0.1273, 0.001, -128},
		{"lower edge belongs to its own cell", -0.127, 0.001, -127},
		{"division rounding below a grid line", 0.3, 0.1, 3},
		{"coarse crime grid", 51.5074, 0.005, 10301},
		{"zero", 0, 0.005, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GridCell(tt.v, tt.size))
		})
	}
}
