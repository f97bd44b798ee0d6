package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentComplete(t *testing.T) {
	tests := []struct {
		name           string
		current, total int64
		want           float64
	}{
		{"zero total", 5, 0, 0},
		{"negative total", 5, -1, 0},
		{"unstarted", 0, 45, 0},
		{"partial", 20, 40, 50},
		{"complete", 45, 45, 100},
		{"overshoot is clamped", 60, 45, 100},
		{"negative current is clamped", -3, 45, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentComplete(tt.current, tt.total))
		})
	}
}

func TestCounterKeys(t *testing.T) {
	assert.Equal(t, "B1_current_count", CurrentCountKey("B1"))
	assert.Equal(t, "B1_total_count", TotalCountKey("B1"))
}
