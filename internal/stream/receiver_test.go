package stream

import (
	"testing"
	"time"
)

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		name      string
		prev      time.Duration
		connected bool
		want      time.Duration
	}{
		{"first failure starts at minimum", 0, false, reconnectMin},
		{"repeated failures double", reconnectMin, false, 2 * reconnectMin},
		{"capped at maximum", reconnectMax, false, reconnectMax},
		{"near maximum still capped", reconnectMax - time.Second, false, reconnectMax},
		{"drop after healthy connection resets", reconnectMax, true, reconnectMin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextBackoff(tt.prev, tt.connected); got != tt.want {
				t.Errorf("nextBackoff(%v, %v) = %v, want %v", tt.prev, tt.connected, got, tt.want)
			}
		})
	}
}
