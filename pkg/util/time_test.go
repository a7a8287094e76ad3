package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"30", 30 * time.Second},
		{"1h30m", 90 * time.Minute},
		{" 5m ", 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDuration("xd")
	assert.Error(t, err)
}

func TestDurationOr(t *testing.T) {
	assert.Equal(t, time.Minute, DurationOr("", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("bogus", time.Minute))
	assert.Equal(t, time.Minute, DurationOr("-5s", time.Minute))
	assert.Equal(t, 2*time.Hour, DurationOr("2h", time.Minute))
}
