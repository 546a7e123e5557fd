package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_States(t *testing.T) {
	healthy := NewHealthy("endpoint", "ok")
	assert.True(t, healthy.IsHealthy())
	assert.True(t, healthy.Healthy)
	assert.False(t, healthy.IsDegraded())
	assert.False(t, healthy.Timestamp.IsZero())

	degraded := NewDegraded("endpoint", "full")
	assert.True(t, degraded.IsDegraded())
	assert.False(t, degraded.Healthy)

	unhealthy := NewUnhealthy("endpoint", "closed")
	assert.True(t, unhealthy.IsUnhealthy())
	assert.False(t, unhealthy.Healthy)
}

func TestStatus_WithSubStatusCopies(t *testing.T) {
	base := NewHealthy("ringdev", "ok").WithSubStatus(NewHealthy("a", "ok"))
	first := base.WithSubStatus(NewHealthy("b", "ok"))
	second := base.WithSubStatus(NewDegraded("c", "full"))

	require.Len(t, base.SubStatuses, 1)
	require.Len(t, first.SubStatuses, 2)
	require.Len(t, second.SubStatuses, 2)
	assert.Equal(t, "b", first.SubStatuses[1].Component)
	assert.Equal(t, "c", second.SubStatuses[1].Component)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		reading Reading
		state   string
		message string
	}{
		{
			name:    "idle endpoint",
			reading: Reading{Capacity: 16, MaxSessions: 4},
			state:   StateHealthy,
			message: "endpoint ready",
		},
		{
			name:    "buffer full",
			reading: Reading{Capacity: 16, Occupied: 16, MaxSessions: 4},
			state:   StateDegraded,
			message: "buffer full (16 bytes)",
		},
		{
			name:    "session limit",
			reading: Reading{Capacity: 16, ActiveSessions: 4, MaxSessions: 4},
			state:   StateDegraded,
			message: "session limit reached (4)",
		},
		{
			name:    "closed wins",
			reading: Reading{Closed: true, Capacity: 16, Occupied: 16},
			state:   StateUnhealthy,
			message: "endpoint closed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status := Evaluate("endpoint", tc.reading)
			assert.Equal(t, tc.state, status.Status)
			assert.Equal(t, tc.message, status.Message)
			require.NotNil(t, status.Metrics)
			assert.Equal(t, tc.reading.Capacity, status.Metrics.Capacity)
			assert.Equal(t, tc.reading.Occupied, status.Metrics.Occupied)
		})
	}
}

func TestEvaluate_SanitizesLastError(t *testing.T) {
	status := Evaluate("endpoint", Reading{
		Capacity:  16,
		Uptime:    time.Minute,
		LastError: "load /etc/ringdev/config.yaml: password=hunter2",
	})

	assert.True(t, status.IsHealthy())
	assert.NotContains(t, status.Message, "/etc/ringdev")
	assert.NotContains(t, status.Message, "hunter2")
	assert.Contains(t, status.Message, "[PATH]")
	assert.Equal(t, time.Minute, status.Metrics.Uptime)
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"failed to open /etc/ringdev/config.json", "failed to open [PATH]"},
		{"cannot read C:\\Users\\Admin\\config.json", "cannot read [PATH]"},
		{"scrape failed from https://example.com/metrics", "scrape failed from [URL]"},
		{"peer 192.168.1.100 refused", "peer [IP] refused"},
		{"listen on :9090 failed", "listen on [PORT] failed"},
		{"token=abc123", "[REDACTED]"},
		{"request larger than buffer", "request larger than buffer"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, sanitizeErrorMessage(tc.input), tc.input)
	}
}

func TestAggregate(t *testing.T) {
	assert.True(t, Aggregate("ringdev", nil).IsHealthy())

	degraded := Aggregate("ringdev", []Status{
		NewHealthy("a", "ok"),
		NewDegraded("b", "full"),
	})
	assert.True(t, degraded.IsDegraded())
	assert.Len(t, degraded.SubStatuses, 2)

	unhealthy := Aggregate("ringdev", []Status{
		NewDegraded("a", "full"),
		NewUnhealthy("b", "closed"),
	})
	assert.True(t, unhealthy.IsUnhealthy())
}
