package domain

import (
	"fmt"
	"time"
)

// MetricsPatch is a partial update of NodeMetrics; nil fields are left alone
type MetricsPatch struct {
	CPUPercent        *float64   `json:"cpuPercent,omitempty"`
	MemoryMB          *float64   `json:"memoryMb,omitempty"`
	TasksCompleted    *int64     `json:"tasksCompleted,omitempty"`
	TasksQueued       *int64     `json:"tasksQueued,omitempty"`
	MessagesPerSecond *float64   `json:"messagesPerSecond,omitempty"`
	ErrorRate         *float64   `json:"errorRate,omitempty"`
	UptimeSeconds     *int64     `json:"uptimeSeconds,omitempty"`
	LastActive        *time.Time `json:"lastActiveTimestamp,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p *MetricsPatch) Empty() bool {
	return p == nil || (p.CPUPercent == nil && p.MemoryMB == nil && p.TasksCompleted == nil &&
		p.TasksQueued == nil && p.MessagesPerSecond == nil && p.ErrorRate == nil &&
		p.UptimeSeconds == nil && p.LastActive == nil)
}

// Apply returns m with the patch applied. The result is validated so a bad
// patch never reaches the graph.
func (p *MetricsPatch) Apply(m NodeMetrics) (NodeMetrics, error) {
	if p == nil {
		return m, nil
	}
	setFloat(&m.CPUPercent, p.CPUPercent)
	setFloat(&m.MemoryMB, p.MemoryMB)
	setInt(&m.TasksCompleted, p.TasksCompleted)
	setInt(&m.TasksQueued, p.TasksQueued)
	setFloat(&m.MessagesPerSecond, p.MessagesPerSecond)
	setFloat(&m.ErrorRate, p.ErrorRate)
	setInt(&m.UptimeSeconds, p.UptimeSeconds)
	if p.LastActive != nil {
		m.LastActive = *p.LastActive
	}
	if err := m.Validate(); err != nil {
		return m, fmt.Errorf("metrics patch: %w", err)
	}
	return m, nil
}

// TrafficPatch is a partial update of Traffic; nil fields are left alone
type TrafficPatch struct {
	MessagesPerSecond *float64 `json:"messagesPerSecond,omitempty"`
	BytesPerSecond    *float64 `json:"bytesPerSecond,omitempty"`
	LatencyMs         *float64 `json:"latencyMs,omitempty"`
	ErrorRate         *float64 `json:"errorRate,omitempty"`
}

// Apply returns t with the patch applied and validated
func (p *TrafficPatch) Apply(t Traffic) (Traffic, error) {
	if p == nil {
		return t, nil
	}
	setFloat(&t.MessagesPerSecond, p.MessagesPerSecond)
	setFloat(&t.BytesPerSecond, p.BytesPerSecond)
	setFloat(&t.LatencyMs, p.LatencyMs)
	setFloat(&t.ErrorRate, p.ErrorRate)
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("traffic patch: %w", err)
	}
	return t, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
