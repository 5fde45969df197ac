package domain

import "maps"

// GraphStats holds aggregate figures for the whole graph
type GraphStats struct {
	TotalNodes          int              `json:"totalNodes"`
	ActiveNodes         int              `json:"activeNodes"`
	ErrorNodes          int              `json:"errorNodes"`
	TotalConnections    int              `json:"totalConnections"`
	ActiveConnections   int              `json:"activeConnections"`
	MessagesPerSecond   float64          `json:"messagesPerSecond"`
	AvgErrorRate        float64          `json:"avgErrorRate"`
	TasksQueued         int64            `json:"tasksQueued"`
	ActiveIncidents     int              `json:"activeIncidents"`
	IncidentsBySeverity map[Severity]int `json:"incidentsBySeverity,omitempty"`
}

// Clone returns a copy with its own severity map
func (s GraphStats) Clone() GraphStats {
	out := s
	out.IncidentsBySeverity = maps.Clone(s.IncidentsBySeverity)
	return out
}

// ComputeStats derives aggregate figures from the graph collections
func ComputeStats(nodes []Node, conns []Connection, incidents []Incident) GraphStats {
	stats := GraphStats{
		TotalNodes:          len(nodes),
		TotalConnections:    len(conns),
		IncidentsBySeverity: make(map[Severity]int),
	}

	var errSum float64
	for i := range nodes {
		n := &nodes[i]
		if n.Status.Live() {
			stats.ActiveNodes++
		}
		if n.Status == NodeStatusError {
			stats.ErrorNodes++
		}
		stats.MessagesPerSecond += n.Metrics.MessagesPerSecond
		stats.TasksQueued += n.Metrics.TasksQueued
		errSum += n.Metrics.ErrorRate
	}
	if len(nodes) > 0 {
		stats.AvgErrorRate = errSum / float64(len(nodes))
	}

	for i := range conns {
		if conns[i].Active {
			stats.ActiveConnections++
		}
	}

	for i := range incidents {
		if incidents[i].Status.Open() {
			stats.ActiveIncidents++
			stats.IncidentsBySeverity[incidents[i].Severity]++
		}
	}
	return stats
}
