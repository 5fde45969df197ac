package lod

import (
	"fmt"
	"slices"
	"time"

	"graphwatch/internal/domain"
)

// ClusterPrefix starts the id of every cluster node
const ClusterPrefix = "cluster:"

// Cluster records which agents a cluster node stands for
type Cluster struct {
	ID       string          `json:"id"`
	Category domain.Category `json:"category"`
	Members  []string        `json:"members"`
}

// ClusterID returns the id of the cluster node for a category
func ClusterID(c domain.Category) string {
	return ClusterPrefix + string(c)
}

// statusRank orders statuses for the cluster's headline status; the highest
// rank among the members wins.
var statusRank = map[domain.NodeStatus]int{
	domain.NodeStatusOffline: 0,
	domain.NodeStatusIdle:    1,
	domain.NodeStatusActive:  2,
	domain.NodeStatusBusy:    3,
	domain.NodeStatusError:   4,
}

// aggregate builds the representative node for members of one category.
// Counters and rates sum, percentages average, LastActive and Priority take
// the maximum.
func aggregate(cat domain.Category, members []domain.Node) domain.Node {
	n := domain.Node{
		ID:          ClusterID(cat),
		Name:        fmt.Sprintf("%s (%d)", cat, len(members)),
		Category:    cat,
		Status:      domain.NodeStatusOffline,
		Connections: make([]string, 0),
		Description: fmt.Sprintf("%d %s agents", len(members), cat),
	}

	var (
		points []domain.Position
		last   time.Time
	)
	for i := range members {
		m := &members[i]
		if statusRank[m.Status] > statusRank[n.Status] {
			n.Status = m.Status
		}
		n.Metrics.CPUPercent += m.Metrics.CPUPercent
		n.Metrics.MemoryMB += m.Metrics.MemoryMB
		n.Metrics.TasksCompleted += m.Metrics.TasksCompleted
		n.Metrics.TasksQueued += m.Metrics.TasksQueued
		n.Metrics.MessagesPerSecond += m.Metrics.MessagesPerSecond
		n.Metrics.ErrorRate += m.Metrics.ErrorRate
		n.Metrics.UptimeSeconds = max(n.Metrics.UptimeSeconds, m.Metrics.UptimeSeconds)
		if m.Metrics.LastActive.After(last) {
			last = m.Metrics.LastActive
		}
		n.Priority = max(n.Priority, m.Priority)
		n.Size = max(n.Size, m.Size)
		if m.Position != nil {
			points = append(points, *m.Position)
		}
	}
	if k := float64(len(members)); k > 0 {
		n.Metrics.CPUPercent /= k
		n.Metrics.ErrorRate /= k
	}
	n.Metrics.LastActive = last
	n.Position = domain.Centroid(points)
	n.Size++
	return n
}

// edgeAcc merges rewritten connections that land on the same pair
type edgeAcc struct {
	conn    domain.Connection
	count   int
	latency float64
	errRate float64
}

func newEdgeAcc(c domain.Connection, src, tgt string) *edgeAcc {
	acc := &edgeAcc{conn: c, count: 1, latency: c.Traffic.LatencyMs, errRate: c.Traffic.ErrorRate}
	if src != c.SourceID || tgt != c.TargetID {
		acc.conn.ID = domain.ConnectionID(src, tgt)
		acc.conn.SourceID, acc.conn.TargetID = src, tgt
	}
	return acc
}

func (a *edgeAcc) merge(c domain.Connection, src string) {
	a.count++
	a.conn.Traffic.MessagesPerSecond += c.Traffic.MessagesPerSecond
	a.conn.Traffic.BytesPerSecond += c.Traffic.BytesPerSecond
	a.latency += c.Traffic.LatencyMs
	a.errRate += c.Traffic.ErrorRate
	a.conn.Active = a.conn.Active || c.Active
	a.conn.Animated = a.conn.Animated || c.Animated
	a.conn.Intensity = max(a.conn.Intensity, c.Intensity)
	if c.Bidirectional || src != a.conn.SourceID {
		a.conn.Bidirectional = true
	}
}

func (a *edgeAcc) result() domain.Connection {
	c := a.conn
	if a.count > 1 {
		c.Traffic.LatencyMs = a.latency / float64(a.count)
		c.Traffic.ErrorRate = a.errRate / float64(a.count)
	}
	return c
}

func sortedMembers(members []domain.Node) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	slices.Sort(ids)
	return ids
}
