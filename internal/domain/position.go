package domain

import "math"

// Position is a point in the 3D scene
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewPosition creates a new position
func NewPosition(x, y, z float64) *Position {
	return &Position{X: x, Y: y, Z: z}
}

// Distance returns the euclidean distance between two positions
func (p Position) Distance(o Position) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Centroid returns the mean of the given positions, or nil if there are none
func Centroid(points []Position) *Position {
	if len(points) == 0 {
		return nil
	}
	var c Position
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
		c.Z += p.Z
	}
	n := float64(len(points))
	return &Position{X: c.X / n, Y: c.Y / n, Z: c.Z / n}
}
