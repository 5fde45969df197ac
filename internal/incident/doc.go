// Package incident presents incidents over the agent graph without changing
// it: severity grouping, causality chains with readable labels, highlight
// sets for the display and operator-confirmed resolution.
package incident
