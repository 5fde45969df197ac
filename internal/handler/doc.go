// Package handler implements the HTTP gateway the dashboard renderer talks
// to.
//
// # Handlers
//
// GraphHandler serves the level of detail view of the displayed graph, the
// connectivity status, the incident triage view and operator actions.
// TimelineHandler drives the snapshot player.
//
// # Response Format
//
// Success responses return JSON. Error responses return JSON with an
// {error, details} structure. Orchestrator refusals of actions are not
// errors: they come back as 200 with success false and the message to show.
//
// # Server-Sent Events
//
// NewRouter mounts the event hub on /events. Clients receive every event
// bus event as a JSON data frame and should refetch /api/graph when a
// graph event arrives.
package handler
