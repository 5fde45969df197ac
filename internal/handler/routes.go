package handler

import (
	"log/slog"
	"net/http"
)

// Routes are the handlers mounted by NewRouter. Events and Metrics may be
// nil.
type Routes struct {
	Graph    *GraphHandler
	Timeline *TimelineHandler
	Events   http.Handler
	Metrics  http.Handler
	Logger   *slog.Logger
}

// NewRouter mounts the dashboard API and wraps it in the standard middleware
func NewRouter(rt Routes) http.Handler {
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	g := rt.Graph
	mux.HandleFunc("GET /api/graph", g.GetGraph)
	mux.HandleFunc("GET /api/graph/raw", g.GetRawGraph)
	mux.HandleFunc("GET /api/status", g.GetStatus)
	mux.HandleFunc("POST /api/sync", g.TriggerSync)

	mux.HandleFunc("GET /api/incidents", g.ListIncidents)
	mux.HandleFunc("GET /api/incidents/{id}/chain", g.GetIncidentChain)
	mux.HandleFunc("POST /api/incidents/{id}/resolve", g.ResolveIncident)
	mux.HandleFunc("GET /api/gaps", g.ListGaps)

	mux.HandleFunc("POST /api/agents/{id}/action", g.AgentAction)
	mux.HandleFunc("POST /api/agents/{id}/watch", g.WatchAgent)
	mux.HandleFunc("DELETE /api/agents/{id}/watch", g.UnwatchAgent)

	mux.HandleFunc("GET /api/export/{format}", g.Export)
	mux.HandleFunc("POST /api/import/{format}", g.Import)

	t := rt.Timeline
	mux.HandleFunc("GET /api/timeline", t.GetState)
	mux.HandleFunc("POST /api/timeline/load", t.Load)
	mux.HandleFunc("POST /api/timeline/seek", t.Seek)
	mux.HandleFunc("POST /api/timeline/speed", t.SetSpeed)
	mux.HandleFunc("POST /api/timeline/{op}", t.Control)

	if rt.Events != nil {
		mux.Handle("GET /events", rt.Events)
	}
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return Chain(mux,
		Recover(logger),
		CORS,
		Logger(logger),
	)
}
