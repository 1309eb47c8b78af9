package api

import (
	"net/http"

	"github.com/nats-io/nats.go"

	"github.com/ernie/teamkeeper/internal/auth"
	"github.com/ernie/teamkeeper/internal/bus"
	"github.com/ernie/teamkeeper/internal/domain"
	"github.com/ernie/teamkeeper/internal/storage"
)

// ServerControl is the watcher surface the API depends on: live status
// plus the RCON passthrough
type ServerControl interface {
	Status(serverID int64) *domain.ServerStatus
	AllStatuses() []domain.ServerStatus
	ExecuteRcon(serverID int64, command string) (string, error)
	HasRconAccess(serverID int64) bool
}

// Router holds the HTTP routes and dependencies
type Router struct {
	mux     *http.ServeMux
	store   *storage.Store
	manager ServerControl
	feed    *EventFeed
	feedSub *nats.Subscription
	auth    *auth.Service
}

// NewRouter creates a new HTTP router
func NewRouter(store *storage.Store, manager ServerControl, authService *auth.Service) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		store:   store,
		manager: manager,
		feed:    NewEventFeed(),
		auth:    authService,
	}

	// API routes
	r.mux.HandleFunc("GET /api/servers", r.handleGetServers)
	r.mux.HandleFunc("GET /api/servers/{id}", r.handleGetServer)
	r.mux.HandleFunc("GET /api/servers/{id}/status", r.handleGetServerStatus)
	r.mux.HandleFunc("GET /api/status", r.handleGetAllStatuses)

	r.mux.HandleFunc("GET /api/assignments", r.requireAuth(r.handleGetAssignments))

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)

	// RCON routes (admin only)
	r.mux.HandleFunc("POST /api/servers/{id}/rcon", r.requireAdmin(r.handleRconCommand))
	r.mux.HandleFunc("GET /api/servers/{id}/rcon-status", r.handleRconStatus)

	// WebSocket event feed
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartEventFeed subscribes the feed to the bus and starts delivery
func (r *Router) StartEventFeed(eventBus *bus.Bus) error {
	sub, err := eventBus.Subscribe(r.feed.Publish)
	if err != nil {
		return err
	}
	r.feedSub = sub
	go r.feed.Run()
	return nil
}

// StopEventFeed detaches from the bus and disconnects feed clients
func (r *Router) StopEventFeed() {
	if r.feedSub != nil {
		r.feedSub.Unsubscribe()
	}
	r.feed.Stop()
}
