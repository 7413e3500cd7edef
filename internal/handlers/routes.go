package handlers

import (
	"context"
	"net/http"
	"time"

	"rollcall/internal/metrics"
	"rollcall/internal/security"
)

// apiPrefixes are the mount points of every route. The mobile client calls
// the /api form.
var apiPrefixes = []string{"", "/api"}

// Handlers groups everything the router dispatches to
type Handlers struct {
	Middleware *Middleware
	Groups     *GroupHandler
	Activities *ActivityHandler
	Events     *EventHandler
	Users      *UserHandler
	Health     *HealthHandler
}

// Routes builds the API. gate and m may be nil.
func Routes(h Handlers, gate *security.Gate, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	auth := h.Middleware.RequireAuth
	mw := h.Middleware

	for _, prefix := range apiPrefixes {
		handle := func(method, path string, fn http.HandlerFunc) {
			mux.HandleFunc(method+" "+prefix+path, fn)
		}

		// Activities
		handle("GET", "/activity/{id}", auth(mw.RequireActivityMember("id", h.Activities.GetActivity)))
		handle("PUT", "/activity/{id}", auth(mw.RequireActivityAdmin("id", h.Activities.UpdateActivity)))
		handle("DELETE", "/activity/{id}", auth(mw.RequireActivityAdmin("id", h.Activities.DeleteActivity)))

		// Events
		handle("GET", "/event/group/{groupId}/upcoming", auth(mw.RequireGroupMember("groupId", h.Events.UpcomingEvent)))
		handle("PUT", "/event/{id}/status", auth(h.Events.UpdateAttendance))

		// Groups
		handle("POST", "/group", auth(h.Groups.CreateGroup))
		handle("GET", "/group/{id}", auth(h.Groups.GetGroup))
		handle("DELETE", "/group/{id}/leave", auth(mw.RequireGroupMember("id", h.Groups.LeaveGroup)))
		handle("POST", "/group/{id}/members", auth(mw.RequireGroupAdmin("id", h.Groups.AddMember)))
		handle("DELETE", "/group/{id}/members", auth(mw.RequireGroupAdmin("id", h.Groups.RemoveMember)))
		handle("DELETE", "/group/{id}", auth(mw.RequireGroupAdmin("id", h.Groups.DeleteGroup)))

		// Users
		handle("GET", "/users/me", auth(h.Users.GetMe))
		handle("GET", "/users/me/groups", auth(h.Users.GetMyGroups))
		handle("PUT", "/users/profile", auth(h.Users.UpdateProfile))
		handle("GET", "/users/profile/{userId}", h.Users.GetPublicProfile)
		handle("POST", "/users/sync", h.Users.SyncUser)

		handle("GET", "/health", h.Health.Check)
		if m != nil {
			mux.Handle("GET "+prefix+"/metrics", m.Handler())
		}
	}

	var handler http.Handler = Instrument(m, mux)
	if gate != nil {
		handler = gate.Middleware(handler)
	}
	return Logging(handler)
}

// Pinger reports whether the database is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves the liveness probe
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check pings the database
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, KindServerError, "Database unavailable", "Health check failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
