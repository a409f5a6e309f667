package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"object-sync-service/internal/config"
	"object-sync-service/internal/session"
)

type Handler struct {
	registry    *session.Registry
	authToken   string
	corsOrigins []string
}

func NewHandler(registry *session.Registry, cfg config.ServerConfig) *Handler {
	return &Handler{
		registry:    registry,
		authToken:   cfg.AuthToken,
		corsOrigins: cfg.CorsOrigins,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware(h.corsOrigins))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/status", h.SessionStatus)
		r.Post("/sessions/start", h.StartSession)
		r.Post("/sessions/stop", h.StopSession)
		r.Get("/users", h.ListUsers)
	})

	return r
}

type sessionStatus struct {
	Path  string `json:"path"`
	State string `json:"state"`
}

type sessionRequest struct {
	Path string `json:"path"`
}

type userStatus struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.All()
	out := make([]sessionStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionStatus{Path: s.Path(), State: s.State().String()})
	}
	json.NewEncoder(w).Encode(out)
}

// ListUsers returns the persisted users still holding valid tokens.
// Logged-out users stay stored but are filtered here.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.registry.Users(r.Context())
	if err != nil {
		http.Error(w, "cannot load persisted users", http.StatusInternalServerError)
		return
	}
	out := make([]userStatus, 0, len(users))
	for _, u := range users {
		if !u.Authenticated() {
			continue
		}
		out = append(out, userStatus{
			Identity: u.Identity(),
			Name:     u.Profile().Name,
			Email:    u.Profile().Email,
		})
	}
	json.NewEncoder(w).Encode(out)
}

func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(r.URL.Query().Get("path"))
	if !ok {
		http.Error(w, "no session for path", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(sessionStatus{Path: s.Path(), State: s.State().String()})
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromBody(w, r)
	if !ok {
		return
	}
	s.Start()
	json.NewEncoder(w).Encode(sessionStatus{Path: s.Path(), State: s.State().String()})
}

func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromBody(w, r)
	if !ok {
		return
	}
	s.Stop()
	json.NewEncoder(w).Encode(sessionStatus{Path: s.Path(), State: s.State().String()})
}

func (h *Handler) sessionFromBody(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "body must carry a session path", http.StatusBadRequest)
		return nil, false
	}
	s, ok := h.registry.Get(req.Path)
	if !ok {
		http.Error(w, "no session for path", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

// CorsMiddleware allows cross-origin calls from the configured origins. An
// empty list allows any origin.
func CorsMiddleware(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(origins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); origin != "" {
				for _, allowed := range origins {
					if origin == allowed {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						break
					}
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

			if r.Method == "OPTIONS" {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware rejects API calls without the configured bearer token. An
// empty configured token disables the check for local development.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authToken != "" && r.Header.Get("Authorization") != "Bearer "+h.authToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
