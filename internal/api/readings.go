package api

import (
	"encoding/json"
	"net/http"

	"github.com/bher20/tankmanager/internal/auth"
	"github.com/bher20/tankmanager/internal/propane"
	"github.com/bher20/tankmanager/internal/storage"
)

// BaselineDTO is the baseline override request and response body.
type BaselineDTO struct {
	Gallons float64 `json:"gallons"`
}

// StateDTO bundles the persisted tracker and lifetime state for one account.
type StateDTO struct {
	Account  string                       `json:"account"`
	Tracker  *storage.TrackerStateRecord  `json:"tracker,omitempty"`
	Lifetime *storage.LifetimeStateRecord `json:"lifetime,omitempty"`
}

type readingsHandler struct {
	svc     *propane.Service
	st      storage.Storage
	authSvc *auth.Service
}

func registerReadingsRoutes(mux *http.ServeMux, svc *propane.Service, st storage.Storage, authSvc *auth.Service) {
	h := &readingsHandler{svc: svc, st: st, authSvc: authSvc}

	// Helper to wrap handler with auth middleware if authSvc is present
	withAuth := func(handler http.HandlerFunc) http.Handler {
		if authSvc == nil {
			return handler
		}
		return authSvc.Middleware(handler)
	}

	mux.Handle("/api/v1/readings", withAuth(h.GetReadings))
	mux.Handle("/api/v1/refresh", withAuth(h.Refresh))
	mux.Handle("/api/v1/baseline", withAuth(h.HandleBaseline))
	mux.Handle("/api/v1/state", withAuth(h.GetState))
	mux.Handle("/api/v1/accounts", withAuth(h.ListAccounts))
}

// allowed checks the subject's permission when auth is enabled.
func (h *readingsHandler) allowed(w http.ResponseWriter, r *http.Request, obj, act string) bool {
	if h.authSvc == nil {
		return true
	}
	ok, err := h.authSvc.Enforce(getUserID(r), obj, act)
	if err != nil || !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// GetReadings returns the most recent refresh result.
func (h *readingsHandler) GetReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(w, r, "readings", "read") {
		return
	}
	readings := h.svc.Readings()
	if readings == nil {
		http.Error(w, "no readings yet", http.StatusNotFound)
		return
	}
	writeJSON(w, readings)
}

// Refresh forces an immediate portal fetch and returns the new readings.
func (h *readingsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(w, r, "readings", "write") {
		return
	}
	readings, err := h.svc.Refresh(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, readings)
}

// HandleBaseline reads or overrides the delivery baseline.
func (h *readingsHandler) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.allowed(w, r, "baseline", "read") {
			return
		}
		writeJSON(w, BaselineDTO{Gallons: h.svc.BaselineGallons()})
	case http.MethodPost, http.MethodPut:
		if !h.allowed(w, r, "baseline", "write") {
			return
		}
		var req BaselineDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.svc.SetBaseline(r.Context(), req.Gallons); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, BaselineDTO{Gallons: h.svc.BaselineGallons()})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GetState returns the persisted tracker and lifetime state. Without a
// storage backend both records are empty.
func (h *readingsHandler) GetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(w, r, "readings", "read") {
		return
	}
	resp := StateDTO{Account: h.svc.Account()}
	if h.st != nil {
		tracker, err := h.st.GetTrackerState(r.Context(), resp.Account)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		lifetime, err := h.st.GetLifetimeState(r.Context(), resp.Account)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		resp.Tracker = tracker
		resp.Lifetime = lifetime
	}
	writeJSON(w, resp)
}

// ListAccounts lists the configured accounts.
func (h *readingsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(w, r, "accounts", "read") {
		return
	}
	if h.st == nil {
		writeJSON(w, []storage.Account{})
		return
	}
	accounts, err := h.st.ListAccounts(r.Context())
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = []storage.Account{}
	}
	writeJSON(w, accounts)
}

func getUserID(r *http.Request) string {
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		return ""
	}
	return token.UserID
}
