package api

import (
	"encoding/json"
	"net/http"

	"github.com/bher20/tankmanager/internal/auth"
	"github.com/bher20/tankmanager/internal/storage"
)

// LoginRequest authenticates a user and mints a token. ExpiresIn accepts the
// same forms as ParseExpirationDuration ("never", "30d", "2026-01-02", ...).
type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	TokenName string `json:"token_name,omitempty"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

// LoginResponse carries the raw token. It is shown once; only its hash is
// stored.
type LoginResponse struct {
	Token string         `json:"token"`
	Info  *storage.Token `json:"info"`
	User  *storage.User  `json:"user"`
}

// CreateUserRequest creates a new user with the given role.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func registerAuthRoutes(mux *http.ServeMux, authSvc *auth.Service) {
	if authSvc == nil {
		return
	}

	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		user, err := authSvc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := req.TokenName
		if name == "" {
			name = "login"
		}
		info, raw, err := authSvc.CreateToken(r.Context(), user.ID, name, user.Role, expiresAt)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, LoginResponse{Token: raw, Info: info, User: user})
	})

	mux.Handle("/api/v1/users", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if !enforceOr403(w, authSvc, getUserID(r), "users", "read") {
				return
			}
			users, err := authSvc.Store().ListUsers(r.Context())
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, users)
		case http.MethodPost:
			if !enforceOr403(w, authSvc, getUserID(r), "users", "write") {
				return
			}
			var req CreateUserRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			user, err := authSvc.Register(r.Context(), req.Username, req.Password, req.Role)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, user)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/api/v1/tokens", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := getUserID(r)
		if userID == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			tokens, err := authSvc.Store().ListTokens(r.Context(), userID)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, tokens)
		case http.MethodDelete:
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "missing token id", http.StatusBadRequest)
				return
			}
			// Tokens can only be revoked by their owner.
			tok, err := authSvc.Store().GetToken(r.Context(), id)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			if tok == nil || tok.UserID != userID {
				http.NotFound(w, r)
				return
			}
			if err := authSvc.Store().DeleteToken(r.Context(), id); err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
}

func enforceOr403(w http.ResponseWriter, authSvc *auth.Service, sub, obj, act string) bool {
	allowed, err := authSvc.Enforce(sub, obj, act)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return false
	}
	if !allowed {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}
