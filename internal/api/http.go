package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bher20/tankmanager/internal/amerigas"
	"github.com/bher20/tankmanager/internal/api/swagger"
	"github.com/bher20/tankmanager/internal/auth"
	"github.com/bher20/tankmanager/internal/config"
	"github.com/bher20/tankmanager/internal/migrate"
	"github.com/bher20/tankmanager/internal/notification"
	"github.com/bher20/tankmanager/internal/propane"
	"github.com/bher20/tankmanager/internal/storage"
	"github.com/bher20/tankmanager/internal/ui"
)

// NewMux constructs the HTTP mux from environment configuration, wiring in
// storage, the portal client, the readings service, auth, and the health and
// metrics endpoints.
func NewMux(ctx context.Context) (*http.ServeMux, error) {
	cfg := config.FromEnv()

	// Optional auto-migration: run `goose up` on startup when enabled.
	autoMig := strings.ToLower(os.Getenv("TANKMANAGER_AUTO_MIGRATE"))
	if autoMig == "1" || autoMig == "true" || autoMig == "yes" {
		driver := cfg.StorageDriver
		if driver == "memory" {
			log.Printf("api: auto-migration skipped for memory storage")
		} else if err := migrate.Up(ctx, driver, cfg.StorageDSN); err != nil {
			log.Printf("api: auto-migration failed: %v", err)
		}
	}

	st, err := storage.Open(ctx, storage.Config{
		Driver: cfg.StorageDriver,
		DSN:    cfg.StorageDSN,
	})
	if err != nil {
		return nil, err
	}

	client := amerigas.NewClient(cfg.Username, cfg.Password,
		amerigas.WithTimeout(cfg.FetchTimeout))
	svc := propane.NewServiceWithStorage(client, st, cfg.AccountKey, cfg.Location())
	svc.SetTankSizeOverride(cfg.TankSizeGallons)
	if err := svc.RestoreState(ctx); err != nil {
		log.Printf("api: restore state failed: %v", err)
	}

	authSvc, err := auth.NewService(st)
	if err != nil {
		return nil, err
	}
	if u, err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, err
	} else if u != nil {
		log.Printf("api: seeded initial admin user %q", u.Username)
	}
	notifSvc := notification.NewService(st)

	return newMuxWith(svc, st, authSvc, notifSvc), nil
}

// newMuxWith assembles the routes from already-built dependencies; tests use
// it directly with fakes.
func newMuxWith(svc *propane.Service, st storage.Storage, authSvc *auth.Service, notifSvc *notification.Service) *http.ServeMux {
	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	registerReadingsRoutes(mux, svc, st, authSvc)
	registerAuthRoutes(mux, authSvc)
	// Email settings management requires auth; both come from NewMux in
	// normal operation.
	if notifSvc != nil && authSvc != nil {
		registerNotificationRoutes(mux, authSvc, notifSvc)
	}

	// API documentation.
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	// Web UI
	mux.Handle("/ui/", http.StripPrefix("/ui/", ui.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/ui/", http.StatusFound)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response failed: %v", err)
	}
}
