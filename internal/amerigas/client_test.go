package amerigas

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const dashboardPage = `<html><head><script>
	var accountSummaryViewModel = {"ForecastTankLevel":"84","TankSize":500,"TankMonitor":"1"};
	someOtherModel = {"x":1};
</script></head><body>Dashboard</body></html>`

// newPortal stands up a fake portal that accepts one set of credentials and
// serves a dashboard page with an inline account summary.
func newPortal(t *testing.T, wantUser, wantPass string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/Login/Login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		user := r.PostFormValue("loginViewModel[EmailAddress]")
		pass := r.PostFormValue("loginViewModel[Password]")
		wantU := base64.StdEncoding.EncodeToString([]byte(wantUser))
		wantP := base64.StdEncoding.EncodeToString([]byte(wantPass))

		w.Header().Set("Content-Type", "application/json")
		if user != wantU || pass != wantP {
			fmt.Fprint(w, `{"success":false,"message":"Invalid email or password"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		fmt.Fprint(w, `{"success":true}`)
	})

	mux.HandleFunc("/Dashboard/Dashboard", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		if err != nil || c.Value != "ok" {
			http.Error(w, "not logged in", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, dashboardPage)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func portalClient(srv *httptest.Server, user, pass string) *Client {
	return NewClient(user, pass,
		WithURLs(srv.URL+"/Login/Login", srv.URL+"/Dashboard/Dashboard"))
}

func TestClient_FetchAccountData(t *testing.T) {
	srv := newPortal(t, "user@example.org", "hunter2")
	c := portalClient(srv, "user@example.org", "hunter2")

	raw, err := c.FetchAccountData(context.Background())
	if err != nil {
		t.Fatalf("FetchAccountData: %v", err)
	}
	if raw["ForecastTankLevel"] != "84" {
		t.Errorf("ForecastTankLevel = %v, want 84", raw["ForecastTankLevel"])
	}
	if raw["TankSize"] != float64(500) {
		t.Errorf("TankSize = %v, want 500", raw["TankSize"])
	}
}

func TestClient_BadCredentials(t *testing.T) {
	srv := newPortal(t, "user@example.org", "hunter2")
	c := portalClient(srv, "user@example.org", "wrong")

	_, err := c.FetchAccountData(context.Background())
	if err == nil {
		t.Fatal("expected error for bad credentials")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if authErr.Message != "Invalid email or password" {
		t.Errorf("message = %q", authErr.Message)
	}
}

func TestClient_MissingSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Login/Login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true}`)
	})
	mux.HandleFunc("/Dashboard/Dashboard", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>maintenance page</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := portalClient(srv, "u", "p")
	_, err := c.FetchAccountData(context.Background())
	if err == nil {
		t.Fatal("expected error for missing account summary")
	}
}

func TestClient_SessionCookieCarriesToDashboard(t *testing.T) {
	// The dashboard handler in newPortal rejects requests without the login
	// cookie, so a successful fetch proves the jar works.
	srv := newPortal(t, "u", "p")
	c := portalClient(srv, "u", "p")

	if _, err := c.FetchAccountData(context.Background()); err != nil {
		t.Fatalf("FetchAccountData: %v", err)
	}
}

func TestClient_LoginServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := portalClient(srv, "u", "p")
	_, err := c.FetchAccountData(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError for non-200 login, got %v", err)
	}
}
