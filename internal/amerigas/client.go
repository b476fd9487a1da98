package amerigas

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Default portal endpoints and timeout. The portal is slow; 45 seconds is
// generous on purpose.
const (
	DefaultLoginURL     = "https://www.myamerigas.com/Login/Login"
	DefaultDashboardURL = "https://www.myamerigas.com/Dashboard/Dashboard"
	DefaultTimeout      = 45 * time.Second
)

// userAgent mimics a desktop browser; the portal serves a different page to
// unrecognized agents.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// summaryRe pulls the inline accountSummaryViewModel assignment out of the
// dashboard page's JavaScript.
var summaryRe = regexp.MustCompile(`(?s)accountSummaryViewModel\s*=\s*(\{.*?\});`)

// AuthError reports a rejected login, as opposed to a transport or parsing
// failure. Callers use it to avoid hammering the portal with bad credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("amerigas: authentication failed: %s", e.Message)
}

// Client scrapes the MyAmeriGas customer portal. There is no public API;
// the dashboard page carries the account summary as an inline JavaScript
// object, so each fetch is a login followed by a dashboard page load.
type Client struct {
	username     string
	password     string
	loginURL     string
	dashboardURL string
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithURLs overrides the portal endpoints, for tests or a proxy.
func WithURLs(loginURL, dashboardURL string) Option {
	return func(c *Client) {
		c.loginURL = loginURL
		c.dashboardURL = dashboardURL
	}
}

// WithHTTPClient overrides the HTTP client. The supplied client should carry
// a cookie jar; the login session lives in cookies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient builds a portal client for one account's credentials.
func NewClient(username, password string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		username:     username,
		password:     password,
		loginURL:     DefaultLoginURL,
		dashboardURL: DefaultDashboardURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAccountData logs in and scrapes the raw account summary object from
// the dashboard page.
func (c *Client) FetchAccountData(ctx context.Context) (map[string]any, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	page, err := c.fetchDashboard(ctx)
	if err != nil {
		return nil, err
	}

	match := summaryRe.FindStringSubmatch(page)
	if match == nil {
		return nil, fmt.Errorf("amerigas: accountSummaryViewModel not found in dashboard page")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(match[1]), &raw); err != nil {
		return nil, fmt.Errorf("amerigas: parse account summary: %w", err)
	}
	return raw, nil
}

// login posts the base64-encoded credentials the way the portal's own login
// form does and checks the JSON result.
func (c *Client) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("loginViewModel[EmailAddress]", base64.StdEncoding.EncodeToString([]byte(c.username)))
	form.Set("loginViewModel[Password]", base64.StdEncoding.EncodeToString([]byte(c.password)))
	form.Set("loginViewModel[SAPErrorMessage]", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("amerigas: build login request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("amerigas: login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &AuthError{Message: fmt.Sprintf("login returned status %d", resp.StatusCode)}
	}

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("amerigas: parse login response: %w", err)
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "unknown error"
		}
		return &AuthError{Message: msg}
	}
	return nil
}

func (c *Client) fetchDashboard(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dashboardURL, nil)
	if err != nil {
		return "", fmt.Errorf("amerigas: build dashboard request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("amerigas: dashboard request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("amerigas: dashboard returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("amerigas: read dashboard page: %w", err)
	}
	return string(body), nil
}
