package test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"questboard/internal/api/v1/handlers"
	"questboard/internal/config"
)

// stubIdentity stands in for the OAuth provider.
type stubIdentity struct {
	profile handlers.IdentityProfile
	err     error
}

func (s *stubIdentity) AuthURL(state string) string { return "https://provider.example/auth" }

func (s *stubIdentity) Exchange(ctx context.Context, code string) (handlers.IdentityProfile, error) {
	if s.err != nil {
		return handlers.IdentityProfile{}, s.err
	}
	return s.profile, nil
}

func TestAuthCallbackIssuesToken(t *testing.T) {
	app := CreateTestApp()
	email := "login_" + time.Now().Format("150405.000000000") + "@example.com"
	handlers.Identity = &stubIdentity{profile: handlers.IdentityProfile{
		Email:     email,
		Name:      "Login User",
		AvatarURL: "https://img.example/a.png",
	}}

	req := httptest.NewRequest("GET", "/api/v1/auth/callback?code=good", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Callback error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	// Logging in again with the same email reuses the user row
	resp2, err := app.Test(httptest.NewRequest("GET", "/api/v1/auth/callback?code=good", nil), -1)
	if err != nil {
		t.Fatalf("Second callback error: %v", err)
	}
	resp2.Body.Close()

	var n int
	if err := config.DB.QueryRow("SELECT COUNT(*) FROM users WHERE email = $1", email).Scan(&n); err != nil {
		t.Fatalf("Error counting users: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected one user row for %s, got %d", email, n)
	}
}

func TestAuthCallbackProviderFailureRedirects(t *testing.T) {
	app := CreateTestApp()
	handlers.Identity = &stubIdentity{err: errors.New("provider down")}

	req := httptest.NewRequest("GET", "/api/v1/auth/callback?code=broken", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Callback error: %v", err)
	}
	defer resp.Body.Close()

	// The provider error is swallowed: the browser lands back on "/"
	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected 302 redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Expected redirect to /, got %q", loc)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	app := CreateTestApp()

	req := httptest.NewRequest("GET", "/api/v1/projects/", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}
}
