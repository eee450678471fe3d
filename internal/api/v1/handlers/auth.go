package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"questboard/configs"
	"questboard/internal/config"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// IdentityProfile is what the identity provider hands back after a
// successful code exchange.
type IdentityProfile struct {
	Email     string
	Name      string
	AvatarURL string
}

// IdentityProvider exchanges an OAuth authorization code for a verified
// profile. Tests swap in a stub.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (IdentityProfile, error)
}

// Identity is the configured provider, set during bootstrap.
var Identity IdentityProvider

// GoogleProvider implements IdentityProvider against Google's OAuth2
// endpoints.
type GoogleProvider struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client
}

func NewGoogleProvider(cfg configs.Config) *GoogleProvider {
	return &GoogleProvider{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoogleProvider) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", g.ClientID)
	q.Set("redirect_uri", g.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	return "https://accounts.google.com/o/oauth2/v2/auth?" + q.Encode()
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (IdentityProfile, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", g.ClientID)
	form.Set("client_secret", g.ClientSecret)
	form.Set("redirect_uri", g.RedirectURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, "POST", "https://oauth2.googleapis.com/token", strings.NewReader(form.Encode()))
	if err != nil {
		return IdentityProfile{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return IdentityProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return IdentityProfile{}, fmt.Errorf("token exchange returned status %d", resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return IdentityProfile{}, err
	}

	infoReq, err := http.NewRequestWithContext(ctx, "GET", "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return IdentityProfile{}, err
	}
	infoReq.Header.Set("Authorization", "Bearer "+token.AccessToken)

	infoResp, err := g.HTTPClient.Do(infoReq)
	if err != nil {
		return IdentityProfile{}, err
	}
	defer infoResp.Body.Close()
	if infoResp.StatusCode != http.StatusOK {
		return IdentityProfile{}, fmt.Errorf("userinfo returned status %d", infoResp.StatusCode)
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(infoResp.Body).Decode(&info); err != nil {
		return IdentityProfile{}, err
	}
	if info.Email == "" {
		return IdentityProfile{}, fmt.Errorf("userinfo response missing email")
	}
	return IdentityProfile{Email: info.Email, Name: info.Name, AvatarURL: info.Picture}, nil
}

// AuthRedirect sends the browser to the provider's consent screen.
func AuthRedirect(c *fiber.Ctx) error {
	return c.Redirect(Identity.AuthURL(c.Query("state")))
}

// AuthCallback completes the OAuth flow: exchange the code, upsert the user
// by email, and issue a session token. Provider failures are logged and the
// user is sent back to the landing page; provider error detail never reaches
// the browser.
func AuthCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Redirect("/")
	}

	profile, err := Identity.Exchange(c.Context(), code)
	if err != nil {
		logger.ErrorLogger.Error("Identity provider exchange failed", zap.Error(err))
		return c.Redirect("/")
	}

	// Upsert by email: returning users keep their character and exp.
	var userID int
	err = config.DB.QueryRow(
		`INSERT INTO users (name, email, avatar_url) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET name = $1, avatar_url = $3, updated_at = CURRENT_TIMESTAMP
		 RETURNING id`,
		profile.Name, profile.Email, profile.AvatarURL,
	).Scan(&userID)
	if err != nil {
		return serverError(c, "Error upserting user", err)
	}

	tokenString, err := IssueSessionToken(userID)
	if err != nil {
		return serverError(c, "Error generating token", err)
	}

	logger.AuditLogger.Info("Login success", zap.Int("user_id", userID), zap.String("email", profile.Email))
	return c.JSON(fiber.Map{
		"message": "Login success",
		"success": true,
		"status":  fiber.StatusOK,
		"data": fiber.Map{
			"token": tokenString,
		},
	})
}

// IssueSessionToken mints the bearer token the auth middleware expects.
func IssueSessionToken(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(config.SecretKey)
}

// Logout is stateless: the client discards its token.
func Logout(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	logger.AuditLogger.Info("Logout", zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Logged out",
		"success": true,
		"status":  fiber.StatusOK,
	})
}
