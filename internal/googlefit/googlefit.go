/*
Package googlefit connects users to Google Fit through OAuth 2.0.

The authorization flow is real; fetching data is still a placeholder that
returns a fixed sample day once a user is connected.
*/
package googlefit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"fitgent/internal/config"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	ScopeActivityRead = "https://www.googleapis.com/auth/fitness.activity.read"
	ScopeSleepRead    = "https://www.googleapis.com/auth/fitness.sleep.read"
	ScopeHeartRead    = "https://www.googleapis.com/auth/fitness.heart_rate.read"

	CallbackPath = "/auth/google-fit/callback"

	providerName = "google"
	sessionName  = "google_fit"
	sessionUser  = "user_id"
)

var (
	ErrNotConfigured = errors.New("google fit: client id, client secret, app url and session secret are required")
	ErrNotConnected  = errors.New("google fit: user has not connected an account")
)

var scopes = []string{"email", ScopeActivityRead, ScopeSleepRead, ScopeHeartRead}

// DailyData is one day of metrics as reported by Google Fit.
type DailyData struct {
	Steps          int     `json:"steps"`
	SleepHours     float64 `json:"sleep_hours"`
	HeartRateAvg   float64 `json:"heart_rate_avg"`
	CaloriesBurned float64 `json:"calories_burned"`
	Source         string  `json:"source"`
}

// Client runs the OAuth flow and keeps each connected user's token in memory.
type Client struct {
	oauth    *oauth2.Config
	sessions *sessions.CookieStore

	mu     sync.RWMutex
	tokens map[int64]*oauth2.Token
}

// New registers the goth Google provider and prepares the cookie stores.
func New(cfg config.Config) (*Client, error) {
	if !cfg.GoogleFitEnabled() || cfg.SessionSecret == "" {
		return nil, ErrNotConfigured
	}

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.MaxAge(600)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.IsProduction()
	store.Options.SameSite = http.SameSiteLaxMode

	gothic.Store = store

	callbackURL := cfg.AppURL + CallbackPath
	goth.UseProviders(
		google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, callbackURL, scopes...),
	)

	log.Info().Str("callback_url", callbackURL).Str("env", cfg.Env).Msg("Google Fit OAuth initialized")

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  callbackURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		sessions: store,
		tokens:   make(map[int64]*oauth2.Token),
	}, nil
}

// AuthURL is the consent screen URL, requesting offline access so a
// refresh token is issued.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// session returns the flow's cookie session. A cookie that fails to decode,
// usually after SESSION_SECRET changed, yields a fresh session.
func (c *Client) session(req *http.Request) *sessions.Session {
	sess, err := c.sessions.Get(req, sessionName)
	if err != nil {
		log.Warn().Err(err).Msg("Discarding undecodable Google Fit session cookie")
	}
	return sess
}

// BeginAuthHandler handles GET /auth/google-fit?user_id=N.
func (c *Client) BeginAuthHandler(ctx echo.Context) error {
	userID, err := strconv.ParseInt(ctx.QueryParam("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "user_id query parameter must be a positive integer"})
	}

	req := ctx.Request()
	w := ctx.Response().Writer

	sess := c.session(req)
	sess.Values[sessionUser] = userID
	if err := sess.Save(req, w); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to save Google Fit session")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not start Google Fit authentication"})
	}

	log.Info().Int64("user_id", userID).Msg("Google Fit auth initiated")
	log.Debug().Int64("user_id", userID).Str("auth_url", c.AuthURL(strconv.FormatInt(userID, 10))).Msg("Google Fit consent screen")

	gothic.BeginAuthHandler(w, gothic.GetContextWithProvider(req, providerName))
	return nil
}

// CallbackHandler handles the redirect back from Google.
func (c *Client) CallbackHandler(ctx echo.Context) error {
	req := ctx.Request()

	sess := c.session(req)
	userID, ok := sess.Values[sessionUser].(int64)
	if !ok || userID <= 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Google Fit session expired, start again"})
	}

	gothUser, err := gothic.CompleteUserAuth(ctx.Response().Writer, gothic.GetContextWithProvider(req, providerName))
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Google Fit auth completion failed")
		return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Google Fit authorization failed"})
	}

	c.SetToken(userID, &oauth2.Token{
		AccessToken:  gothUser.AccessToken,
		RefreshToken: gothUser.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       gothUser.ExpiresAt,
	})

	log.Info().Int64("user_id", userID).Str("email", gothUser.Email).Msg("Google Fit account connected")

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Google Fit account connected",
		"user_id": userID,
	})
}

// SetToken records the token for a user.
func (c *Client) SetToken(userID int64, tok *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[userID] = tok
}

// Connected reports whether the user has completed the OAuth flow.
func (c *Client) Connected(userID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tokens[userID]
	return ok
}

// token returns a usable token, refreshing it when it has expired.
func (c *Client) token(ctx context.Context, userID int64) (*oauth2.Token, error) {
	c.mu.RLock()
	tok, ok := c.tokens[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotConnected
	}
	if tok.Valid() {
		return tok, nil
	}

	fresh, err := c.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh google fit token for user %d: %w", userID, err)
	}
	c.SetToken(userID, fresh)
	return fresh, nil
}

// Fetch returns the user's metrics for today.
// TODO: query the dataset:aggregate endpoint with the token instead of the sample day.
func (c *Client) Fetch(ctx context.Context, userID int64) (DailyData, error) {
	tok, err := c.token(ctx, userID)
	if err != nil {
		return DailyData{}, err
	}

	log.Info().
		Int64("user_id", userID).
		Time("token_expiry", tok.Expiry).
		Msg("Fetching Google Fit data")

	return DailyData{
		Steps:          5000,
		SleepHours:     7.5,
		HeartRateAvg:   65,
		CaloriesBurned: 300,
		Source:         "google_fit",
	}, nil
}

// Today is the date Fetch reports for.
func Today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
