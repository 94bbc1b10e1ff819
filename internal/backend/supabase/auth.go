package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
)

type userJSON struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	UserMetadata     map[string]any `json:"user_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	ConfirmedAt      *time.Time     `json:"confirmed_at"`
}

func (u userJSON) toModel() models.User {
	md, err := models.DecodeMetadata(u.UserMetadata)
	if err != nil {
		logger.Warn("Ignoring malformed user metadata", "user_id", u.ID, "error", err)
	}
	confirmed := u.EmailConfirmedAt
	if confirmed == nil {
		confirmed = u.ConfirmedAt
	}
	return models.User{
		ID:               u.ID,
		Email:            u.Email,
		Metadata:         md,
		CreatedAt:        u.CreatedAt,
		EmailConfirmedAt: confirmed,
	}
}

// sessionJSON is the token response. The signup endpoint returns a bare
// user object instead when email confirmation is pending; the embedded
// userJSON captures that shape.
type sessionJSON struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         userJSON `json:"user"`
	userJSON
}

func (c *Client) toSession(s sessionJSON) *models.Session {
	return &models.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresAt:    c.expiry(s),
		User:         s.User.toModel(),
	}
}

func (c *Client) expiry(s sessionJSON) time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	if s.ExpiresIn > 0 {
		return c.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return tokenExpiry(s.AccessToken)
}

// tokenExpiry reads the exp claim without verifying the signature.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// SignUp creates an account with metadata attached as user_metadata.
// When the project requires email confirmation no session is returned.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (backend.AuthResponse, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	var out sessionJSON
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPath + "/signup",
		body: map[string]any{
			"email":    email,
			"password": password,
			"data":     metadata,
		},
	}, &out)
	if err != nil {
		return backend.AuthResponse{}, err
	}

	if out.AccessToken == "" {
		user := out.userJSON.toModel()
		logger.Info("Sign-up pending email confirmation", "user_id", user.ID)
		return backend.AuthResponse{User: &user}, nil
	}

	session := c.toSession(out)
	c.auth.Set(backend.EventSignedIn, session)
	return backend.AuthResponse{User: &session.User, Session: session}, nil
}

// SignInWithPassword validates credentials and stores the resulting session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (backend.AuthResponse, error) {
	session, err := c.token(ctx, "password", map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return backend.AuthResponse{}, err
	}
	c.auth.Set(backend.EventSignedIn, session)
	return backend.AuthResponse{User: &session.User, Session: session}, nil
}

func (c *Client) refreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	return c.token(ctx, "refresh_token", map[string]any{"refresh_token": refreshToken})
}

func (c *Client) token(ctx context.Context, grant string, body map[string]any) (*models.Session, error) {
	var out sessionJSON
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPath + "/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("token response for grant %q has no access token", grant)
	}
	return c.toSession(out), nil
}

// SignOut revokes the session server-side and clears it locally. A session
// the server no longer knows about is cleared without error.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.auth.Current()
	if current != nil {
		err := c.do(ctx, request{
			method: http.MethodPost,
			path:   authPath + "/logout",
			token:  current.AccessToken,
		}, nil)
		var be *backend.Error
		if err != nil && !(errors.As(err, &be) && be.Kind == backend.KindAuth) {
			return err
		}
	}
	c.auth.Set(backend.EventSignedOut, nil)
	return nil
}

// GetSession returns the current session, refreshing it if needed.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	return c.auth.Session(ctx)
}

// GetUser fetches the user for the current session from the server.
func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	session, err := c.auth.Session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, backend.ErrNoSession
	}
	var out userJSON
	if err := c.do(ctx, request{method: http.MethodGet, path: authPath + "/user", token: session.AccessToken}, &out); err != nil {
		return nil, err
	}
	user := out.toModel()
	return &user, nil
}

// Subscribe registers for auth state transitions.
func (c *Client) Subscribe() *backend.Subscription {
	return c.auth.Subscribe()
}
