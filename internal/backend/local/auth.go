package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/habitual/internal/backend"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
)

const (
	codeValidation   = "validation_failed"
	codeUserNotFound = "user_not_found"
	codeBadJWT       = "bad_jwt"
)

var (
	errInvalidCredentials = backend.AuthError(http.StatusBadRequest, backend.CodeInvalidCredentials, "Invalid login credentials")
	errEmailNotConfirmed  = backend.AuthError(http.StatusBadRequest, backend.CodeEmailNotConfirmed, "Email not confirmed")
	errUserExists         = backend.AuthError(http.StatusUnprocessableEntity, backend.CodeUserExists, "User already registered")
	errRefreshInvalid     = backend.AuthError(http.StatusBadRequest, backend.CodeRefreshInvalid, "Invalid Refresh Token: Refresh Token Not Found")
)

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type userRow struct {
	user         models.User
	passwordHash string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SignUp creates an account. With RequireConfirmation set no session is issued.
func (b *Backend) SignUp(ctx context.Context, email, password string, metadata map[string]any) (backend.AuthResponse, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return backend.AuthResponse{}, backend.AuthError(http.StatusBadRequest, codeValidation, "Unable to validate email address: invalid format")
	}
	if len(password) < constants.MinPasswordLength {
		return backend.AuthResponse{}, backend.AuthError(http.StatusUnprocessableEntity, backend.CodeWeakPassword,
			fmt.Sprintf("Password should be at least %d characters.", constants.MinPasswordLength))
	}

	if _, err := b.userByEmail(ctx, email); err == nil {
		return backend.AuthResponse{}, errUserExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return backend.AuthResponse{}, err
	}

	md, err := models.DecodeMetadata(metadata)
	if err != nil {
		return backend.AuthResponse{}, backend.InvalidError(fmt.Sprintf("invalid user metadata: %v", err))
	}
	rawMetadata, err := json.Marshal(models.EncodeMetadata(md))
	if err != nil {
		return backend.AuthResponse{}, fmt.Errorf("failed to encode user metadata: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), constants.BcryptCost)
	if err != nil {
		return backend.AuthResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := b.now().UTC()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Metadata:  md,
		CreatedAt: now,
	}
	var confirmedAt sql.NullString
	if !b.confirm {
		user.EmailConfirmedAt = &now
		confirmedAt = sql.NullString{String: formatTime(now), Valid: true}
	}

	_, err = b.db.ExecContext(ctx, b.rebind(`
		INSERT INTO users (id, email, password_hash, user_metadata, created_at, email_confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, string(hash), string(rawMetadata), formatTime(now), confirmedAt)
	if err != nil {
		return backend.AuthResponse{}, fmt.Errorf("failed to create user: %w", err)
	}

	if b.confirm {
		logger.Info("Sign-up pending email confirmation", "user_id", user.ID)
		return backend.AuthResponse{User: &user}, nil
	}

	session, err := b.issueSession(ctx, b.db, user)
	if err != nil {
		return backend.AuthResponse{}, err
	}
	b.auth.Set(backend.EventSignedIn, session)
	return backend.AuthResponse{User: &session.User, Session: session}, nil
}

// SignInWithPassword validates credentials and stores the resulting session.
func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (backend.AuthResponse, error) {
	row, err := b.userByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return backend.AuthResponse{}, errInvalidCredentials
	}
	if err != nil {
		return backend.AuthResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.passwordHash), []byte(password)); err != nil {
		return backend.AuthResponse{}, errInvalidCredentials
	}
	if !row.user.Confirmed() {
		return backend.AuthResponse{}, errEmailNotConfirmed
	}

	session, err := b.issueSession(ctx, b.db, row.user)
	if err != nil {
		return backend.AuthResponse{}, err
	}
	b.auth.Set(backend.EventSignedIn, session)
	return backend.AuthResponse{User: &session.User, Session: session}, nil
}

// SignOut revokes every refresh token of the current user and clears the session.
func (b *Backend) SignOut(ctx context.Context) error {
	if current := b.auth.Current(); current != nil {
		_, err := b.db.ExecContext(ctx, b.rebind(`
			UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`),
			formatTime(b.now()), current.User.ID)
		if err != nil {
			return fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}
	}
	b.auth.Set(backend.EventSignedOut, nil)
	return nil
}

// GetSession returns the current session, refreshing it if needed.
func (b *Backend) GetSession(ctx context.Context) (*models.Session, error) {
	return b.auth.Session(ctx)
}

// Subscribe registers for auth state transitions.
func (b *Backend) Subscribe() *backend.Subscription {
	return b.auth.Subscribe()
}

// ConfirmEmail marks an account as confirmed.
func (b *Backend) ConfirmEmail(ctx context.Context, email string) error {
	res, err := b.db.ExecContext(ctx, b.rebind(`
		UPDATE users SET email_confirmed_at = ? WHERE lower(email) = ? AND email_confirmed_at IS NULL`),
		formatTime(b.now()), normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := b.userByEmail(ctx, normalizeEmail(email)); errors.Is(err, sql.ErrNoRows) {
			return backend.AuthError(http.StatusNotFound, codeUserNotFound, "User not found")
		}
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (b *Backend) userByEmail(ctx context.Context, email string) (userRow, error) {
	return b.scanUser(b.db.QueryRowContext(ctx, b.rebind(`
		SELECT id, email, password_hash, user_metadata, created_at, email_confirmed_at
		FROM users WHERE lower(email) = ?`), email))
}

func (b *Backend) userByID(ctx context.Context, q queryer, id string) (userRow, error) {
	return b.scanUser(q.QueryRowContext(ctx, b.rebind(`
		SELECT id, email, password_hash, user_metadata, created_at, email_confirmed_at
		FROM users WHERE id = ?`), id))
}

func (b *Backend) scanUser(row *sql.Row) (userRow, error) {
	var (
		r           userRow
		rawMetadata string
		createdAt   timeValue
		confirmedAt timeValue
	)
	if err := row.Scan(&r.user.ID, &r.user.Email, &r.passwordHash, &rawMetadata, &createdAt, &confirmedAt); err != nil {
		return userRow{}, err
	}
	r.user.CreatedAt = createdAt.Time
	r.user.EmailConfirmedAt = confirmedAt.ptr()

	var raw map[string]any
	if err := json.Unmarshal([]byte(rawMetadata), &raw); err != nil {
		logger.Warn("Ignoring malformed user metadata", "user_id", r.user.ID, "error", err)
	} else if md, err := models.DecodeMetadata(raw); err == nil {
		r.user.Metadata = md
	}
	return r, nil
}

// issueSession signs an access token and stores a new refresh token for user.
func (b *Backend) issueSession(ctx context.Context, q queryer, user models.User) (*models.Session, error) {
	now := b.now().UTC()
	expiresAt := now.Add(constants.AccessTokenTTL)

	claims := tokenClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    constants.AppName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	raw := make([]byte, constants.RefreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refresh := base64.RawURLEncoding.EncodeToString(raw)

	_, err = q.ExecContext(ctx, b.rebind(`
		INSERT INTO refresh_tokens (token_hash, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`),
		hashToken(refresh), user.ID, formatTime(now), formatTime(now.Add(constants.RefreshTokenTTL)))
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		// NumericDate truncates to the second
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	}, nil
}

// refreshSession rotates refreshToken: the old token is revoked and a new
// session issued in the same transaction.
func (b *Backend) refreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		userID    string
		expiresAt timeValue
		revokedAt timeValue
	)
	err = tx.QueryRowContext(ctx, b.rebind(`
		SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash = ?`),
		hashToken(refreshToken)).Scan(&userID, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errRefreshInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	now := b.now()
	if revokedAt.Valid || !now.Before(expiresAt.Time) {
		return nil, errRefreshInvalid
	}

	if _, err := tx.ExecContext(ctx, b.rebind(`
		UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ?`),
		formatTime(now), hashToken(refreshToken)); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	row, err := b.userByID(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errRefreshInvalid
	}
	if err != nil {
		return nil, err
	}

	session, err := b.issueSession(ctx, tx, row.user)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refresh: %w", err)
	}
	return session, nil
}

// subject verifies accessToken and returns the user id it was issued to.
func (b *Backend) subject(accessToken string) (string, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(*jwt.Token) (interface{}, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		msg := "invalid JWT"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "JWT expired"
		}
		return "", &backend.Error{Kind: backend.KindAccess, Status: http.StatusUnauthorized, Code: codeBadJWT, Message: msg, Err: err}
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", &backend.Error{Kind: backend.KindAccess, Status: http.StatusUnauthorized, Code: codeBadJWT, Message: "invalid JWT"}
	}
	return claims.Subject, nil
}
