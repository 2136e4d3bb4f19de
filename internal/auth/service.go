// Package auth owns credentials: sign-up, sign-in, bearer tokens and the
// password-reset flow. Requests carry the identity id in their context once
// authenticated.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"fambudget/internal/core"
	"fambudget/internal/storage"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	ResetTokenTTL   = time.Hour

	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
	resetTokenSize = 32
)

// Mailer delivers password-reset tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, toEmail, toName, token string) error
}

type Config struct {
	Secret   string
	TokenTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Claims is the bearer token payload. The subject is the identity id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session is returned by sign-up and sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
}

type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type Service struct {
	store  *storage.Store
	mailer Mailer
	secret []byte
	ttl    time.Duration
	cost   int
}

func NewService(store *storage.Store, mailer Mailer, cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: empty token secret")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:  store,
		mailer: mailer,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		cost:   cfg.BcryptCost,
	}, nil
}

// SignUp creates the identity and its user record together.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.DisplayName)
	if !validEmail(email) {
		return Session{}, core.Invalid(fmt.Errorf("invalid email %q", in.Email))
	}
	if name == "" {
		return Session{}, core.Invalid(core.ErrEmptyName)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return Session{}, err
	}

	var user core.User
	err = s.store.InTx(ctx, func(q *storage.Queries) error {
		identity, err := q.CreateIdentity(ctx, email, hash)
		if err != nil {
			return err
		}
		user, err = q.CreateUser(ctx, core.User{
			AuthIdentity: identity.ID,
			DisplayName:  name,
			Email:        identity.Email,
			Role:         core.FamilyMember,
		})
		return err
	})
	if err != nil {
		return Session{}, fmt.Errorf("sign up: %w", err)
	}

	slog.InfoContext(ctx, "User signed up", "user_id", user.ID)
	return s.issue(user)
}

// SignIn checks the credentials. Unknown emails and wrong passwords are
// both reported as core.ErrUnauthorized.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	identity, err := s.store.GetIdentityByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, core.ErrUnauthorized
	}
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return Session{}, core.ErrUnauthorized
	}

	user, err := s.store.GetUserByIdentity(ctx, identity.ID)
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}
	return s.issue(user)
}

// SignOut is a no-op on the server: tokens are stateless and the client
// discards its copy.
func (s *Service) SignOut(ctx context.Context, identityID string) {
	slog.InfoContext(ctx, "User signed out", "identity", identityID)
}

// Authenticate validates a bearer token and returns its identity id.
func (s *Service) Authenticate(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.store.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: invalid token", core.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// RequestPasswordReset mails a single-use reset token. Unknown emails are
// accepted silently so the endpoint does not reveal registered addresses.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	identity, err := s.store.GetIdentityByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Password reset for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	user, err := s.store.GetUserByIdentity(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.store.CreateResetToken(ctx, token, identity.ID, s.store.Now().Add(ResetTokenTTL)); err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, identity.Email, user.DisplayName, token); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	err = s.store.InTx(ctx, func(q *storage.Queries) error {
		identityID, err := q.ConsumeResetToken(ctx, token)
		if errors.Is(err, core.ErrNotFound) {
			return core.Invalid(errors.New("invalid or expired reset token"))
		}
		if err != nil {
			return err
		}
		return q.UpdatePasswordHash(ctx, identityID, hash)
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// UpdatePassword changes the password of a signed-in identity after
// checking the current one.
func (s *Service) UpdatePassword(ctx context.Context, identityID, current, next string) error {
	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(current)); err != nil {
		return core.ErrUnauthorized
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, identityID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *Service) issue(user core.User) (Session, error) {
	now := s.store.Now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.AuthIdentity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return "", core.Invalid(fmt.Errorf("password must have between %d and %d characters", minPasswordLen, maxPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\n")
}
