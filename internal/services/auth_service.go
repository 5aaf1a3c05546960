package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"expenses/internal/auth"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/store"
)

type TokenIssuer interface {
	Issue(userID string) (token string, expiresAt time.Time, err error)
}

// Registration is the input of AuthService.Register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
}

type AuthService struct {
	users  store.UserRepository
	issuer TokenIssuer
	now    func() time.Time

	// compared against when the email is unknown so both failure paths
	// spend a bcrypt comparison
	dummyHash string
}

func NewAuthService(users store.UserRepository, issuer TokenIssuer) *AuthService {
	dummy, err := auth.HashPassword("not-a-real-password")
	if err != nil {
		// bcrypt only fails on passwords longer than 72 bytes
		panic(err)
	}
	return &AuthService{users: users, issuer: issuer, now: time.Now, dummyHash: dummy}
}

func (r Registration) normalize() Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = core.NormalizeEmail(r.Email)
	return r
}

func (r Registration) validate() error {
	return core.Rules{
		{Field: "name", Message: "name is required", Valid: func() bool { return r.Name != "" }},
		{Field: "email", Message: "email must be a valid email address", Valid: func() bool { return validEmail(r.Email) }},
		{Field: "password", Message: "password must be at least 6 characters", Valid: func() bool {
			return utf8.RuneCountInString(r.Password) >= core.MinPasswordLength
		}},
		{Field: "password", Message: "password must be at most 72 bytes", Valid: func() bool {
			return len(r.Password) <= core.MaxPasswordBytes
		}},
	}.Validate()
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Register creates the account and returns a token for it.
func (s *AuthService) Register(ctx context.Context, in Registration) (Token, error) {
	u, err := s.CreateAccount(ctx, in)
	if err != nil {
		return Token{}, err
	}
	return s.issue(u.ID)
}

// CreateAccount validates in and stores the new user without issuing a
// token. Emails are unique after normalization.
func (s *AuthService) CreateAccount(ctx context.Context, in Registration) (core.User, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return core.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return core.User{}, err
	}

	u, err := s.users.CreateUser(ctx, core.User{
		ID:           core.NewID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User registered",
		applog.FieldOperation, applog.OpRegister,
		applog.FieldUserID, u.ID)
	return u, nil
}

// Login exchanges credentials for a token. Unknown email and wrong password
// are indistinguishable.
func (s *AuthService) Login(ctx context.Context, in Credentials) (Token, error) {
	email := core.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return Token{}, &core.ValidationError{Message: "Email and password are required"}
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		_, _ = auth.CheckPassword(s.dummyHash, in.Password)
		return Token{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, fmt.Errorf("get user: %w", err)
	}

	ok, err := auth.CheckPassword(u.PasswordHash, in.Password)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		slog.WarnContext(ctx, "Login failed",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUserID, u.ID)
		return Token{}, core.ErrInvalidCredentials
	}

	return s.issue(u.ID)
}

func (s *AuthService) issue(userID string) (Token, error) {
	tok, exp, err := s.issuer.Issue(userID)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: tok, ExpiresAt: exp}, nil
}
