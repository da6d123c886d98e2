package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/store"
)

const minPasswordLength = 8

var (
	ErrNotFound           = fmt.Errorf("user %w", apperr.ErrNotFound)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", apperr.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)
	ErrInactive           = fmt.Errorf("%w: account is disabled", apperr.ErrUnauthorized)
)

type Service struct {
	users  UserRepository
	hasher *PasswordHasher
	jwt    auth.JWTConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(users UserRepository, hasher *PasswordHasher, jwt auth.JWTConfig, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		jwt:    jwt,
		logger: logger.With().Str("component", "identity").Logger(),
		now:    time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func validateUser(req *CreateUserRequest) error {
	errs := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = "Name is required"
	}
	if !emailPattern.MatchString(req.Email) {
		errs["email"] = "Invalid email format"
	}
	if !auth.ValidRole(NormalizeRole(req.Role)) {
		errs["role"] = "Role must be one of " + strings.Join(auth.AllRoles(), ", ")
	}
	if len(req.Password) < minPasswordLength {
		errs["password"] = fmt.Sprintf("Password must be at least %d characters", minPasswordLength)
	}
	return apperr.Fields(errs)
}

func (s *Service) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := validateUser(req); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &User{
		ID:           store.NewID("USR"),
		Email:        normalizeEmail(req.Email),
		Name:         strings.TrimSpace(req.Name),
		Role:         NormalizeRole(req.Role),
		Department:   req.Department,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user created")
	public := u.Public()
	return &public, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	public := u.Public()
	return &public, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*User, len(users))
	for i, u := range users {
		public := u.Public()
		out[i] = &public
	}
	return out, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*User, error) {
	u, err := s.users.Update(ctx, id, func(u *User) error {
		u.Active = active
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", id).Bool("active", active).Msg("user activation changed")
	public := u.Public()
	return &public, nil
}

// Login checks the credentials and issues an access token. Accounts that
// still carry a plaintext password are rehashed on success.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, apperr.Invalid("email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, rehash := false, false
	switch {
	case u.PasswordHash != "":
		if ok, err = s.hasher.Verify(u.PasswordHash, req.Password); err != nil {
			return nil, err
		}
	case u.LegacyPassword != "":
		ok = legacyMatch(u.LegacyPassword, req.Password)
		rehash = ok
	}
	if !ok {
		s.logger.Warn().Str("user_id", u.ID).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrInactive
	}

	var hash string
	if rehash {
		if hash, err = s.hasher.Hash(req.Password); err != nil {
			return nil, err
		}
	}
	now := s.now().UTC()
	u, err = s.users.Update(ctx, u.ID, func(u *User) error {
		if hash != "" {
			u.PasswordHash = hash
			u.LegacyPassword = ""
		}
		u.Role = NormalizeRole(u.Role)
		u.LastLoginAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	if rehash {
		s.logger.Info().Str("user_id", u.ID).Msg("legacy password migrated")
	}

	token, expires, err := auth.IssueToken(s.jwt, u.ID, u.Email, []string{u.Role}, now)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{
		Token:       token,
		ExpiresAt:   expires,
		User:        u.Public(),
		Permissions: auth.Permissions(u.Role),
	}, nil
}

// EnsureAdmin creates the bootstrap administrator when no account uses the
// email yet. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	_, err := s.CreateUser(ctx, &CreateUserRequest{
		Email:    email,
		Name:     "Administrator",
		Role:     auth.RoleAdmin,
		Password: password,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
