package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	internalerrors "github.com/jrsteele09/go-edu-portal/internal/errors"
	tokenjwt "github.com/jrsteele09/go-edu-portal/token/jwt"
	"github.com/jrsteele09/go-edu-portal/token/refresh"
	"github.com/jrsteele09/go-edu-portal/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// TokenPair is what a successful login, registration or refresh returns to the client.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Session is a TokenPair plus the user it belongs to.
type Session struct {
	TokenPair
	User *users.User `json:"user"`
}

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users users.UserRepo
}

// Service signs users in and keeps their sessions alive.
type Service struct {
	repos     Repos
	tokens    *tokenjwt.Creator
	refresh   *refresh.Manager
	revoked   tokenjwt.RevokedTokenCache
	validator *Validator
	nowTime   func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(as *Service) {
		as.nowTime = nowFunc
	}
}

// WithRevocation makes Logout revoke the caller's access token as well as the refresh token.
func WithRevocation(cache tokenjwt.RevokedTokenCache) ServiceOption {
	return func(as *Service) {
		as.revoked = cache
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(repos Repos, tokens *tokenjwt.Creator, refreshManager *refresh.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token creator is required")
	}
	if refreshManager == nil {
		return nil, errors.New("[NewService] refresh manager is required")
	}

	as := &Service{
		repos:     repos,
		tokens:    tokens,
		refresh:   refreshManager,
		validator: NewValidator(),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(as)
	}
	return as, nil
}

// Register creates a regular user account and signs it in.
func (as *Service) Register(ctx context.Context, req *RegisterRequest) (*Session, error) {
	if err := as.validator.ValidateRegistration(req); err != nil {
		return nil, err
	}

	user, err := users.NewUser(req.Email, req.Password, req.FirstName, req.LastName, users.RoleUser)
	if err != nil {
		return nil, errors.Wrap(err, "[Register] invalid user")
	}
	user.DateJoined = as.nowTime()

	if err := as.repos.Users.Create(user); err != nil {
		if internalerrors.Is(err, internalerrors.ErrEmailTaken) {
			return nil, &ValidationError{Fields: map[string]string{"email": "Email is already registered"}}
		}
		return nil, errors.Wrap(err, "[Register] failed to create user")
	}

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user registered")
	return as.issue(user)
}

// Login checks the credentials and issues a new token pair. Unknown emails and wrong passwords
// both fail with errors.ErrInvalidCredentials.
func (as *Service) Login(ctx context.Context, req *LoginRequest) (*Session, error) {
	if err := as.validator.ValidateLogin(req); err != nil {
		return nil, err
	}

	user, err := as.repos.Users.GetByEmail(users.NormaliseEmail(req.Email))
	if err != nil {
		// Hash anyway so unknown emails take as long as wrong passwords.
		users.CheckPasswordHash(req.Password, dummyHash())
		return nil, internalerrors.ErrInvalidCredentials
	}
	if !user.CheckPassword(req.Password) {
		return nil, internalerrors.ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, internalerrors.ErrUserBlocked
	}

	user.LastLogin = as.nowTime()
	if err := as.repos.Users.Upsert(user); err != nil {
		return nil, errors.Wrap(err, "[Login] failed to record login")
	}

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user signed in")
	return as.issue(user)
}

// Refresh rotates refreshToken and issues a new access token for its owner.
func (as *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, internalerrors.ErrInvalidRefreshToken
	}

	stored, next, err := as.refresh.Rotate(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := as.repos.Users.GetByID(stored.UserID)
	if err != nil || user.Blocked {
		if _, revokeErr := as.refresh.RevokeUser(stored.UserID); revokeErr != nil {
			zerolog.Ctx(ctx).Error().Err(revokeErr).Msg("failed to revoke refresh tokens")
		}
		if err == nil {
			return nil, internalerrors.ErrUserBlocked
		}
		return nil, internalerrors.ErrInvalidRefreshToken
	}

	access, exp, err := as.tokens.CreateAccessToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Refresh] failed to create access token")
	}
	return &Session{
		TokenPair: TokenPair{AccessToken: access, RefreshToken: next, ExpiresAt: exp},
		User:      user,
	}, nil
}

// Logout deletes refreshToken and, when revocation is enabled, blocks the access token
// identified by jti until it expires. Unknown refresh tokens are ignored.
func (as *Service) Logout(ctx context.Context, refreshToken, jti string, accessExpiry time.Time) error {
	if refreshToken != "" {
		if err := as.refresh.Delete(refreshToken); err != nil && !internalerrors.Is(err, internalerrors.ErrNotFound) {
			return errors.Wrap(err, "[Logout] failed to delete refresh token")
		}
	}
	if as.revoked != nil && jti != "" {
		if err := as.revoked.Add(jti, accessExpiry); err != nil {
			return errors.Wrap(err, "[Logout] failed to revoke access token")
		}
		as.revoked.Cleanup(as.nowTime())
	}
	zerolog.Ctx(ctx).Debug().Msg("user signed out")
	return nil
}

// Me returns the signed-in user.
func (as *Service) Me(userID string) (*users.User, error) {
	return as.repos.Users.GetByID(userID)
}

func (as *Service) issue(user *users.User) (*Session, error) {
	access, exp, err := as.tokens.CreateAccessToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create access token")
	}
	refreshToken, err := as.refresh.Create(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create refresh token")
	}
	return &Session{
		TokenPair: TokenPair{AccessToken: access, RefreshToken: refreshToken, ExpiresAt: exp},
		User:      user,
	}, nil
}

// dummyHash is compared against when the email is unknown.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := users.HashPassword(uuid.New().String())
	return hash
})
