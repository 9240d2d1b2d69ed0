package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"charityfeed/internal/cache"
	"charityfeed/internal/featureflags"
	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
	"charityfeed/internal/repository"
	"charityfeed/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "charityfeed-api"
	tokenAudience = "charityfeed-client"
)

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("charityfeed-dummy-password"), bcrypt.MinCost)

type AccountInput struct {
	Email    string
	Password string
	FullName string
}

type AuthServiceConfig struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// AuthService issues, validates and revokes sessions and decides who may act
// as an operator.
type AuthService struct {
	users  repository.UserRepository
	cache  *cache.Store
	flags  *featureflags.Manager
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, cacheStore *cache.Store, flags *featureflags.Manager, cfg AuthServiceConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:  users,
		cache:  cacheStore,
		flags:  flags,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		cost:   cfg.BcryptCost,
		now:    time.Now,
	}
}

// Signup creates a regular user account and signs it in.
func (s *AuthService) Signup(ctx context.Context, in AccountInput) (*models.Session, error) {
	user, err := s.createAccount(ctx, in, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// AdminSetup creates the first admin account. It is refused once any admin
// exists; later admins are created with CreateAdmin from the operator CLI.
func (s *AuthService) AdminSetup(ctx context.Context, in AccountInput) (*models.Session, error) {
	admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if admins > 0 {
		return nil, models.NewForbiddenError("Admin setup is already complete")
	}
	user, err := s.createAccount(ctx, in, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "admin account created", slog.Uint64("user_id", uint64(user.ID)))
	return s.issue(user)
}

// CreateAdmin creates an admin account unconditionally.
func (s *AuthService) CreateAdmin(ctx context.Context, in AccountInput) (*models.User, error) {
	return s.createAccount(ctx, in, models.RoleAdmin)
}

// Promote grants the admin role to an existing account.
func (s *AuthService) Promote(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		return user, nil
	}
	if err := s.users.UpdateRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return nil, err
	}
	user.Role = models.RoleAdmin
	return user, nil
}

func (s *AuthService) createAccount(ctx context.Context, in AccountInput, role models.Role) (*models.User, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateFullName(in.FullName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Email:    in.Email,
		Password: string(hashed),
		FullName: strings.TrimSpace(in.FullName),
		Role:     role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and returns a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	invalid := models.NewUnauthorizedError("Invalid email or password")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalid
	}
	return s.issue(user)
}

// issue signs a token for user.
func (s *AuthService) issue(user *models.User) (*models.Session, error) {
	if len(s.secret) == 0 {
		return nil, models.NewInternalError(errors.New("JWT secret not configured"))
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"role": string(user.Role),
		"iss":  tokenIssuer,
		"aud":  tokenAudience,
		"exp":  expires.Unix(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"jti":  uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.Session{Token: signed, User: user, ExpiresAt: time.Unix(expires.Unix(), 0).UTC()}, nil
}

type tokenClaims struct {
	userID    uint
	jti       string
	expiresAt time.Time
}

func (s *AuthService) parse(token string) (*tokenClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || id == 0 {
		return nil, models.NewUnauthorizedError("Invalid token subject")
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, models.NewUnauthorizedError("Invalid token id")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, models.NewUnauthorizedError("Invalid token expiry")
	}
	return &tokenClaims{userID: uint(id), jti: jti, expiresAt: exp.Time}, nil
}

func (s *AuthService) revoked(ctx context.Context, jti string) bool {
	rdb := s.cache.Client()
	if rdb == nil {
		return false
	}
	n, err := rdb.Exists(ctx, cache.RevokedTokenKey(jti)).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "token revocation check failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}

// Authenticate resolves a token into a session, failing with UNAUTHORIZED
// for invalid, expired or revoked tokens and for deleted accounts.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if s.revoked(ctx, claims.jti) {
		return nil, models.NewUnauthorizedError("Session has been signed out")
	}
	user, err := s.users.GetByID(ctx, claims.userID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Account no longer exists")
		}
		return nil, err
	}
	return &models.Session{Token: token, User: user, ExpiresAt: claims.expiresAt.UTC()}, nil
}

// CurrentSession is Authenticate without the error for anonymous callers:
// it returns nil for an empty, invalid or revoked token.
func (s *AuthService) CurrentSession(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := s.Authenticate(ctx, token)
	if models.HasCode(err, models.CodeUnauthorized) {
		return nil, nil
	}
	return session, err
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	rdb := s.cache.Client()
	if rdb == nil {
		middleware.Logger.WarnContext(ctx, "logout without redis: token stays valid until expiry")
		return nil
	}
	ttl := claims.expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := rdb.Set(ctx, cache.RevokedTokenKey(claims.jti), "1", ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IsOperator reports whether session may manage posts: the admin role, or
// any session while the operator_any_session flag is on.
func (s *AuthService) IsOperator(session *models.Session) bool {
	if session == nil || session.User == nil {
		return false
	}
	if session.User.IsAdmin() {
		return true
	}
	return s.flags.Enabled(featureflags.OperatorAnySession, session.User.ID)
}

// RequireOperator implements OperatorGate.
func (s *AuthService) RequireOperator(session *models.Session) error {
	if err := requireSession(session); err != nil {
		return err
	}
	if !s.IsOperator(session) {
		return models.NewForbiddenError("Operator access required")
	}
	return nil
}
