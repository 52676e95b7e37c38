package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/auth"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/guard"
	"github.com/pawtap/server/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// TelegramUsers upserts players from their Telegram profile.
type TelegramUsers interface {
	SyncTelegram(ctx context.Context, in domain.User) (domain.User, bool, error)
}

// AuthService handles Telegram player login and admin login.
type AuthService struct {
	db        repository.DBTX
	users     TelegramUsers
	admins    repository.AdminUserRepository
	validator *auth.InitDataValidator
	jwtMgr    *auth.JWTManager
	lockout   *guard.Lockout
	logger    *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	db repository.DBTX,
	users TelegramUsers,
	admins repository.AdminUserRepository,
	validator *auth.InitDataValidator,
	jwtMgr *auth.JWTManager,
	lockout *guard.Lockout,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		db:        db,
		users:     users,
		admins:    admins,
		validator: validator,
		jwtMgr:    jwtMgr,
		lockout:   lockout,
		logger:    logger,
	}
}

// AuthResult is returned on a successful Telegram login.
type AuthResult struct {
	Token      string      `json:"token"`
	User       domain.User `json:"user"`
	Created    bool        `json:"created"`
	StartParam string      `json:"-"`
}

// TelegramLogin verifies Mini App init data, upserts the user and issues a player token.
func (s *AuthService) TelegramLogin(ctx context.Context, initData string) (*AuthResult, error) {
	data, err := s.validator.Validate(initData)
	if err != nil {
		s.logger.Warn("telegram init data rejected", "error", err)
		return nil, domain.ErrUnauthorized("invalid telegram init data")
	}

	user, created, err := s.users.SyncTelegram(ctx, domain.User{
		TelegramID:   data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		LanguageCode: data.User.LanguageCode,
		PhotoURL:     data.User.PhotoURL,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.jwtMgr.GeneratePlayerToken(user.ID, user.TelegramID, user.Username)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}

	if created {
		s.logger.Info("player registered", "user_id", user.ID, "telegram_id", user.TelegramID)
	}
	return &AuthResult{Token: token, User: user, Created: created, StartParam: data.StartParam}, nil
}

// AdminLoginInput holds the admin login request fields.
type AdminLoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminAuthResult is returned on a successful admin login.
type AdminAuthResult struct {
	Token string           `json:"token"`
	Admin domain.AdminUser `json:"admin"`
}

// AdminLogin authenticates a back-office user. Repeated failures lock the email out.
func (s *AuthService) AdminLogin(ctx context.Context, input AdminLoginInput) (*AdminAuthResult, error) {
	if err := s.lockout.CheckLocked(input.Email); err != nil {
		return nil, err
	}

	admin, err := s.admins.FindByEmail(ctx, s.db, input.Email)
	if err != nil {
		return nil, domain.ErrInternal("find admin", err)
	}
	if admin == nil || !admin.Active {
		s.lockout.RecordAttempt(input.Email, false)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(input.Password)); err != nil {
		s.lockout.RecordAttempt(input.Email, false)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	s.lockout.RecordAttempt(input.Email, true)

	token, err := s.jwtMgr.GenerateAdminToken(admin.ID, admin.Email, admin.Role)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &AdminAuthResult{Token: token, Admin: *admin}, nil
}

// CreateAdmin stores a back-office user with a bcrypt password hash.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, displayName, role string) (*domain.AdminUser, error) {
	if err := domain.ValidateEmail(email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if len(password) < 12 {
		return nil, domain.ErrValidation("admin password must be at least 12 characters")
	}
	if !auth.ValidRole(role) {
		return nil, domain.ErrValidation("unknown admin role: " + role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	admin := &domain.AdminUser{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         role,
		Active:       true,
	}
	if err := s.admins.Create(ctx, s.db, admin); err != nil {
		return nil, domain.ErrInternal("create admin", err)
	}
	return admin, nil
}
