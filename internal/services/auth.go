package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/monitoring"
	"taskdesk/backend/internal/repositories"
)

type RegisterInput struct {
	Email    *string `json:"email" validate:"required,notblank,email,max=254"`
	Username *string `json:"username" validate:"required,notblank,max=150"`
	Password *string `json:"password" validate:"required,notblank,max=128"`
}

type LoginInput struct {
	Email    *string `json:"email" validate:"required,notblank"`
	Password *string `json:"password" validate:"required,notblank"`
}

// TokenInput carries a refresh token, or any token for verification.
type TokenInput struct {
	Refresh *string `json:"refresh" validate:"required,notblank"`
}

type VerifyInput struct {
	Token *string `json:"token" validate:"required,notblank"`
}

type ProfileInput struct {
	Email    *string `json:"email" validate:"required,notblank,email,max=254"`
	Username *string `json:"username" validate:"required,notblank,max=150"`
}

type profilePatch struct {
	Email    *string `json:"email" validate:"omitnil,notblank,email,max=254"`
	Username *string `json:"username" validate:"omitnil,notblank,max=150"`
}

type RegisterResult struct {
	User   *models.User
	Tokens TokenPair
}

type LoginResult struct {
	User   *models.User
	Tokens TokenPair
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	RefreshToken(ctx context.Context, in TokenInput) (string, error)
	VerifyToken(ctx context.Context, in VerifyInput) error
	Logout(ctx context.Context, in TokenInput) error
	// Authenticate resolves a bearer access token to an active user.
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	GetProfile(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User, in ProfileInput, partial bool) (*models.User, error)
	CreateSuperuser(ctx context.Context, in RegisterInput) (*models.User, error)
	FlushExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type AuthServiceImpl struct {
	users      repositories.UserRepository
	tokens     *TokenManager
	blacklist  *TokenBlacklist
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(users repositories.UserRepository, tokens *TokenManager, blacklist *TokenBlacklist, bcryptCost int) *AuthServiceImpl {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthServiceImpl{
		users:      users,
		tokens:     tokens,
		blacklist:  blacklist,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	user, err := s.createUser(ctx, in, false)
	monitoring.RecordAuthEvent("register", err)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{User: user, Tokens: pair}, nil
}

func (s *AuthServiceImpl) CreateSuperuser(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.createUser(ctx, in, true)
}

func (s *AuthServiceImpl) createUser(ctx context.Context, in RegisterInput, superuser bool) (*models.User, error) {
	in.Email = trimmed(in.Email)
	in.Username = trimmed(in.Username)

	ve, err := checkFields(in)
	if err != nil {
		return nil, err
	}

	var email string
	if !invalid(ve, "email") {
		email = normalizeEmail(*in.Email)
		taken, err := s.users.ExistsByEmail(ctx, email, uuid.Nil)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			ve.Add("email", apierrors.MsgEmailTaken)
		}
	}
	if ve.HasErrors() {
		return nil, ve
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:       email,
		Username:    *in.Username,
		Password:    string(hash),
		IsActive:    true,
		IsStaff:     superuser,
		IsSuperuser: superuser,
		DateJoined:  s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierrors.FieldError("email", apierrors.MsgEmailTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	result, err := s.login(ctx, in)
	monitoring.RecordAuthEvent("login", err)
	return result, err
}

func (s *AuthServiceImpl) login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = trimmed(in.Email)

	ve, err := checkFields(in)
	if err != nil {
		return nil, err
	}
	if ve.HasErrors() {
		return nil, ve
	}

	incorrect := apierrors.FieldError(apierrors.NonFieldErrors, apierrors.MsgIncorrectCredentials)

	user, err := s.users.FindByEmail(ctx, normalizeEmail(*in.Email))
	if errors.Is(err, repositories.ErrNotFound) {
		// Spend the same bcrypt time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummyPasswordHash(), []byte(*in.Password))
		return nil, incorrect
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(*in.Password)) != nil || !user.IsActive {
		return nil, incorrect
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Tokens: pair}, nil
}

func (s *AuthServiceImpl) RefreshToken(ctx context.Context, in TokenInput) (string, error) {
	access, err := s.refresh(ctx, in)
	monitoring.RecordAuthEvent("refresh", err)
	return access, err
}

func (s *AuthServiceImpl) refresh(ctx context.Context, in TokenInput) (string, error) {
	ve, err := checkFields(in)
	if err != nil {
		return "", err
	}
	if ve.HasErrors() {
		return "", ve
	}

	claims, err := s.tokens.Parse(*in.Refresh, TokenTypeRefresh)
	if err != nil {
		return "", apierrors.ErrTokenNotValid
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return "", apierrors.ErrTokenNotValid
	}

	user, err := s.users.FindByID(ctx, claims.UserUUID())
	if errors.Is(err, repositories.ErrNotFound) {
		return "", apierrors.ErrTokenNotValid
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return "", apierrors.ErrTokenNotValid
	}

	return s.tokens.IssueAccess(user.ID)
}

func (s *AuthServiceImpl) VerifyToken(ctx context.Context, in VerifyInput) error {
	err := s.verify(ctx, in)
	monitoring.RecordAuthEvent("verify", err)
	return err
}

func (s *AuthServiceImpl) verify(ctx context.Context, in VerifyInput) error {
	ve, err := checkFields(in)
	if err != nil {
		return err
	}
	if ve.HasErrors() {
		return ve
	}

	claims, err := s.tokens.Parse(*in.Token, "")
	if err != nil {
		return apierrors.ErrTokenNotValid
	}

	if claims.TokenType == TokenTypeRefresh {
		revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return fmt.Errorf("check blacklist: %w", err)
		}
		if revoked {
			return apierrors.ErrTokenNotValid
		}
	}
	return nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, in TokenInput) error {
	err := s.logout(ctx, in)
	monitoring.RecordAuthEvent("logout", err)
	return err
}

func (s *AuthServiceImpl) logout(ctx context.Context, in TokenInput) error {
	ve, err := checkFields(in)
	if err != nil {
		return err
	}
	if ve.HasErrors() {
		return ve
	}

	claims, err := s.tokens.Parse(*in.Refresh, TokenTypeRefresh)
	if err != nil {
		return apierrors.FieldError("refresh", apierrors.MsgTokenInvalid)
	}

	if err := s.blacklist.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (s *AuthServiceImpl) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.Parse(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, apierrors.ErrAccessTokenNotValid
	}

	user, err := s.users.FindByID(ctx, claims.UserUUID())
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apierrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return nil, apierrors.ErrUserInactive
	}

	return user, nil
}

func (s *AuthServiceImpl) GetProfile(ctx context.Context, user *models.User) (*models.User, error) {
	if user == nil {
		return nil, apierrors.ErrNotAuthenticated
	}

	fresh, err := s.users.FindByID(ctx, user.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apierrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return fresh, nil
}

func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput, partial bool) (*models.User, error) {
	current, err := s.GetProfile(ctx, user)
	if err != nil {
		return nil, err
	}

	in.Email = trimmed(in.Email)
	in.Username = trimmed(in.Username)

	var ve *apierrors.ValidationError
	if partial {
		ve, err = checkFields(profilePatch(in))
	} else {
		ve, err = checkFields(in)
	}
	if err != nil {
		return nil, err
	}

	var email string
	if in.Email != nil && !invalid(ve, "email") {
		email = normalizeEmail(*in.Email)
		taken, err := s.users.ExistsByEmail(ctx, email, current.ID)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			ve.Add("email", apierrors.MsgEmailTaken)
		}
	}
	if ve.HasErrors() {
		return nil, ve
	}

	if in.Email != nil {
		current.Email = email
	}
	if in.Username != nil {
		current.Username = *in.Username
	}

	if err := s.users.Save(ctx, current); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierrors.FieldError("email", apierrors.MsgEmailTaken)
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	return current, nil
}

func (s *AuthServiceImpl) FlushExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return s.blacklist.FlushExpired(ctx, now)
}

func (s *AuthServiceImpl) issuePair(ctx context.Context, user *models.User) (TokenPair, error) {
	refresh, claims, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.blacklist.Track(ctx, claims); err != nil {
		return TokenPair{}, fmt.Errorf("record refresh token: %w", err)
	}

	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Refresh: refresh, Access: access}, nil
}

func (s *AuthServiceImpl) dummyPasswordHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("timing-equaliser"), s.bcryptCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
