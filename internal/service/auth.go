package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"story-relay/internal/domain"
	"story-relay/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// maxPasswordLength 是 bcrypt 能处理的最大字节数
const maxPasswordLength = 72

// GoogleVerifier 校验 Google ID token 并返回身份信息。
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*domain.GoogleIdentity, error)
}

// AuthConfig 是令牌签发所需的配置
type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AuthResult 是登录类操作的结果
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

// AuthService 负责用户注册、登录以及令牌的签发和轮换。
type AuthService struct {
	clock
	userRepo      repository.UserRepository
	google        GoogleVerifier
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewAuthService 创建 AuthService 实例。google 为 nil 时禁用 Google 登录。
func NewAuthService(userRepo repository.UserRepository, cfg AuthConfig, google GoogleVerifier) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("JWT access and refresh secrets cannot be empty")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &AuthService{
		userRepo:      userRepo,
		google:        google,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

// Register 使用邮箱和密码注册新账号并直接登录。
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	logCtx := logrus.WithFields(logrus.Fields{"email": email, "operation": "register"})

	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordLength)
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		logCtx.Warn("Registration failed: email already registered")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		logCtx.WithError(err).Error("Database error checking email")
		return nil, ErrInternalServer
	}

	hashed, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	user := &domain.User{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(name),
		Email:    email,
		Password: hashed,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: email already registered (repo error)")
			return nil, ErrEmailTaken
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User registered successfully")
	return s.issueTokens(ctx, user)
}

// Login 使用邮箱和密码登录。
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	logCtx := logrus.WithFields(logrus.Fields{"email": email, "operation": "login"})

	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("Login attempt failed: User not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: Error finding user")
		}
		return nil, ErrAuthenticationFailed
	}
	if !user.HasPassword() {
		logCtx.Warn("Login attempt failed: account uses Google sign-in")
		return nil, ErrAuthenticationFailed
	}
	if !checkHash(password, user.Password) {
		logCtx.Warn("Login attempt failed: Invalid password")
		return nil, ErrAuthenticationFailed
	}

	logCtx.WithField("user_id", user.ID).Info("User logged in successfully")
	return s.issueTokens(ctx, user)
}

// GoogleLogin 校验 Google ID token，按邮箱或 Google ID 关联已有账号，不存在则创建。
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.google == nil {
		return nil, ErrGoogleNotConfigured
	}
	if idToken == "" {
		return nil, fmt.Errorf("%w: credential is required", ErrValidation)
	}

	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		logrus.WithError(err).Warn("Google ID token verification failed")
		return nil, ErrAuthenticationFailed
	}
	email := normalizeEmail(identity.Email)
	logCtx := logrus.WithFields(logrus.Fields{"email": email, "operation": "google_login"})

	user, err := s.userRepo.FindByEmailOrGoogleID(ctx, email, identity.Subject)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		googleID := identity.Subject
		user = &domain.User{
			ID:       uuid.NewString(),
			Name:     identity.Name,
			Email:    email,
			GoogleID: &googleID,
			Avatar:   identity.Picture,
		}
		if err := s.userRepo.Save(ctx, user); err != nil {
			logCtx.WithError(err).Error("Failed to create Google user")
			return nil, ErrInternalServer
		}
		logCtx.WithField("user_id", user.ID).Info("Google user created")
	case err != nil:
		logCtx.WithError(err).Error("Database error finding Google user")
		return nil, ErrInternalServer
	case user.GoogleID == nil:
		googleID := identity.Subject
		user.GoogleID = &googleID
		if user.Avatar == "" {
			user.Avatar = identity.Picture
		}
		if err := s.userRepo.Save(ctx, user); err != nil {
			logCtx.WithError(err).Error("Failed to link Google account")
			return nil, ErrInternalServer
		}
		logCtx.WithField("user_id", user.ID).Info("Google account linked to existing user")
	}

	return s.issueTokens(ctx, user)
}

// Refresh 校验 refresh token 与存储的哈希一致后签发新的一对令牌（轮换）。
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, err := s.parseToken(refreshToken, s.refreshSecret)
	if err != nil {
		logrus.WithError(err).Debug("Refresh token rejected")
		return nil, ErrUnauthorized
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "operation": "refresh"})

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			logCtx.WithError(err).Error("Database error loading user for refresh")
			return nil, ErrInternalServer
		}
		return nil, ErrUnauthorized
	}
	if user.RefreshTokenHash == "" || !checkHash(tokenDigest(refreshToken), user.RefreshTokenHash) {
		logCtx.Warn("Refresh token does not match the stored one")
		return nil, ErrUnauthorized
	}
	return s.issueTokens(ctx, user)
}

// Logout 吊销用户当前的 refresh token。无效的令牌直接忽略。
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	userID, err := s.parseToken(refreshToken, s.refreshSecret)
	if err != nil {
		return nil
	}
	if err := s.userRepo.UpdateRefreshTokenHash(ctx, userID, ""); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to revoke refresh token")
		return ErrInternalServer
	}
	return nil
}

// Me 返回当前用户资料
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logrus.WithField("user_id", userID).WithError(err).Error("Database error loading profile")
		return nil, ErrInternalServer
	}
	return user, nil
}

// --- 私有辅助函数 ---

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*AuthResult, error) {
	logCtx := logrus.WithField("user_id", user.ID)
	now := s.Now()

	access, err := s.signToken(jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	}, s.accessSecret)
	if err != nil {
		logCtx.WithError(err).Error("Failed to sign access token")
		return nil, ErrInternalServer
	}
	refresh, err := s.signToken(jwt.MapClaims{
		"sub": user.ID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.refreshTTL).Unix(),
	}, s.refreshSecret)
	if err != nil {
		logCtx.WithError(err).Error("Failed to sign refresh token")
		return nil, ErrInternalServer
	}

	// bcrypt 只接受 72 字节以内的输入，先取摘要
	hash, err := hashPassword(tokenDigest(refresh))
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash refresh token")
		return nil, ErrInternalServer
	}
	if err := s.userRepo.UpdateRefreshTokenHash(ctx, user.ID, hash); err != nil {
		logCtx.WithError(err).Error("Failed to store refresh token hash")
		return nil, ErrInternalServer
	}
	user.RefreshTokenHash = hash

	return &AuthResult{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parseToken 校验签名和过期时间，返回 sub
func (s *AuthService) parseToken(tokenString string, secret []byte) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkHash 验证明文是否与存储的 bcrypt 哈希匹配
func checkHash(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
