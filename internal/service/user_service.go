// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloudshift-go/internal/config"
	"cloudshift-go/internal/errs"
	"cloudshift-go/internal/model"
	"cloudshift-go/internal/repository"
	"cloudshift-go/pkg/database"
	"cloudshift-go/pkg/hash"
	"cloudshift-go/pkg/log"
	"cloudshift-go/pkg/token"

	"gorm.io/gorm"
)

// UserService 接口定义了所有与用户身份相关的业务操作。
// 认证失败是阻断性的：错误携带 auth/* 代码向上抛出，由 handler 映射为用户文案。
type UserService interface {
	Register(email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	GetProfile(userID uint) (*model.User, error)
	Logout(ctx context.Context, tokenString string) error
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	IsTokenBlacklisted(ctx context.Context, tokenString string) bool
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
	authCfg    config.AuthConfig
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager, authCfg config.AuthConfig) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		authCfg:    authCfg,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(email, password string) (*model.User, error) {
	// 1. 基础校验。更严格的邮箱校验交给身份提供方场景下的邮件验证流程
	if !strings.Contains(email, "@") {
		return nil, errs.New(errs.KindAuth, errs.CodeInvalidEmail, "")
	}
	if len(password) < 6 {
		return nil, errs.New(errs.KindAuth, errs.CodeWeakPassword, "")
	}

	// 2. 检查邮箱是否已被注册
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return nil, errs.New(errs.KindAuth, errs.CodeEmailAlreadyInUse, "")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Wrap(errs.KindStore, err)
	}

	// 3. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err)
	}

	// 4. 创建新用户
	newUser := &model.User{
		Email:    email,
		Password: hashedPassword,
		Role:     "USER",
	}
	if err := s.userRepo.Create(newUser); err != nil {
		log.Errorf("[UserService] 创建用户失败, email: %s, error: %v", email, err)
		return nil, errs.Wrap(errs.KindStore, err)
	}

	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
// 连续失败会触发基于 Redis 计数的登录限流。
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error) {
	// 1. 限流检查
	attemptsKey := fmt.Sprintf("auth:attempts:%s", email)
	if attempts, err := database.RDB.Get(ctx, attemptsKey).Int(); err == nil && attempts >= s.maxAttempts() {
		return "", "", errs.New(errs.KindAuth, errs.CodeTooManyRequests, "")
	}

	// 2. 查找用户并验证密码。两类失败统一映射为 invalid-credential，
	// 不向调用方暴露"账号是否存在"
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.recordFailure(ctx, attemptsKey)
			return "", "", errs.New(errs.KindAuth, errs.CodeInvalidCredential, "")
		}
		return "", "", errs.Wrap(errs.KindStore, err)
	}
	if !hash.CheckPasswordHash(password, user.Password) {
		s.recordFailure(ctx, attemptsKey)
		return "", "", errs.New(errs.KindAuth, errs.CodeInvalidCredential, "")
	}

	// 3. 登录成功，清除失败计数
	_ = database.RDB.Del(ctx, attemptsKey).Err()

	// 4. 生成 access token 和 refresh token
	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", errs.Wrap(errs.KindInternal, err)
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", errs.Wrap(errs.KindInternal, err)
	}

	return accessToken, refreshToken, nil
}

// GetProfile 根据用户 ID 获取用户详细信息。
func (s *userService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New(errs.KindAuth, errs.CodeUserNotFound, "")
		}
		return nil, errs.Wrap(errs.KindStore, err)
	}
	return user, nil
}

// Logout 处理用户登出逻辑，将 token 加入 Redis 黑名单。
// token 的剩余有效期作为黑名单 key 的过期时间。
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return errs.Wrap(errs.KindAuth, err)
	}
	expiration := time.Until(claims.ExpiresAt.Time)
	return database.RDB.Set(ctx, "blacklist:"+tokenString, "true", expiration).Err()
}

// IsTokenBlacklisted 检查 token 是否已被登出拉黑。
func (s *userService) IsTokenBlacklisted(ctx context.Context, tokenString string) bool {
	exists, err := database.RDB.Exists(ctx, "blacklist:"+tokenString).Result()
	if err != nil {
		// Redis 异常时放行，token 本身的签名和有效期仍然有效
		log.Warnf("[UserService] 黑名单检查失败: %v", err)
		return false
	}
	return exists > 0
}

// RefreshToken 验证 refresh token 并签发新的 access token 和 refresh token。
func (s *userService) RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", errs.New(errs.KindAuth, errs.CodeInvalidCredential, "invalid refresh token")
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return "", "", errs.New(errs.KindAuth, errs.CodeUserNotFound, "")
	}

	newAccessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", errs.Wrap(errs.KindInternal, err)
	}
	newRefreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", errs.Wrap(errs.KindInternal, err)
	}

	return newAccessToken, newRefreshToken, nil
}

func (s *userService) maxAttempts() int {
	if s.authCfg.MaxLoginAttempts > 0 {
		return s.authCfg.MaxLoginAttempts
	}
	return 10
}

func (s *userService) lockoutWindow() time.Duration {
	if s.authCfg.LockoutWindowMins > 0 {
		return time.Duration(s.authCfg.LockoutWindowMins) * time.Minute
	}
	return 15 * time.Minute
}

// recordFailure 累加失败计数并刷新窗口过期时间。
func (s *userService) recordFailure(ctx context.Context, key string) {
	if err := database.RDB.Incr(ctx, key).Err(); err != nil {
		log.Warnf("[UserService] 记录登录失败计数出错: %v", err)
		return
	}
	_ = database.RDB.Expire(ctx, key, s.lockoutWindow()).Err()
}
