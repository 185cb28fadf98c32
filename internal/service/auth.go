package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 负责玩家注册与登录认证。
type AuthService struct {
	playerRepo repository.PlayerRepository
	jwtSecret  []byte
	jwtExpiry  time.Duration
}

// NewAuthService 创建 AuthService 实例。
// jwtSecretKey 应从安全配置中获取。
// jwtExpiryHours 定义 token 过期的小时数。
func NewAuthService(playerRepo repository.PlayerRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if playerRepo == nil {
		panic("PlayerRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24 // 默认 24 小时
	}
	return &AuthService{
		playerRepo: playerRepo,
		jwtSecret:  []byte(jwtSecretKey),
		jwtExpiry:  time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Register 处理玩家注册：哈希密码并按职业模板写入基础属性。
func (s *AuthService) Register(ctx context.Context, username, password, name, class string) (*domain.Player, error) {
	logCtx := logrus.WithFields(logrus.Fields{"username": username, "class": class})

	// 1. 基本验证
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	if name == "" {
		name = username
	}
	if _, known := classConfigs[class]; !known {
		class = DefaultClass
	}
	cfg := ClassConfigFor(class)

	// 2. 哈希密码
	hashedPassword, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	// 3. 创建玩家对象 (职业模板决定初始属性)
	player := &domain.Player{
		Username: username,
		Password: hashedPassword,
		Name:     name,
		Class:    class,
		HP:       cfg.HPMax,
		HPMax:    cfg.HPMax,
		BaseAtk:  cfg.BaseAtk,
		BaseDef:  cfg.BaseDef,
		BaseCrit: cfg.BaseCrit,
	}

	// 4. 保存玩家
	if err := s.playerRepo.Save(ctx, player); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: username already exists")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during player creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("player_id", player.ID).Info("Player registered successfully")
	player.Password = "" // 清除密码哈希再返回
	return player, nil
}

// Login 处理玩家登录。
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	logCtx := logrus.WithField("username", username)

	// 1. 查找玩家
	player, err := s.playerRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			logCtx.WithError(err).Warn("Login attempt failed: player not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: error finding player")
		}
		return "", ErrAuthenticationFailed // 对客户端统一返回认证失败
	}
	// 防御性检查，以防仓库实现返回 nil, nil
	if player == nil {
		logCtx.Warn("Login attempt failed: repo returned nil player without error")
		return "", ErrAuthenticationFailed
	}

	// 2. 验证密码
	if !checkPassword(password, player.Password) {
		logCtx.Warn("Login attempt failed: invalid password")
		return "", ErrAuthenticationFailed
	}

	// 3. 生成 JWT Token
	token, err := s.generateJWT(player.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return "", ErrInternalServer
	}

	logCtx.WithField("player_id", player.ID).Info("Player logged in successfully")
	return token, nil
}

// --- 私有辅助函数 ---

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// generateJWT 为指定玩家 ID 生成 JWT Token
func (s *AuthService) generateJWT(playerID uint) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"player_id": playerID,
		"exp":       time.Now().Add(s.jwtExpiry).Unix(),
		"iat":       time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
