package service_test // 测试包

import (
	"context"
	"errors"
	"testing"
	"time"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
	"dungeon-raid/internal/repository/mocks"
	"dungeon-raid/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- 测试 Register 方法 ---

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange: 准备 Mock 对象, Service 实例, 和测试数据
	mockPlayerRepo := new(mocks.PlayerRepository)
	authService, err := service.NewAuthService(mockPlayerRepo, "very-secret-key", 1)
	require.NoError(t, err, "创建 AuthService 不应失败")

	ctx := context.Background()
	username := "newbie"
	password := "StrongPass123"

	// 设置 Mock 预期: Save 被调用时模拟保存成功并填充 ID/时间戳
	mockPlayerRepo.On("Save", ctx, mock.MatchedBy(func(player *domain.Player) bool {
		assert.Equal(t, username, player.Username)
		assert.Equal(t, "warrior", player.Class, "未知职业应回退到默认职业")
		assert.Equal(t, 130, player.HP, "初始生命值应来自职业模板")
		assert.Equal(t, 130, player.HPMax)
		assert.Equal(t, 6, player.BaseAtk)
		// 验证密码是否已哈希
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(player.Password), []byte(password)), "密码应被正确哈希")
		return true
	})).
		Run(func(args mock.Arguments) { // 模拟数据库填充字段
			playerArg := args.Get(1).(*domain.Player)
			playerArg.ID = 5
			playerArg.CreatedAt = time.Now().Add(-time.Second)
			playerArg.UpdatedAt = time.Now().Add(-time.Second)
		}).
		Return(nil).
		Once()

	// Act
	registered, err := authService.Register(ctx, username, password, "", "no-such-class")

	// Assert
	assert.NoError(t, err, "成功注册时不应有错误")
	require.NotNil(t, registered, "成功注册时应返回玩家对象")
	assert.Equal(t, uint(5), registered.ID, "返回的玩家 ID 应为 5")
	assert.Equal(t, username, registered.Name, "未提供显示名时应回退到用户名")
	assert.Empty(t, registered.Password, "返回的玩家密码应为空")

	// Verify
	mockPlayerRepo.AssertExpectations(t)
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	// Arrange
	mockPlayerRepo := new(mocks.PlayerRepository)
	authService, _ := service.NewAuthService(mockPlayerRepo, "secret", 1)
	ctx := context.Background()

	// 设置 Mock 预期: Save 模拟数据库返回唯一约束错误
	mockPlayerRepo.On("Save", ctx, mock.AnythingOfType("*domain.Player")).
		Return(repository.ErrDuplicateEntry).Once()

	// Act
	_, err := authService.Register(ctx, "existingUser", "password", "Dup", "archer")

	// Assert
	require.Error(t, err, "用户名已存在时应返回错误")
	assert.True(t, errors.Is(err, service.ErrRegistrationFailed), "错误类型应为 ErrRegistrationFailed")

	// Verify
	mockPlayerRepo.AssertExpectations(t)
}

func TestAuthService_Register_EmptyCredentials(t *testing.T) {
	// Arrange
	mockPlayerRepo := new(mocks.PlayerRepository)
	authService, _ := service.NewAuthService(mockPlayerRepo, "secret", 1)

	// Act
	_, err := authService.Register(context.Background(), "", "", "Nobody", "mage")

	// Assert
	require.Error(t, err, "空用户名/密码应被拒绝")
	mockPlayerRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- 测试 Login 方法 ---

func TestAuthService_Login_Success(t *testing.T) {
	// Arrange
	mockPlayerRepo := new(mocks.PlayerRepository)
	authService, _ := service.NewAuthService(mockPlayerRepo, "test-secret", 24)
	ctx := context.Background()
	username := "testuser"
	password := "password123"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	playerInDb := &domain.Player{ID: 1, Username: username, Password: string(hashedPassword)}

	// 设置 Mock 预期: FindByUsername 成功找到玩家
	mockPlayerRepo.On("FindByUsername", ctx, username).Return(playerInDb, nil).Once()

	// Act
	token, err := authService.Login(ctx, username, password)

	// Assert
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// Verify
	mockPlayerRepo.AssertExpectations(t)
}

func TestAuthService_Login_PlayerNotFound(t *testing.T) {
	// Arrange
	mockPlayerRepo := new(mocks.PlayerRepository)
	authService, _ := service.NewAuthService(mockPlayerRepo, "test-secret", 24)
	ctx := context.Background()
	username := "nonexistent"

	// 设置 Mock 预期: FindByUsername 找不到玩家
	mockPlayerRepo.On("FindByUsername", ctx, username).Return(nil, repository.ErrPlayerNotFound).Once()

	// Act
	token, err := authService.Login(ctx, username, "password")

	// Assert
	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))

	// Verify
	mockPlayerRepo.AssertExpectations(t)
}

func TestAuthService_Login_IncorrectPassword(t *testing.T) {
	// Arrange
	mockPlayerRepo := new(mocks.PlayerRepository)
	authService, _ := service.NewAuthService(mockPlayerRepo, "test-secret", 24)
	ctx := context.Background()
	username := "testuser"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	playerInDb := &domain.Player{ID: 1, Username: username, Password: string(hashedPassword)}

	// 设置 Mock 预期: FindByUsername 找到玩家
	mockPlayerRepo.On("FindByUsername", ctx, username).Return(playerInDb, nil).Once()

	// Act
	token, err := authService.Login(ctx, username, "wrongpassword")

	// Assert
	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))

	// Verify
	mockPlayerRepo.AssertExpectations(t)
}
