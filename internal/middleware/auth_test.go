package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dungeon-raid/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

// signToken 用测试密钥签发一个 HS256 token。
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// authRouter 搭一个带 Auth 中间件的最小路由，受保护的 handler
// 把上下文里的玩家 ID 回显出来。
func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", middleware.Auth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"player_id": c.GetUint(middleware.PlayerIDKey)})
	})
	return r
}

func TestAuth_ValidTokenSetsPlayerID(t *testing.T) {
	// Arrange
	router := authRouter()
	token := signToken(t, jwt.MapClaims{
		"player_id": 42,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"player_id":42`, "handler 应能从上下文取到玩家 ID")
}

func TestAuth_MissingHeaderRejected(t *testing.T) {
	// Arrange
	router := authRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_MissingPlayerIDClaimRejected(t *testing.T) {
	// Arrange: token 合法签名但没有 player_id claim
	router := authRouter()
	token := signToken(t, jwt.MapClaims{
		"subject": "someone",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ExpiredTokenRejected(t *testing.T) {
	// Arrange
	router := authRouter()
	token := signToken(t, jwt.MapClaims{
		"player_id": 42,
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_MalformedHeaderRejected(t *testing.T) {
	// Arrange: 缺 "Bearer " 前缀
	router := authRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "just-a-token")
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
