package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// PlayerIDKey 是认证中间件写入 Gin 上下文的键，
// 后续 handler 通过它拿到当前玩家 ID。
const PlayerIDKey = "player_id"

// ErrMissingAuthHeader 表示请求缺少 Authorization 头。
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回校验 JWT 的 Gin 中间件。
// 签名算法固定为 HMAC，token 必须携带 player_id claim。
func Auth(jwtSecret string) gin.HandlerFunc {
	// 在创建中间件时就进行检查，避免运行时 panic
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := bearerToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: Malformed Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		playerID, err := playerIDFromToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Rejected token")
			// 过期是最常见的拒绝原因，单独记一条方便排查
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx.Debug("Reason: token is expired")
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(PlayerIDKey, playerID)
		logrus.WithField("player_id", playerID).Debug("Auth middleware: Player authenticated")
		c.Next()
	}
}

// bearerToken 从 Authorization 头提取 "Bearer <token>" 中的 token 部分。
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(header, " ")
	// "Bearer" 忽略大小写
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// playerIDFromToken 验证签名并从 claims 中取出玩家 ID。
// JWT 的数字 claim 反序列化后是 float64，必须确认它是正整数。
func playerIDFromToken(tokenStr, secret string) (uint, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		// 签名无效、格式错误、过期等都会走到这里，原因包在错误链里
		return 0, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token or claims type")
	}

	idClaim, ok := claims[PlayerIDKey]
	if !ok {
		return 0, errors.New("player_id claim missing in token")
	}
	idFloat, ok := idClaim.(float64)
	if !ok || idFloat <= 0 || idFloat != float64(uint(idFloat)) {
		return 0, fmt.Errorf("player_id claim is not a valid positive integer: %v", idClaim)
	}
	return uint(idFloat), nil
}
