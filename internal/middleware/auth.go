// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"context"
	"net/http"
	"seekmind-go/pkg/log"
	"seekmind-go/pkg/token"
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionIDKey 是会话 ID 在 gin 上下文中的键。
const SessionIDKey = "sessionID"

// RenewedTokenHeader 携带续期后的会话令牌，浏览器应替换本地保存的令牌。
const RenewedTokenHeader = "X-Session-Token"

// SessionChecker 判断会话是否仍然存在，*session.Manager 实现了它。
type SessionChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// TokenFromRequest 依次从 "Authorization: Bearer <token>" 请求头和名为 cookieName 的 cookie 中读取令牌。
func TokenFromRequest(c *gin.Context, cookieName string) string {
	const bearerPrefix = "Bearer "
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimPrefix(authHeader, bearerPrefix)
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil {
			return v
		}
	}
	return ""
}

// SessionMiddleware 创建一个 Gin 中间件，验证会话令牌并把会话 ID 存入上下文。
// 令牌有效但会话已过期时同样返回 401，浏览器应重新创建会话。
func SessionMiddleware(jwtManager *token.JWTManager, sessions SessionChecker, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := TokenFromRequest(c, cookieName)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "请求未包含会话令牌", "data": nil})
			return
		}

		sessionID, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效或已过期的会话令牌", "data": nil})
			return
		}

		ok, err := sessions.Exists(c.Request.Context(), sessionID)
		if err != nil {
			log.Errorf("查询会话失败, session=%s: %v", sessionID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询会话失败", "data": nil})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "会话不存在或已过期", "data": nil})
			return
		}

		renewSessionToken(c, jwtManager, tokenString, cookieName)
		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}

// renewSessionToken 在令牌接近过期时签发新令牌，通过响应头和 cookie 下发。续期失败不影响本次请求。
func renewSessionToken(c *gin.Context, jwtManager *token.JWTManager, tokenString, cookieName string) {
	renewed, ok, err := jwtManager.Renew(tokenString)
	if err != nil {
		log.Warnf("会话令牌续期失败: %v", err)
		return
	}
	if !ok {
		return
	}
	c.Header(RenewedTokenHeader, renewed)
	if cookieName != "" {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(cookieName, renewed, int(jwtManager.TTL().Seconds()), "/", "", false, true)
	}
}
