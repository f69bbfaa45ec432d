// Package token 提供了用于签发和验证会话令牌 (JWT) 的功能。
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 表示令牌签名不匹配、已过期或缺少会话 ID。
var ErrInvalidToken = errors.New("invalid session token")

// JWTManager 负责会话令牌的签发和验证。
type JWTManager struct {
	secretKey []byte        // secretKey 用于签名和验证 token 的密钥
	tokenDur  time.Duration // tokenDur 是单个令牌的有效期，通过 Renew 随会话使用而滑动
	now       func() time.Time
}

// SessionClaims 是会话令牌中携带的数据。
type SessionClaims struct {
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。ttl 为 0 时令牌不过期。
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secret),
		tokenDur:  ttl,
		now:       time.Now,
	}
}

// GenerateToken 为给定的会话签发令牌。
func (m *JWTManager) GenerateToken(sessionID string) (string, error) {
	now := m.now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        GenerateRandomString(8),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if m.tokenDur > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.tokenDur))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// TTL 返回单个令牌的有效期。
func (m *JWTManager) TTL() time.Duration {
	return m.tokenDur
}

// VerifyToken 验证令牌并返回其中的会话 ID。
func (m *JWTManager) VerifyToken(tokenString string) (string, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

// Renew 在令牌剩余有效期不足一半时为同一会话签发新令牌，返回的 bool 表示是否签发。
// 会话的空闲过期时间在每次访问时刷新，令牌也需要随之续期，否则活跃会话会在固定时间后失效。
func (m *JWTManager) Renew(tokenString string) (string, bool, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return "", false, err
	}
	if m.tokenDur <= 0 || claims.ExpiresAt == nil {
		return "", false, nil
	}
	if claims.ExpiresAt.Time.Sub(m.now()) > m.tokenDur/2 {
		return "", false, nil
	}
	renewed, err := m.GenerateToken(claims.SessionID)
	if err != nil {
		return "", false, err
	}
	return renewed, true, nil
}

func (m *JWTManager) parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 检查签名方法是否为 HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateRandomString generates a random hex string of a given length.
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less random string on error
		return fmt.Sprintf("fallback%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
