package handler

import (
	"net/http"
	"seekmind-go/internal/service"
	"seekmind-go/pkg/log"
	"seekmind-go/pkg/token"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionHandler 负责创建浏览器会话并签发令牌。
type SessionHandler struct {
	service    service.ConversationService
	jwtManager *token.JWTManager
	cookieName string
	ttl        time.Duration
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(service service.ConversationService, jwtManager *token.JWTManager, cookieName string, ttl time.Duration) *SessionHandler {
	return &SessionHandler{service: service, jwtManager: jwtManager, cookieName: cookieName, ttl: ttl}
}

// Create 新建会话，返回令牌并写入同名 cookie。
func (h *SessionHandler) Create(c *gin.Context) {
	sessionID, err := h.service.CreateSession(c.Request.Context())
	if err != nil {
		respondError(c, err, "创建会话失败")
		return
	}
	tok, err := h.jwtManager.GenerateToken(sessionID)
	if err != nil {
		log.Errorf("签发会话令牌失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "签发会话令牌失败", "data": nil})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, tok, int(h.ttl.Seconds()), "/", "", false, true)
	log.Infof("会话已创建: %s", sessionID)
	ok(c, gin.H{"token": tok, "sessionId": sessionID})
}
