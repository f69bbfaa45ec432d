package handler

import (
	"seekmind-go/internal/middleware"
	"seekmind-go/internal/service"
	"seekmind-go/pkg/token"
	"seekmind-go/web"
	"time"

	"github.com/gin-gonic/gin"
)

// RouterDeps 汇总注册路由所需的依赖。
type RouterDeps struct {
	ChatService         service.ChatService
	ConversationService service.ConversationService
	Sessions            middleware.SessionChecker
	JWTManager          *token.JWTManager
	CookieName          string
	SessionTTL          time.Duration
	Title               string
	LogoDataURI         string
}

// NewRouter 创建 gin 引擎并注册全部路由。
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.SetHTMLTemplate(web.Templates())

	r.GET("/", NewPageHandler(d.Title, d.LogoDataURI).Index)

	apiV1 := r.Group("/api/v1")
	{
		// 无需令牌：创建会话
		apiV1.POST("/sessions", NewSessionHandler(d.ConversationService, d.JWTManager, d.CookieName, d.SessionTTL).Create)

		conversations := apiV1.Group("/conversations")
		conversations.Use(middleware.SessionMiddleware(d.JWTManager, d.Sessions, d.CookieName))
		{
			h := NewConversationHandler(d.ConversationService)
			conversations.GET("", h.ListConversations)
			conversations.GET("/current", h.GetCurrent)
			conversations.POST("", h.StartNew)
			conversations.POST("/:index/resume", h.Resume)
		}
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/:token", NewChatHandler(d.ChatService, d.Sessions, d.JWTManager).Handle)
	return r
}
