// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"seekmind-go/internal/middleware"
	"seekmind-go/internal/service"
	"seekmind-go/internal/session"
	"seekmind-go/pkg/log"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理会话列表、新建与恢复的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// ListConversations 返回侧边栏使用的历史会话列表。
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), c.GetString(middleware.SessionIDKey))
	if err != nil {
		respondError(c, err, "获取历史会话失败")
		return
	}
	ok(c, list)
}

// GetCurrent 返回当前会话的完整消息。
func (h *ConversationHandler) GetCurrent(c *gin.Context) {
	conv, err := h.service.Current(c.Request.Context(), c.GetString(middleware.SessionIDKey))
	if err != nil {
		respondError(c, err, "获取当前会话失败")
		return
	}
	ok(c, conv)
}

// StartNew 开始一个新会话。
func (h *ConversationHandler) StartNew(c *gin.Context) {
	conv, err := h.service.StartNew(c.Request.Context(), c.GetString(middleware.SessionIDKey))
	if err != nil {
		respondError(c, err, "新建会话失败")
		return
	}
	ok(c, conv)
}

// Resume 切换到历史列表中的第 index 个会话。
func (h *ConversationHandler) Resume(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的会话序号", "data": nil})
		return
	}
	conv, err := h.service.Resume(c.Request.Context(), c.GetString(middleware.SessionIDKey), index)
	if err != nil {
		respondError(c, err, "恢复会话失败")
		return
	}
	ok(c, conv)
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// respondError 把会话相关的错误映射为 HTTP 状态码。
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusUnauthorized
	case errors.Is(err, session.ErrSessionBusy):
		status = http.StatusConflict
		message = "回复进行中，请稍后再试"
	case errors.Is(err, session.ErrConversationIndex):
		status = http.StatusNotFound
	default:
		log.Errorf("%s: %v", message, err)
	}
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}
