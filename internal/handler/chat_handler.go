package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"seekmind-go/internal/middleware"
	"seekmind-go/internal/model"
	"seekmind-go/internal/service"
	"seekmind-go/internal/session"
	"seekmind-go/pkg/llm"
	"seekmind-go/pkg/log"
	"seekmind-go/pkg/token"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

const writeWait = 10 * time.Second

// 浏览器发送的消息类型
const (
	msgPrompt = "prompt"
	msgStop   = "stop"
)

// clientMessage 是浏览器通过 WebSocket 发送的指令。
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	chatService service.ChatService
	sessions    middleware.SessionChecker
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, sessions middleware.SessionChecker, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		sessions:    sessions,
		jwtManager:  jwtManager,
	}
}

// wsSink 把消息帧写入 WebSocket 连接。读协程与流式回复都会写，因此需要加锁。
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(frame model.Frame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

// Handle 处理一个传入的 WebSocket 连接。
// 读协程接收 prompt 与 stop 指令；prompt 逐个交给 ChatService 处理，stop 在回复进行中置位停止标志。
// 连接断开会取消进行中的回复。
func (h *ChatHandler) Handle(c *gin.Context) {
	sessionID, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}
	exists, err := h.sessions.Exists(c.Request.Context(), sessionID)
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "会话不存在或已过期", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，会话: %s", sessionID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := &wsSink{conn: conn}
	var streaming, stopFlag atomic.Bool
	prompts := make(chan string, 1)

	go func() {
		defer cancel()
		defer close(prompts)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warnf("从 WebSocket 读取消息失败: %v", err)
				}
				return
			}

			msg := parseClientMessage(message)
			switch msg.Type {
			case msgStop:
				if streaming.Load() {
					log.Infof("收到停止指令，正在中断流式响应, 会话: %s", sessionID)
					stopFlag.Store(true)
				}
			case msgPrompt:
				if streaming.Load() {
					_ = sink.Send(errorFrame("上一条回复尚未结束，请稍后再试"))
					continue
				}
				select {
				case prompts <- msg.Content:
				default:
					_ = sink.Send(errorFrame("上一条回复尚未结束，请稍后再试"))
				}
			default:
				_ = sink.Send(errorFrame("未知的消息类型"))
			}
		}
	}()

	for content := range prompts {
		stopFlag.Store(false)
		streaming.Store(true)
		_, err := h.chatService.StreamReply(ctx, sessionID, content, sink, stopFlag.Load)
		streaming.Store(false)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			log.Infof("WebSocket 连接已关闭，回复中止, 会话: %s", sessionID)
			return
		}
		log.Errorf("处理流式响应失败, 会话: %s: %v", sessionID, err)
		_ = sink.Send(errorFrame(userMessage(err)))
		_ = sink.Send(service.CompletionFrame(time.Now()))
		if errors.Is(err, session.ErrSessionNotFound) {
			return
		}
	}
}

// parseClientMessage 解析 JSON 指令；非 JSON 的文本整体视为一条 prompt。
func parseClientMessage(message []byte) clientMessage {
	var msg clientMessage
	if len(message) > 0 && message[0] == '{' {
		if err := json.Unmarshal(message, &msg); err == nil {
			return msg
		}
	}
	return clientMessage{Type: msgPrompt, Content: string(message)}
}

func errorFrame(message string) model.Frame {
	return model.Frame{Type: model.FrameError, Message: message, Timestamp: time.Now().UnixMilli()}
}

// userMessage 把错误转换为展示给用户的提示。
func userMessage(err error) string {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		return "模型服务暂时不可用，请确认本地模型服务已启动"
	case errors.Is(err, llm.ErrModelNotFound):
		return "模型不存在，请先拉取配置的模型"
	case errors.As(err, &apiErr):
		return "模型服务返回错误: " + apiErr.Message
	case errors.Is(err, service.ErrEmptyPrompt):
		return "输入不能为空"
	case errors.Is(err, session.ErrSessionBusy):
		return "上一条回复尚未结束，请稍后再试"
	case errors.Is(err, session.ErrSessionNotFound):
		return "会话不存在或已过期，请刷新页面"
	default:
		return "AI服务暂时不可用，请稍后重试"
	}
}
