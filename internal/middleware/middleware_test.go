package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"seekmind-go/pkg/log"
	"seekmind-go/pkg/token"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSessions struct {
	ids map[string]bool
	err error
}

func (f fakeSessions) Exists(_ context.Context, id string) (bool, error) {
	return f.ids[id], f.err
}

func newAuthedEngine(jwt *token.JWTManager, sessions SessionChecker) *gin.Engine {
	r := gin.New()
	r.Use(SessionMiddleware(jwt, sessions, "sid"))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(SessionIDKey))
	})
	return r
}

func TestSessionMiddleware(t *testing.T) {
	jwt := token.NewJWTManager("secret", time.Hour)
	good, err := jwt.GenerateToken("s1")
	require.NoError(t, err)
	gone, err := jwt.GenerateToken("s2")
	require.NoError(t, err)
	r := newAuthedEngine(jwt, fakeSessions{ids: map[string]bool{"s1": true}})

	tests := []struct {
		name   string
		header string
		cookie string
		status int
		body   string
	}{
		{"bearer", "Bearer " + good, "", http.StatusOK, "s1"},
		{"cookie", "", good, http.StatusOK, "s1"},
		{"missing", "", "", http.StatusUnauthorized, "会话令牌"},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized, "无效"},
		{"expired session", "Bearer " + gone, "", http.StatusUnauthorized, "会话不存在"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sid", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestSessionMiddleware_RenewsStaleToken(t *testing.T) {
	jwt := token.NewJWTManager("secret", time.Hour)
	r := newAuthedEngine(jwt, fakeSessions{ids: map[string]bool{"s1": true}})

	// 同一密钥、一分钟有效期签发的令牌，剩余有效期已不足一半
	stale, err := token.NewJWTManager("secret", time.Minute).GenerateToken("s1")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+stale)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	renewed := w.Header().Get(RenewedTokenHeader)
	require.NotEmpty(t, renewed)
	id, err := jwt.VerifyToken(renewed)
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
	require.Len(t, w.Result().Cookies(), 1)
	assert.Equal(t, renewed, w.Result().Cookies()[0].Value)

	// 新签发的令牌不需要续期
	fresh, err := jwt.GenerateToken("s1")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+fresh)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get(RenewedTokenHeader))
	assert.Empty(t, w.Result().Cookies())
}

func TestSessionMiddleware_StoreError(t *testing.T) {
	jwt := token.NewJWTManager("secret", time.Hour)
	tok, err := jwt.GenerateToken("s1")
	require.NoError(t, err)
	r := newAuthedEngine(jwt, fakeSessions{err: errors.New("redis down")})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log.SetLogger(zap.New(core))
	t.Cleanup(func() { log.SetLogger(zap.NewNop()) })

	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/echo", func(c *gin.Context) {
		body, _ := c.GetRawData()
		c.String(http.StatusCreated, strings.ToUpper(string(body)))
	})
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hi")))
	assert.Equal(t, "HI", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusCreated), first["statusCode"])
	assert.Equal(t, "hi", first["requestBody"])
	assert.Equal(t, "HI", first["responseBody"])

	second := logs.All()[1].ContextMap()
	assert.Equal(t, true, second["websocket"])
	assert.NotContains(t, second, "requestBody")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", maxLoggedBody+10)
	assert.Len(t, truncate(long), maxLoggedBody+3)
	assert.Equal(t, "short", truncate("short"))
}
