package handler

import (
	"html/template"
	"net/http"
	"seekmind-go/web"

	"github.com/gin-gonic/gin"
)

// PageHandler 渲染聊天页面。
type PageHandler struct {
	title string
	logo  template.URL
}

// NewPageHandler 创建 PageHandler。logoDataURI 为空时页面不显示 logo。
func NewPageHandler(title, logoDataURI string) *PageHandler {
	// data URI 由服务端从资源文件生成，可以信任
	return &PageHandler{title: title, logo: template.URL(logoDataURI)}
}

// Index 渲染页面，要求 engine 已通过 SetHTMLTemplate(web.Templates()) 加载模板。
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, web.PageTemplate, gin.H{
		"Title": h.title,
		"Logo":  h.logo,
	})
}
