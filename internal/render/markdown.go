// Package render 把展示文本（思考过程和答案）转换为 HTML。
package render

import (
	"bytes"
	stdhtml "html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// 原始 HTML 不会被渲染（未启用 WithUnsafe），模型输出中的标签会被替换为注释。
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Markdown 渲染 text。渲染失败时退回到转义后的纯文本。
func Markdown(text string) string {
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "<p>" + stdhtml.EscapeString(text) + "</p>"
	}
	return buf.String()
}
