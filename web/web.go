// Package web 内嵌聊天页面模板。
package web

import (
	"embed"
	"html/template"
)

//go:embed index.html
var files embed.FS

// PageTemplate 是聊天页面的模板名。
const PageTemplate = "index.html"

// Templates 解析内嵌的页面模板，供 gin.Engine.SetHTMLTemplate 使用。
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(files, PageTemplate))
}
