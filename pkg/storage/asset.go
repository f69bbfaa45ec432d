package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"seekmind-go/pkg/log"
)

const maxAssetSize = 4 << 20

// ErrAssetMissing 表示请求的资源不存在。
var ErrAssetMissing = errors.New("asset missing")

// Loader 按名称读取资源内容。
type Loader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// FileLoader 从本地目录读取资源。
type FileLoader struct {
	Dir string
}

// Load 读取 Dir 下的文件。名称中的路径穿越会被拒绝。
func (l FileLoader) Load(_ context.Context, name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: invalid name %q", ErrAssetMissing, name)
	}
	f, err := os.Open(filepath.Join(l.Dir, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAssetMissing, name)
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxAssetSize))
}

// DataURI 读取资源并编码为 data URI。资源不存在或读取失败时记录警告并返回空字符串，
// 页面此时不显示该图片。
func DataURI(ctx context.Context, l Loader, name string) string {
	if l == nil || name == "" {
		return ""
	}
	data, err := l.Load(ctx, name)
	if err != nil {
		log.Warnf("资源 %s 加载失败，页面将不显示该图片: %v", name, err)
		return ""
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data)
}
