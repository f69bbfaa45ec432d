// Package storage 读取页面使用的静态资源（如 logo），来源可以是本地目录或 MinIO 存储桶。
package storage

import (
	"context"
	"fmt"
	"io"
	"seekmind-go/internal/config"
	"seekmind-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOLoader 从 MinIO 存储桶读取资源。
type MinIOLoader struct {
	client *minio.Client
	bucket string
}

// NewMinIOLoader 初始化 MinIO 客户端并确认存储桶存在。资源桶只读，不会自动创建。
func NewMinIOLoader(ctx context.Context, cfg config.MinIOConfig) (*MinIOLoader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("存储桶 '%s' 不存在", cfg.BucketName)
	}
	log.Infof("MinIO 资源加载器初始化成功, bucket=%s", cfg.BucketName)
	return &MinIOLoader{client: client, bucket: cfg.BucketName}, nil
}

// Load 读取对象内容，对象不存在时返回 ErrAssetMissing。
func (l *MinIOLoader) Load(ctx context.Context, name string) ([]byte, error) {
	obj, err := l.client.GetObject(ctx, l.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, l.mapErr(name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxAssetSize))
	if err != nil {
		return nil, l.mapErr(name, err)
	}
	return data, nil
}

func (l *MinIOLoader) mapErr(name string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s/%s", ErrAssetMissing, l.bucket, name)
	default:
		return fmt.Errorf("failed to read %s/%s from minio: %w", l.bucket, name, err)
	}
}
