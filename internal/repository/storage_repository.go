package repository

import (
	"context"
	"time"
)

// ObjectStorage - внешнее объектное хранилище. Байты файлов через сервис
// не проходят, только подписанные ссылки и метаданные.
type ObjectStorage interface {
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*PresignedUpload, error)
	PresignPostForm(ctx context.Context, key, contentType string, maxSize int64, expiry time.Duration) (*PresignedUpload, error)
	// HeadObject возвращает ErrObjectNotFound, если объекта нет.
	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
	DownloadURL(ctx context.Context, key string, expiry time.Duration, filename string) (string, error)
}

type PresignedUpload struct {
	URL       string
	Fields    map[string]string
	ExpiresAt time.Time
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
	StorageClass string
}
