package memory

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
)

// ObjectStorage имитирует бакет: presign-методы выдают фиктивные ссылки,
// объекты появляются через PutObject, как после загрузки клиентом.
type ObjectStorage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]repository.ObjectInfo
	deleted []string
}

func NewObjectStorage(baseURL string) *ObjectStorage {
	return &ObjectStorage{
		baseURL: baseURL,
		objects: make(map[string]repository.ObjectInfo),
	}
}

func (s *ObjectStorage) PutObject(key string, size int64, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = repository.ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
		ETag:         fmt.Sprintf("etag-%d", size),
		StorageClass: "STANDARD",
	}
}

func (s *ObjectStorage) HasObject(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[key]
	return ok
}

func (s *ObjectStorage) Deleted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.deleted...)
}

func (s *ObjectStorage) PresignUpload(_ context.Context, key, contentType string, expiry time.Duration) (*repository.PresignedUpload, error) {
	return &repository.PresignedUpload{
		URL:       fmt.Sprintf("%s/%s?X-Amz-Expires=%d", s.baseURL, url.PathEscape(key), int64(expiry.Seconds())),
		ExpiresAt: time.Now().UTC().Add(expiry),
	}, nil
}

func (s *ObjectStorage) PresignPostForm(_ context.Context, key, contentType string, maxSize int64, expiry time.Duration) (*repository.PresignedUpload, error) {
	return &repository.PresignedUpload{
		URL: s.baseURL,
		Fields: map[string]string{
			"key":          key,
			"Content-Type": contentType,
			"policy":       fmt.Sprintf("max=%d", maxSize),
		},
		ExpiresAt: time.Now().UTC().Add(expiry),
	}, nil
}

func (s *ObjectStorage) HeadObject(_ context.Context, key string) (*repository.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.objects[key]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	return &info, nil
}

func (s *ObjectStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *ObjectStorage) DownloadURL(_ context.Context, key string, expiry time.Duration, filename string) (string, error) {
	u := fmt.Sprintf("%s/%s?X-Amz-Expires=%d", s.baseURL, url.PathEscape(key), int64(expiry.Seconds()))
	if filename != "" {
		u += "&response-content-disposition=" + url.QueryEscape("attachment; filename=\""+filename+"\"")
	}
	return u, nil
}

var _ repository.ObjectStorage = (*ObjectStorage)(nil)
