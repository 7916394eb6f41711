package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

type MinIORepository struct {
	client *minio.Client
	bucket string
	region string
	logger zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

func NewMinIORepository(endpoint, accessKey, secretKey, bucket, region string, useSSL bool, connectTimeout time.Duration, logger zerolog.Logger) (*MinIORepository, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	repo := &MinIORepository{
		client: client,
		bucket: bucket,
		region: region,
		logger: logger,
	}

	// На старте не падаем, если MinIO еще не поднялся: бакет
	// проверится повторно при первом обращении
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := repo.ensureBucket(ctx); err != nil {
		logger.Error().Err(err).
			Str("endpoint", endpoint).
			Str("bucket", bucket).
			Msg("MinIO not ready during startup; will retry on demand")
	}

	logger.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Bool("ssl", useSSL).
		Msg("Connected to MinIO")

	return repo, nil
}

func (r *MinIORepository) ensureBucket(ctx context.Context) error {
	r.ensureMu.Lock()
	defer r.ensureMu.Unlock()
	if r.bucketEnsured {
		return nil
	}

	backoff := 500 * time.Millisecond
	for {
		exists, err := r.client.BucketExists(ctx, r.bucket)
		if err == nil && !exists {
			err = r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{Region: r.region})
			if err == nil {
				r.logger.Info().Str("bucket", r.bucket).Msg("Created new bucket")
			}
		}
		if err == nil {
			r.bucketEnsured = true
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("minio not ready: %w", err)
		case <-time.After(backoff):
		}
	}
}

func (r *MinIORepository) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*PresignedUpload, error) {
	if err := r.ensureBucket(ctx); err != nil {
		return nil, err
	}

	u, err := r.client.PresignedPutObject(ctx, r.bucket, key, expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}

	r.logger.Debug().
		Str("file_key", key).
		Str("content_type", contentType).
		Dur("expiry", expiry).
		Msg("Presigned PUT issued")

	return &PresignedUpload{
		URL:       u.String(),
		ExpiresAt: time.Now().UTC().Add(expiry),
	}, nil
}

func (r *MinIORepository) PresignPostForm(ctx context.Context, key, contentType string, maxSize int64, expiry time.Duration) (*PresignedUpload, error) {
	if err := r.ensureBucket(ctx); err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(expiry)

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(r.bucket); err != nil {
		return nil, err
	}
	if err := policy.SetKey(key); err != nil {
		return nil, err
	}
	if err := policy.SetExpires(expiresAt); err != nil {
		return nil, err
	}
	if err := policy.SetContentType(contentType); err != nil {
		return nil, err
	}
	if maxSize > 0 {
		if err := policy.SetContentLengthRange(1, maxSize); err != nil {
			return nil, err
		}
	}

	u, formData, err := r.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned post policy: %w", err)
	}

	r.logger.Debug().
		Str("file_key", key).
		Int64("max_size", maxSize).
		Msg("Presigned POST issued")

	return &PresignedUpload{
		URL:       u.String(),
		Fields:    formData,
		ExpiresAt: expiresAt,
	}, nil
}

func (r *MinIORepository) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := r.ensureBucket(ctx); err != nil {
		return nil, err
	}

	objInfo, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return &ObjectInfo{
		Key:          objInfo.Key,
		Size:         objInfo.Size,
		ContentType:  objInfo.ContentType,
		LastModified: objInfo.LastModified,
		ETag:         objInfo.ETag,
		StorageClass: objInfo.StorageClass,
	}, nil
}

func (r *MinIORepository) DeleteObject(ctx context.Context, key string) error {
	if err := r.ensureBucket(ctx); err != nil {
		return err
	}

	err := r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	r.logger.Debug().
		Str("bucket", r.bucket).
		Str("file_key", key).
		Msg("Object deleted from MinIO")

	return nil
}

func (r *MinIORepository) DownloadURL(ctx context.Context, key string, expiry time.Duration, filename string) (string, error) {
	if err := r.ensureBucket(ctx); err != nil {
		return "", err
	}

	reqParams := make(url.Values)
	if filename != "" {
		reqParams.Set("response-content-disposition", contentDisposition(filename))
	}

	u, err := r.client.PresignedGetObject(ctx, r.bucket, key, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return u.String(), nil
}

// contentDisposition убирает из имени символы, ломающие заголовок.
func contentDisposition(filename string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, filename)
	return fmt.Sprintf(`attachment; filename="%s"`, clean)
}

// Ping для readiness: бакет доступен и учетные данные действуют.
func (r *MinIORepository) Ping(ctx context.Context) error {
	if _, err := r.client.BucketExists(ctx, r.bucket); err != nil {
		return fmt.Errorf("minio unavailable: %w", err)
	}
	return nil
}
