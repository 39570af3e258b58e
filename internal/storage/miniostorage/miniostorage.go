// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
)

const defaultBucket = "watermarks"

type MinioImageStorage struct {
	bucket string
	client *minio.Client
}

// Options - параметры подключения, Addr в виде host:port
type Options struct {
	Addr   string
	User   string
	Pass   string
	Bucket string
	Secure bool
}

func NewMinioClient(ctx context.Context, opts Options) (*MinioImageStorage, error) {
	if opts.Addr == "" {
		return nil, errors.New("minio address is empty")
	}
	if opts.Bucket == "" {
		opts.Bucket = defaultBucket
		zlog.Logger.Warn().Msg("Bucket name is empty. Using default value " + defaultBucket)
	}

	// подключаемся к минио - создаем клиента
	strg, err := minio.New(opts.Addr, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Pass, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(ctx, strg, opts.Bucket); err != nil {
		return nil, err
	}

	return &MinioImageStorage{bucket: opts.Bucket, client: strg}, nil
}

func (s *MinioImageStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *MinioImageStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %q: %w", key, mapMinioErr(err))
	}
	return nil
}

// Get returns the object and its content type. The caller closes the reader.
// A missing object is reported as model.ErrImageNotFound.
func (s *MinioImageStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get %q: %w", key, mapMinioErr(err))
	}

	// GetObject ленивый - реальный запрос уходит только на Stat/Read
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, "", fmt.Errorf("stat %q: %w", key, mapMinioErr(err))
	}

	return obj, info.ContentType, nil
}

func mapMinioErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return model.ErrImageNotFound
	}
	return err
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
