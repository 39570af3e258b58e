// Package storage connects the app to the object storage where sources, watermarks and results live
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

// NewImgStorage keeps trying to connect until it succeeds or ctx is done
func NewImgStorage(ctx context.Context, cfg *config.Config, delay time.Duration) (*miniostorage.MinioImageStorage, error) {
	opts := miniostorage.Options{
		Addr:   cfg.GetString("MINIO_ADDR"),
		User:   cfg.GetString("MINIO_USER"),
		Pass:   cfg.GetString("MINIO_PASS"),
		Bucket: cfg.GetString("BUCKET_NAME"),
	}

	for {
		zlog.Logger.Info().Str("addr", opts.Addr).Msg("Connecting to IMG-storage...")
		client, err := miniostorage.NewMinioClient(ctx, opts)
		if err == nil {
			zlog.Logger.Info().Msg("Successfully connected IMG-storage!")
			return client, nil
		}
		zlog.Logger.Warn().Err(err).Msg(fmt.Sprintf("Failed to init connection to IMG-storage. Next retry in %v...", delay))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to IMG-storage: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}
