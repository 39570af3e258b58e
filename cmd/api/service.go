package main

import (
	"context"

	"github.com/UnendingLoop/Watermarker/internal/transport"
)

type JobAPIService interface {
	transport.JobService
	ReviveOrphans(ctx context.Context, limit int)
}
