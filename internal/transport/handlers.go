// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"strconv"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/spf13/cast"
	"github.com/wb-go/wbf/ginext"
)

type JobHandler struct {
	service JobService
}

type JobService interface {
	Preview(ctx context.Context, data *model.JobCreateData, full bool) (io.Reader, int64, string, error)
	Create(ctx context.Context, data *model.JobCreateData) (*model.Job, error)
	Delete(ctx context.Context, id string) error                              // удалить как в базе, так и в minio
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) // прям скачать результат
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) // получить список
	Fonts() []string
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{
		service: svc,
	}
}

func (h JobHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h JobHandler) Fonts(ctx *ginext.Context) {
	ctx.JSON(200, map[string][]string{"fonts": h.service.Fonts()})
}

// Preview отдает результат сразу, без очереди. По умолчанию уменьшенный PNG, ?full=true - исходный размер
func (h JobHandler) Preview(ctx *ginext.Context) {
	data, cleanup, ok := parseJobForm(ctx)
	if !ok {
		return
	}
	defer cleanup()

	full := cast.ToBool(ctx.Query("full"))

	res, size, cType, err := h.service.Preview(ctx.Request.Context(), data, full)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		logger := mwlogger.LoggerFromContext(ctx.Request.Context())
		logger.Error().Err(err).Int64("written", n).Msg("Failed to write preview response")
	}
}

func (h JobHandler) Create(ctx *ginext.Context) {
	data, cleanup, ok := parseJobForm(ctx)
	if !ok {
		return
	}
	defer cleanup()

	// передаем в сервис
	res, err := h.service.Create(ctx.Request.Context(), data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h JobHandler) GetAllImages(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": model.ErrIncorrectQuery.Error()})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h JobHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(ctx.Request.Context(), res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		logger := mwlogger.LoggerFromContext(ctx.Request.Context())
		logger.Error().Err(err).Int64("written", n).Str("id", id).Msg("Failed to write result response")
	}
}

func (h JobHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := h.service.Delete(ctx.Request.Context(), id); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}
