package transport

import (
	"context"
	"errors"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/wb-go/wbf/ginext"
)

func errorCodeDefiner(err error) int {
	var vErr *model.ValidationError
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrImageNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.As(err, &vErr),
		errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrEmptyWMark),
		errors.Is(err, model.ErrIncorrectAnchor),
		errors.Is(err, model.ErrIncorrectColor),
		errors.Is(err, model.ErrIncorrectOpacity),
		errors.Is(err, model.ErrIncorrectFont),
		errors.Is(err, model.ErrIncorrectStatus),
		errors.Is(err, model.ErrUnsupportedWMFormat),
		errors.Is(err, model.ErrUnsupportedFormat):
		return 400
	default:
		return 500
	}
}

// parseJobForm собирает JobCreateData из multipart-формы. Если ok == false, ответ уже отправлен.
// cleanup закрывает открытые файлы.
func parseJobForm(ctx *ginext.Context) (data *model.JobCreateData, cleanup func(), ok bool) {
	reqCtx := ctx.Request.Context()

	// парсинг исходника
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return nil, nil, false
	}

	data = &model.JobCreateData{
		Form: model.WatermarkForm{
			Text:    ctx.PostForm("text"),
			Color:   ctx.PostForm("color"),
			Opacity: ctx.PostForm("opacity"),
			Font:    ctx.PostForm("font"),
			Anchor:  ctx.PostForm("anchor"),
		},
		OrigImg:         imageFile,
		OrigContentType: imageHeader.Header.Get("Content-Type"),
		OrigImgSize:     imageHeader.Size,
	}

	// парсинг ватермарка если есть - он опционален
	wmFile, wmHeader, err := ctx.Request.FormFile("watermark")
	if err == nil {
		data.WMImg = wmFile
		data.WMContentType = wmHeader.Header.Get("Content-Type")
		data.WMImgSize = wmHeader.Size
	}

	cleanup = func() {
		closeFileFlow(reqCtx, imageFile)
		if wmFile != nil {
			closeFileFlow(reqCtx, wmFile)
		}
	}
	return data, cleanup, true
}

func closeFileFlow(ctx context.Context, res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}
