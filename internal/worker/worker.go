// Package worker contains methods for worker to init at start, and to process watermark jobs
package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// errTaskFailed - задача обработана, но с ошибкой; статус failed уже записан, сообщение можно коммитить
var errTaskFailed = errors.New("task failed")

// NoopPublisher - ЗАГЛУШКА, функциональность настоящего паблишера в очередь не нужна в рамках работы воркера
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, k []byte, v []byte) error {
	return nil
}

type JobWorkerService interface {
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, res *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
}

type ImageStorage interface {
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

type Compositor interface {
	Apply(base image.Image, spec model.WatermarkSpec, anchor model.Anchor) (image.Image, error)
}

// Committer - подтверждение обработанных сообщений, в проде это wbf kafka consumer
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	storage      ImageStorage
	service      JobWorkerService
	compositor   Compositor
	queue        <-chan kafkago.Message
	consumer     Committer
	resultPrefix string
}

func NewWorkerInstance(strg ImageStorage, svc JobWorkerService, c Compositor, q <-chan kafkago.Message, cons Committer, resPr string) *Worker {
	return &Worker{storage: strg, service: svc, compositor: c, queue: q, consumer: cons, resultPrefix: resPr}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			id := string(msg.Key)
			logger := zlog.Logger.With().Str("job_uid", id).Logger()

			err := w.initProcessor(ctx, id)
			switch {
			case err == nil:
				logger.Info().Msg("Task processed")
			case errors.Is(err, model.ErrImageNotFound), errors.Is(err, errTaskFailed):
				logger.Warn().Err(err).Msg("Task dropped")
			default:
				// не коммитим - сообщение вернется после перезапуска или через recovery-цикл
				logger.Error().Err(err).Msg("Task failed")
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				logger.Error().Err(err).Msg("Failed to commit queue-message")
			}
		}
	}
}

func (w *Worker) initProcessor(ctx context.Context, id string) error {
	// считать из базы задачу
	task, err := w.service.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("worker failed to fetch job %q from DB: %w", id, err)
	}
	// проверить статус, in_progress сюда приходит только от recovery-цикла - обрабатываем заново
	switch task.Status {
	case model.StatusDone, model.StatusFailed:
		return nil
	}

	// на всякий случай проверить поле с результатом
	if w.resultPrefix != "" && strings.HasPrefix(task.ResultKey, w.resultPrefix) {
		if err := w.service.UpdateStatus(ctx, id, model.StatusDone); err != nil {
			return fmt.Errorf("failed to update status of already-done task in DB: %w", err)
		}
		return nil
	}

	// обновить статус
	if err := w.service.UpdateStatus(ctx, id, model.StatusInProgress); err != nil {
		return fmt.Errorf("failed to update status of task %q to `in_progress` in DB: %w", id, err)
	}

	// выполняем саму операцию
	if pErr := w.processTask(ctx, task); pErr != nil {
		task.Status = model.StatusFailed
		task.ErrMsg = append(task.ErrMsg, pErr.Error())
		if uErr := w.service.SaveResult(ctx, task); uErr != nil {
			return fmt.Errorf("failed to set status of task %q to `failed` in DB: %w \nAFTER\n error while processing task: %w", id, uErr, pErr)
		}
		return fmt.Errorf("%w %q: %w", errTaskFailed, id, pErr)
	}

	return nil
}

func (w *Worker) processTask(ctx context.Context, task *model.Job) error {
	// достать из storage исходник
	base, format, err := w.fetchImage(ctx, task.SourceKey)
	if err != nil {
		return fmt.Errorf("worker failed to load base-image: %w", err)
	}

	// ватермарк картинкой - только PNG
	var mark image.Image
	if task.Kind == model.KindImage {
		var wmFormat imaging.Format
		mark, wmFormat, err = w.fetchImage(ctx, task.WatermarkKey)
		if err != nil {
			return fmt.Errorf("worker failed to load wm-image: %w", err)
		}
		if wmFormat != imaging.PNG {
			return model.ErrUnsupportedWMFormat
		}
	}

	spec, anchor, err := task.Spec(mark)
	if err != nil {
		return fmt.Errorf("worker failed to restore watermark params: %w", err)
	}

	res, err := w.compositor.Apply(base, spec, anchor)
	if err != nil {
		return fmt.Errorf("worker failed to apply wm on image: %w", err)
	}

	result, size, err := imageproc.EncodeToReader(res, format)
	if err != nil {
		return fmt.Errorf("worker failed to encode result: %w", err)
	}

	// положить результат в сторедж если ошибок нет на предыдущем этапе
	resCType := model.GetCType[format]
	resKey := w.resultPrefix + task.UID.String() + model.GetImageFileExt[resCType]
	if err := w.storage.Put(ctx, resKey, size, resCType, result); err != nil {
		return fmt.Errorf("worker failed to put result image to storage: %w", err)
	}

	task.Status = model.StatusDone
	task.ResultKey = resKey

	// обновить запись в БД
	if err := w.service.SaveResult(ctx, task); err != nil {
		return fmt.Errorf("worker failed to save result to DB: %w", err)
	}
	return nil
}

func (w *Worker) fetchImage(ctx context.Context, key string) (image.Image, imaging.Format, error) {
	if key == "" {
		return nil, -1, errors.New("empty storage key")
	}
	r, _, err := w.storage.Get(ctx, key)
	if err != nil {
		return nil, -1, err
	}
	defer closeFileFlow(r)

	return imageproc.Decode(r)
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Worker failed to close fileflow")
	}
}
