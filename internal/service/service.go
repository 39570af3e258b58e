// Package service provides business-logic for the app
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"io"
	"slices"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

type JobService struct {
	repo       repository.JobRepo
	publisher  TaskPublisher
	storage    ImageStorage
	compositor Compositor
	fonts      FontLister
	keys       KeyPrefixes
	previewMax int
}

// KeyPrefixes - префиксы ключей в хранилище для исходников, водяных знаков и результатов
type KeyPrefixes struct {
	Source    string
	Watermark string
	Result    string
}

type Options struct {
	Keys        KeyPrefixes
	PreviewSide int
}

func NewJobService(repo repository.JobRepo, pub TaskPublisher, strg ImageStorage, c Compositor, fonts FontLister, opts Options) *JobService {
	return &JobService{
		repo:       repo,
		publisher:  pub,
		storage:    strg,
		compositor: c,
		fonts:      fonts,
		keys:       opts.Keys,
		previewMax: opts.PreviewSide,
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ImageStorage - контракт для работы с хранилищем
type ImageStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// Compositor - ядро наложения водяного знака
type Compositor interface {
	Apply(base image.Image, spec model.WatermarkSpec, anchor model.Anchor) (image.Image, error)
}

type FontLister interface {
	Names() []string
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// Preview composites the watermark synchronously. Unless full is set the result is shrunk for
// display and encoded as PNG; a full preview keeps the source size and format.
func (c JobService) Preview(ctx context.Context, data *model.JobCreateData, full bool) (io.Reader, int64, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	job, err := c.validateJob(data)
	if err != nil {
		return nil, 0, "", err
	}

	base, format, err := imageproc.Decode(data.OrigImg)
	if err != nil {
		return nil, 0, "", model.ErrEmptySource
	}

	var mark image.Image
	if job.Kind == model.KindImage {
		if mark, _, err = imageproc.Decode(data.WMImg); err != nil {
			return nil, 0, "", model.ErrEmptyWMark
		}
	}

	spec, anchor, err := job.Spec(mark)
	if err != nil {
		return nil, 0, "", err
	}

	res, err := c.compositor.Apply(base, spec, anchor)
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			return nil, 0, "", err
		}
		logger.Error().Err(err).Msg("Failed to apply watermark for preview")
		return nil, 0, "", model.ErrCommon500
	}

	if !full {
		res = imageproc.Preview(res, c.previewMax)
		format = imaging.PNG
	}

	out, size, err := imageproc.EncodeToReader(res, format)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode preview")
		return nil, 0, "", model.ErrCommon500
	}
	return out, size, model.GetCType[format], nil
}

func (c JobService) Create(ctx context.Context, data *model.JobCreateData) (*model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// Валидируем параметры водяного знака
	newJob, err := c.validateJob(data)
	if err != nil {
		return nil, err
	}

	// генерируем UUID
	newJob.UID = uuid.New()

	// кладем в хранилище сорсник
	newJob.SourceKey = c.keys.Source + newJob.UID.String() + model.GetImageFileExt[data.OrigContentType]
	if err := c.storage.Put(ctx, newJob.SourceKey, data.OrigImgSize, data.OrigContentType, data.OrigImg); err != nil {
		logger.Error().Err(err).Msg("Failed to save src-image in Storage")
		return nil, model.ErrCommon500
	}

	// кладем в хранилище ватермарк - если он картинкой
	if newJob.Kind == model.KindImage {
		newJob.WatermarkKey = c.keys.Watermark + newJob.UID.String() + model.GetImageFileExt[data.WMContentType]
		if err := c.storage.Put(ctx, newJob.WatermarkKey, data.WMImgSize, data.WMContentType, data.WMImg); err != nil {
			logger.Error().Err(err).Msg("Failed to save watermark in Storage")
			c.dropStored(ctx, newJob.SourceKey)
			return nil, model.ErrCommon500
		}
	}

	// ставим статус и таймстамп
	newJob.Status = model.StatusCreated
	now := time.Now().UTC()
	newJob.CreatedAt = &now
	newJob.UpdatedAt = &now

	// шлем в базу
	if err := c.repo.Create(ctx, newJob); err != nil {
		logger.Error().Err(err).Msg("Failed to create job in DB")
		c.dropStored(ctx, newJob.SourceKey, newJob.WatermarkKey)
		return nil, model.ErrCommon500
	}

	// кладем в очередь задач(в кафку)
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(newJob.UID.String()), nil); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish job %q to task-queue", newJob.UID))
		// без удаления строки задачу подхватит ReviveOrphans, хотя клиент получил 500
		if err := c.repo.Delete(ctx, newJob.UID.String()); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to roll back job %q in DB", newJob.UID))
		}
		c.dropStored(ctx, newJob.SourceKey, newJob.WatermarkKey)
		return nil, model.ErrCommon500
	}
	return newJob, nil
}

// dropStored удаляет уже загруженные объекты неудавшейся задачи, ошибки только логируются
func (c JobService) dropStored(ctx context.Context, keys ...string) {
	logger := mwlogger.LoggerFromContext(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := c.storage.Delete(ctx, key); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to clean up %q in Storage", key))
		}
	}
}

func (c JobService) Fonts() []string {
	return c.fonts.Names()
}

func (c JobService) validateJob(data *model.JobCreateData) (*model.Job, error) {
	job, err := validateNormalizeJob(data)
	if err != nil {
		return nil, err
	}
	if job.Kind == model.KindText && !slices.Contains(c.fonts.Names(), job.Font) {
		return nil, fmt.Errorf("%w: %q", model.ErrIncorrectFont, job.Font)
	}
	return job, nil
}

func (c JobService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := c.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch jobs list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrImageNotFound) || errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrImageNotFound
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch job %q from DB", id))
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c JobService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if res.Status != model.StatusDone {
		return nil, "", model.ErrResultNotReady
	}

	// достаем из хранилища
	data, cType, err := c.storage.Get(ctx, res.ResultKey)
	if err != nil {
		if errors.Is(err, model.ErrImageNotFound) {
			logger.Warn().Err(err).Msg(fmt.Sprintf("Result-image of job %q is missing in Storage", id))
			return nil, "", model.ErrImageNotFound
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result-image %q from Storage", id))
		return nil, "", model.ErrCommon500
	}
	return data, cType, nil
}

func (c JobService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	// читаем из базы
	res, err := c.Get(ctx, id)
	if err != nil {
		return err
	}

	// удаляем из базы
	if err := c.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrImageNotFound) {
			return err
		}
		logger.Error().Err(err).Msg("Failed to delete job from DB")
		return model.ErrCommon500
	}

	// удаляем из хранилища сорсник, результат и ватермарк(если они есть)
	for _, key := range []string{res.SourceKey, res.ResultKey, res.WatermarkKey} {
		if key == "" {
			continue
		}
		if err := c.storage.Delete(ctx, key); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to delete %q from Storage", key))
			return model.ErrCommon500
		}
	}

	return nil
}

func (c JobService) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}
	if !model.StatusMap[newStat] {
		return model.ErrIncorrectStatus
	}

	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.UpdateStatus(ctx, id, newStat); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows), errors.Is(err, model.ErrImageNotFound):
			return model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to update job status in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

func (c JobService) SaveResult(ctx context.Context, input *model.Job) error {
	logger := mwlogger.LoggerFromContext(ctx)
	t := time.Now().UTC()
	input.UpdatedAt = &t
	if err := c.repo.SaveResult(ctx, input); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows), errors.Is(err, model.ErrImageNotFound):
			return model.ErrImageNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to save job result in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// ReviveOrphans republishes jobs that were created or taken but never finished.
func (c JobService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Msg("Failed to publish orphan to queue")
		}
	}
}
