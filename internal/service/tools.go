package service

import (
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/fontprovider"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/spf13/cast"
)

// Значения по умолчанию как в исходном приложении
const (
	defaultColor   = "white"
	defaultOpacity = 50
	defaultAnchor  = "bottom-right"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}

	// Валидируем поле типа сортировки
	req.Sort = strings.TrimSpace(strings.ToLower(req.Sort))
	switch {
	case strings.Contains(req.Sort, model.ByUUID):
		req.Sort = "job_uid"
	default:
		req.Sort = "created_at" // по дефолту ставим сортировку по времени создания
	}

	// Валидируем порядок
	req.Order = strings.TrimSpace(strings.ToLower(req.Order))
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	default:
		req.Order = "DESC" // по дефолту ставим сортировку "новое-выше"
	}
}

// validateNormalizeJob checks the upload and turns raw form values into a job. An uploaded
// watermark image selects the image kind and the text fields are dropped.
func validateNormalizeJob(raw *model.JobCreateData) (*model.Job, error) {
	// корректен ли исходник
	if raw == nil || raw.OrigImg == nil || raw.OrigImgSize <= 0 || !model.InImageTypeMap[raw.OrigContentType] {
		return nil, model.ErrEmptySource
	}

	job := &model.Job{}
	form := raw.Form

	// якорь
	anchorName := form.Anchor
	if strings.TrimSpace(anchorName) == "" {
		anchorName = defaultAnchor
	}
	anchor, err := model.ParseAnchor(anchorName)
	if err != nil {
		return nil, err
	}
	job.Anchor = anchor.String()

	// водяной знак картинкой - только PNG, нужна альфа
	if raw.WMImg != nil {
		if raw.WMImgSize <= 0 {
			return nil, model.ErrEmptyWMark
		}
		if raw.WMContentType != model.PNG {
			return nil, model.ErrUnsupportedWMFormat
		}
		job.Kind = model.KindImage
		return job, nil
	}

	// водяной знак текстом
	if strings.TrimSpace(form.Text) == "" {
		return nil, model.ErrEmptyWatermarkText
	}
	job.Kind = model.KindText
	job.Text = form.Text

	job.Color = strings.ToLower(strings.TrimSpace(form.Color))
	if job.Color == "" {
		job.Color = defaultColor
	}
	if _, err := model.ParseColor(job.Color); err != nil {
		return nil, err
	}

	job.Opacity = defaultOpacity
	if op := strings.TrimSpace(form.Opacity); op != "" {
		v, err := parseOpacity(op)
		if err != nil {
			return nil, err
		}
		job.Opacity = v
	}

	job.Font = strings.ToLower(strings.TrimSpace(form.Font))
	if job.Font == "" {
		job.Font = fontprovider.DefaultName
	}

	return job, nil
}

// parseOpacity - строго десятичное 0..100, ведущие нули допустимы, префиксы 0x/0o/+/- нет
func parseOpacity(op string) (int, error) {
	if strings.TrimLeft(op, "0123456789") != "" {
		return 0, model.ErrIncorrectOpacity
	}

	digits := strings.TrimLeft(op, "0")
	if digits == "" {
		return 0, nil
	}

	v, err := cast.ToIntE(digits)
	if err != nil || v > 100 {
		return 0, model.ErrIncorrectOpacity
	}
	return v, nil
}
