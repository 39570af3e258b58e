// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"image"
	"mime/multipart"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type (
	Status string
	Kind   string
)

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

//---------------------

// Job - задача на наложение водяного знака, хранится в БД
type Job struct {
	UID          uuid.UUID   `json:"uid"`
	SourceKey    string      `json:"-"`
	WatermarkKey string      `json:"-"`
	ResultKey    string      `json:"-"`
	Kind         Kind        `json:"kind"`
	Text         string      `json:"text,omitempty"`
	Color        string      `json:"color,omitempty"`
	Opacity      int         `json:"opacity"`
	Font         string      `json:"font,omitempty"`
	Anchor       string      `json:"anchor"`
	Status       Status      `json:"status,omitempty"`
	ErrMsg       StringSlice `json:"error,omitempty"`
	CreatedAt    *time.Time  `json:"created_at,omitempty"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
}

// Spec rebuilds the watermark spec stored in the job. mark is the decoded watermark image and is
// only used for KindImage jobs.
func (j *Job) Spec(mark image.Image) (WatermarkSpec, Anchor, error) {
	anchor, err := ParseAnchor(j.Anchor)
	if err != nil {
		return nil, 0, err
	}

	switch j.Kind {
	case KindImage:
		if mark == nil {
			return nil, 0, ErrEmptyWMark
		}
		return ImageWatermark{Source: mark}, anchor, nil
	case KindText:
		c, err := ParseColor(j.Color)
		if err != nil {
			return nil, 0, err
		}
		return TextWatermark{
			Content:  j.Text,
			Color:    c,
			Opacity:  j.Opacity,
			FontName: j.Font,
			Size:     DefaultFontSize,
		}, anchor, nil
	}
	return nil, 0, fmt.Errorf("unknown job kind %q", j.Kind)
}

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

// WatermarkForm - сырые значения из формы, одинаковые для превью и для задачи
type WatermarkForm struct {
	Text    string
	Color   string
	Opacity string
	Font    string
	Anchor  string
}

type JobCreateData struct {
	Form            WatermarkForm
	OrigImg         multipart.File
	OrigContentType string
	OrigImgSize     int64
	WMImg           multipart.File
	WMContentType   string
	WMImgSize       int64
}

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	BMP  = "image/bmp"
	TIFF = "image/tiff"
	WEBP = "image/webp"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	BMP:  ".bmp",
	TIFF: ".tiff",
	WEBP: ".webp",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	BMP:  true,
	TIFF: true,
	WEBP: true,
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.GIF:  GIF,
	imaging.PNG:  PNG,
	imaging.BMP:  BMP,
	imaging.TIFF: TIFF,
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}
