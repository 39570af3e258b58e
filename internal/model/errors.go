package model

import "errors"

// ValidationError - ошибка, которую пользователь может исправить сам; операция прерывается до любых изменений
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	ErrNoBaseImage        = &ValidationError{Reason: "no base image loaded"}            // 400
	ErrEmptyWatermarkText = &ValidationError{Reason: "watermark text must not be empty"} // 400
)

var (
	ErrCommon500           error = errors.New("something went wrong. Try again later")    // 500
	ErrIncorrectQuery      error = errors.New("incorrect query parameters")               // 400
	ErrIncorrectID         error = errors.New("incorrect job UUID")                       // 400
	ErrImageNotFound       error = errors.New("specified job UUID doesn't exist")         // 404
	ErrResultNotReady      error = errors.New("requested image is not processed yet")     // 404
	ErrEmptySource         error = errors.New("empty/incorrect source image provided")    // 400
	ErrEmptyWMark          error = errors.New("empty/incorrect watermark provided")       // 400
	ErrIncorrectAnchor     error = errors.New("unknown watermark anchor")                 // 400
	ErrIncorrectColor      error = errors.New("unknown watermark color")                  // 400
	ErrIncorrectOpacity    error = errors.New("opacity must be an integer within 0..100") // 400
	ErrIncorrectFont       error = errors.New("unknown font")                             // 400
	ErrIncorrectStatus     error = errors.New("incorrect status provided")                // 400
	ErrUnsupportedWMFormat error = errors.New("unsupported watermark-image format")       // 400
	ErrUnsupportedFormat   error = errors.New("unsupported base image format")            // 400
)
