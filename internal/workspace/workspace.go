// Package workspace keeps the state of one editing session: the uploaded photo and the last
// watermarked result. The compositor itself is stateless; this is the only place that holds images.
package workspace

import (
	"image"
	"sync"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

type Compositor interface {
	Apply(base image.Image, spec model.WatermarkSpec, anchor model.Anchor) (image.Image, error)
}

type Workspace struct {
	mu         sync.Mutex
	compositor Compositor
	original   image.Image
	result     image.Image
}

func New(c Compositor) *Workspace {
	return &Workspace{compositor: c}
}

// Load replaces the original photo and drops any previous result.
func (w *Workspace) Load(img image.Image) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.original = img
	w.result = nil
}

// Apply always starts from the original, so repeated applies with different settings do not stack.
// On error the previous result is kept.
func (w *Workspace) Apply(spec model.WatermarkSpec, anchor model.Anchor) (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.original == nil {
		return nil, model.ErrNoBaseImage
	}

	res, err := w.compositor.Apply(w.original, spec, anchor)
	if err != nil {
		return nil, err
	}
	w.result = res
	return res, nil
}

func (w *Workspace) Original() image.Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.original
}

// Result returns the last watermarked image or nil if nothing was applied yet.
func (w *Workspace) Result() image.Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Reset clears both images.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.original = nil
	w.result = nil
}
