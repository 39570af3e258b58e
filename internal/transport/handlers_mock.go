package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/gin-gonic/gin"
)

type mockJobService struct {
	previewFn    func(ctx context.Context, d *model.JobCreateData, full bool) (io.Reader, int64, string, error)
	createFn     func(ctx context.Context, d *model.JobCreateData) (*model.Job, error)
	deleteFn     func(ctx context.Context, id string) error
	loadResultFn func(ctx context.Context, id string) (io.ReadCloser, string, error)
	getListFn    func(ctx context.Context, req *model.ListRequest) ([]model.Job, error)
	fontsFn      func() []string
}

func (m *mockJobService) Preview(ctx context.Context, d *model.JobCreateData, full bool) (io.Reader, int64, string, error) {
	return m.previewFn(ctx, d, full)
}

func (m *mockJobService) Create(ctx context.Context, d *model.JobCreateData) (*model.Job, error) {
	return m.createFn(ctx, d)
}

func (m *mockJobService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockJobService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadResultFn(ctx, id)
}

func (m *mockJobService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
	return m.getListFn(ctx, req)
}

func (m *mockJobService) Fonts() []string {
	return m.fontsFn()
}

func init() {
	gin.SetMode(gin.TestMode)
}
