package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/UnendingLoop/Watermarker/internal/fontprovider"
	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

var defaultFonts = staticFonts{fontprovider.DefaultName, "brand"}

// CREATE - SUCCESS - TEXT
func TestJobService_Create_TextOK(t *testing.T) {
	ctx := context.Background()

	var putKeys []string
	repo := &mockRepo{
		createFn: func(ctx context.Context, j *model.Job) error {
			require.NotEqual(t, uuid.Nil, j.UID)
			require.Equal(t, model.StatusCreated, j.Status)
			require.Equal(t, model.KindText, j.Kind)
			require.NotNil(t, j.CreatedAt)
			return nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			putKeys = append(putKeys, key)
			return nil
		},
	}

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			require.NotEmpty(t, key)
			return nil
		},
	}

	svc := JobService{
		repo:      repo,
		storage:   storage,
		publisher: pub,
		fonts:     defaultFonts,
		keys:      KeyPrefixes{Source: "src/", Watermark: "wm/", Result: "res/"},
	}

	job, err := svc.Create(ctx, validCreateData())
	require.NoError(t, err)
	require.Equal(t, "white", job.Color)
	require.Equal(t, 50, job.Opacity)
	require.Equal(t, "bottom-right", job.Anchor)
	require.Equal(t, fontprovider.DefaultName, job.Font)
	require.Equal(t, []string{"src/" + job.UID.String() + ".jpg"}, putKeys)
	require.Empty(t, job.WatermarkKey)
}

// CREATE - SUCCESS - IMAGE
func TestJobService_Create_ImageOK(t *testing.T) {
	var putKeys []string
	svc := JobService{
		repo: &mockRepo{createFn: func(ctx context.Context, j *model.Job) error { return nil }},
		storage: &mockStorage{
			putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
				putKeys = append(putKeys, key)
				return nil
			},
		},
		publisher: &mockPublisher{sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error { return nil }},
		fonts:     defaultFonts,
		keys:      KeyPrefixes{Source: "src/", Watermark: "wm/"},
	}

	data := validCreateData()
	data.Form.Text = "dropped"
	data.WMImg = newFakeFile("png-bytes")
	data.WMImgSize = 9
	data.WMContentType = model.PNG

	job, err := svc.Create(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, model.KindImage, job.Kind)
	require.Empty(t, job.Text)
	require.Equal(t, "wm/"+job.UID.String()+".png", job.WatermarkKey)
	require.Len(t, putKeys, 2)
}

// CREATE - VALIDATION FAIL
func TestJobService_Create_InvalidInput(t *testing.T) {
	svc := JobService{fonts: defaultFonts}

	_, err := svc.Create(context.Background(), &model.JobCreateData{})
	require.ErrorIs(t, err, model.ErrEmptySource)

	data := validCreateData()
	data.Form.Font = "comic-sans"
	_, err = svc.Create(context.Background(), data)
	require.ErrorIs(t, err, model.ErrIncorrectFont)
}

// CREATE - STORAGE PUT FAIL
func TestJobService_Create_StorageError(t *testing.T) {
	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return errors.New("storage is down")
		},
	}

	svc := JobService{
		repo:    &mockRepo{},
		storage: storage,
		fonts:   defaultFonts,
		keys:    KeyPrefixes{Source: "src/"},
	}

	_, err := svc.Create(context.Background(), validCreateData())
	require.ErrorIs(t, err, model.ErrCommon500)
}

// CREATE - ROLLBACK OF PARTIALLY SAVED JOB
func TestJobService_Create_Rollback(t *testing.T) {
	tests := []struct {
		name        string
		withMark    bool
		failPutKey  string
		dbErr       error
		pubErr      error
		wantDeleted []string
		wantRowDrop bool
	}{
		{
			name:        "watermark put fails",
			withMark:    true,
			failPutKey:  "wm/",
			wantDeleted: []string{"src/"},
		},
		{
			name:        "db create fails",
			withMark:    true,
			dbErr:       errors.New("db down"),
			wantDeleted: []string{"src/", "wm/"},
		},
		{
			name:        "publish fails",
			pubErr:      errors.New("kafka is down"),
			wantDeleted: []string{"src/"},
			wantRowDrop: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deleted []string
			var rowDropped bool

			svc := JobService{
				repo: &mockRepo{
					createFn: func(ctx context.Context, j *model.Job) error { return tt.dbErr },
					deleteFn: func(ctx context.Context, id string) error {
						rowDropped = true
						return nil
					},
				},
				storage: &mockStorage{
					putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
						if tt.failPutKey != "" && strings.HasPrefix(key, tt.failPutKey) {
							return errors.New("storage is down")
						}
						return nil
					},
					deleteFn: func(ctx context.Context, key string) error {
						deleted = append(deleted, key)
						return nil
					},
				},
				publisher: &mockPublisher{
					sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error { return tt.pubErr },
				},
				fonts: defaultFonts,
				keys:  KeyPrefixes{Source: "src/", Watermark: "wm/"},
			}

			data := validCreateData()
			if tt.withMark {
				data.WMImg = newFakeFile("png-bytes")
				data.WMImgSize = 9
				data.WMContentType = model.PNG
			}

			_, err := svc.Create(context.Background(), data)
			require.ErrorIs(t, err, model.ErrCommon500)
			require.Equal(t, tt.wantRowDrop, rowDropped)
			require.Len(t, deleted, len(tt.wantDeleted))
			for i, prefix := range tt.wantDeleted {
				require.True(t, strings.HasPrefix(deleted[i], prefix), deleted[i])
			}
		})
	}
}

func TestValidateNormalizeJob(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *model.JobCreateData)
		wantErr error
		check   func(t *testing.T, j *model.Job)
	}{
		{
			name:   "defaults",
			mutate: func(d *model.JobCreateData) {},
			check: func(t *testing.T, j *model.Job) {
				require.Equal(t, model.KindText, j.Kind)
				require.Equal(t, "white", j.Color)
				require.Equal(t, 50, j.Opacity)
				require.Equal(t, "bottom-right", j.Anchor)
				require.Equal(t, fontprovider.DefaultName, j.Font)
			},
		},
		{
			name: "explicit values are normalized",
			mutate: func(d *model.JobCreateData) {
				d.Form = model.WatermarkForm{Text: "x", Color: " #FF8800 ", Opacity: " 0 ", Font: " Brand", Anchor: "Top_Left"}
			},
			check: func(t *testing.T, j *model.Job) {
				require.Equal(t, "#ff8800", j.Color)
				require.Equal(t, 0, j.Opacity)
				require.Equal(t, "brand", j.Font)
				require.Equal(t, "top-left", j.Anchor)
			},
		},
		{
			name:    "no source",
			mutate:  func(d *model.JobCreateData) { d.OrigImg = nil },
			wantErr: model.ErrEmptySource,
		},
		{
			name:    "zero size source",
			mutate:  func(d *model.JobCreateData) { d.OrigImgSize = 0 },
			wantErr: model.ErrEmptySource,
		},
		{
			name:    "unsupported source type",
			mutate:  func(d *model.JobCreateData) { d.OrigContentType = "application/pdf" },
			wantErr: model.ErrEmptySource,
		},
		{
			name:    "blank text",
			mutate:  func(d *model.JobCreateData) { d.Form.Text = "  \t" },
			wantErr: model.ErrEmptyWatermarkText,
		},
		{
			name:    "bad color",
			mutate:  func(d *model.JobCreateData) { d.Form.Color = "purple" },
			wantErr: model.ErrIncorrectColor,
		},
		{
			name:    "opacity not a number",
			mutate:  func(d *model.JobCreateData) { d.Form.Opacity = "half" },
			wantErr: model.ErrIncorrectOpacity,
		},
		{
			name:    "opacity over range",
			mutate:  func(d *model.JobCreateData) { d.Form.Opacity = "101" },
			wantErr: model.ErrIncorrectOpacity,
		},
		{
			name:    "opacity negative",
			mutate:  func(d *model.JobCreateData) { d.Form.Opacity = "-1" },
			wantErr: model.ErrIncorrectOpacity,
		},
		{
			name:    "bad anchor",
			mutate:  func(d *model.JobCreateData) { d.Form.Anchor = "middle" },
			wantErr: model.ErrIncorrectAnchor,
		},
		{
			name: "watermark must be png",
			mutate: func(d *model.JobCreateData) {
				d.WMImg = newFakeFile("jpeg")
				d.WMImgSize = 4
				d.WMContentType = model.JPEG
			},
			wantErr: model.ErrUnsupportedWMFormat,
		},
		{
			name: "empty watermark file",
			mutate: func(d *model.JobCreateData) {
				d.WMImg = newFakeFile("")
				d.WMContentType = model.PNG
			},
			wantErr: model.ErrEmptyWMark,
		},
		{
			name: "image kind ignores text and color",
			mutate: func(d *model.JobCreateData) {
				d.Form.Text = ""
				d.Form.Color = "purple"
				d.WMImg = newFakeFile("png")
				d.WMImgSize = 3
				d.WMContentType = model.PNG
			},
			check: func(t *testing.T, j *model.Job) {
				require.Equal(t, model.KindImage, j.Kind)
				require.Empty(t, j.Text)
				require.Empty(t, j.Color)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validCreateData()
			tt.mutate(data)

			job, err := validateNormalizeJob(data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, job)
		})
	}
}

func TestParseOpacity(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"50", 50, false},
		{"0", 0, false},
		{"00", 0, false},
		{"010", 10, false},
		{"100", 100, false},
		{"0100", 100, false},
		{"101", 0, true},
		{"0x32", 0, true},
		{"0o7", 0, true},
		{"+10", 0, true},
		{"-1", 0, true},
		{"1_0", 0, true},
		{"12.5", 0, true},
		{"99999999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOpacity(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrIncorrectOpacity)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidateQueryParams(t *testing.T) {
	req := &model.ListRequest{Page: -1, Limit: 500, Sort: " UID ", Order: "ascend"}
	validateQueryParams(req)
	require.Equal(t, model.ListRequest{Page: 1, Limit: 30, Sort: "job_uid", Order: "ASC"}, *req)

	req = &model.ListRequest{Page: 3, Limit: 10, Sort: "anything", Order: ""}
	validateQueryParams(req)
	require.Equal(t, model.ListRequest{Page: 3, Limit: 10, Sort: "created_at", Order: "DESC"}, *req)
}

// PREVIEW - SUCCESS - уменьшенный PNG
func TestJobService_Preview_Text(t *testing.T) {
	svc := newPreviewService(t)

	data := validCreateData()
	data.OrigImg = encodedFile(t, 800, 600, imaging.JPEG)

	r, size, ctype, err := svc.Preview(context.Background(), data, false)
	require.NoError(t, err)
	require.Equal(t, model.PNG, ctype)
	require.Positive(t, size)

	img, err := imaging.Decode(r)
	require.NoError(t, err)
	require.Equal(t, 400, img.Bounds().Dx())
	require.Equal(t, 300, img.Bounds().Dy())
}

// PREVIEW - SUCCESS - полный размер и исходный формат
func TestJobService_Preview_FullImageMark(t *testing.T) {
	svc := newPreviewService(t)

	data := validCreateData()
	data.OrigImg = encodedFile(t, 800, 600, imaging.JPEG)
	data.WMImg = encodedFile(t, 100, 50, imaging.PNG)
	data.WMImgSize = 1
	data.WMContentType = model.PNG

	r, _, ctype, err := svc.Preview(context.Background(), data, true)
	require.NoError(t, err)
	require.Equal(t, model.JPEG, ctype)

	img, err := imaging.Decode(r)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())
}

func TestJobService_Preview_Errors(t *testing.T) {
	t.Run("broken source", func(t *testing.T) {
		svc := newPreviewService(t)
		data := validCreateData()
		data.OrigImg = newFakeFile("definitely not an image")

		_, _, _, err := svc.Preview(context.Background(), data, false)
		require.ErrorIs(t, err, model.ErrEmptySource)
	})

	t.Run("compositor validation error passes through", func(t *testing.T) {
		svc := JobService{
			fonts: defaultFonts,
			compositor: &mockCompositor{applyFn: func(image.Image, model.WatermarkSpec, model.Anchor) (image.Image, error) {
				return nil, model.ErrEmptyWatermarkText
			}},
		}
		data := validCreateData()
		data.OrigImg = encodedFile(t, 10, 10, imaging.PNG)

		_, _, _, err := svc.Preview(context.Background(), data, false)
		require.ErrorIs(t, err, model.ErrEmptyWatermarkText)
	})

	t.Run("compositor internal error", func(t *testing.T) {
		svc := JobService{
			fonts: defaultFonts,
			compositor: &mockCompositor{applyFn: func(image.Image, model.WatermarkSpec, model.Anchor) (image.Image, error) {
				return nil, errors.New("font file vanished")
			}},
		}
		data := validCreateData()
		data.OrigImg = encodedFile(t, 10, 10, imaging.PNG)

		_, _, _, err := svc.Preview(context.Background(), data, false)
		require.ErrorIs(t, err, model.ErrCommon500)
	})
}

// FONTS
func TestJobService_Fonts(t *testing.T) {
	svc := JobService{fonts: defaultFonts}
	require.Equal(t, []string{"default", "brand"}, svc.Fonts())
}

// GETLIST - SUCCESS
func TestJobService_GetList_OK(t *testing.T) {
	repo := &mockRepo{
		getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
			require.Equal(t, 1, req.Page)
			return []model.Job{{UID: uuid.New()}}, nil
		},
	}

	svc := JobService{repo: repo}

	res, err := svc.GetList(context.Background(), &model.ListRequest{})
	require.NoError(t, err)
	require.Len(t, res, 1)
}

// GETLIST - FAIL
func TestJobService_GetList_DBError(t *testing.T) {
	repo := &mockRepo{
		getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
			return nil, errors.New("db down")
		},
	}

	svc := JobService{repo: repo}

	_, err := svc.GetList(context.Background(), &model.ListRequest{})
	require.ErrorIs(t, err, model.ErrCommon500)
}

// GET - SUCCESS
func TestJobService_Get_OK(t *testing.T) {
	id := uuid.New().String()

	repo := &mockRepo{
		getFn: func(ctx context.Context, uid string) (*model.Job, error) {
			return &model.Job{UID: uuid.MustParse(uid)}, nil
		},
	}

	svc := JobService{repo: repo}

	job, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, job.UID.String())
}

// GET - FAIL
func TestJobService_Get_InvalidID(t *testing.T) {
	svc := JobService{}
	_, err := svc.Get(context.Background(), "bad-id")
	require.ErrorIs(t, err, model.ErrIncorrectID)
}

// LOADRESULT - FAIL
func TestJobService_LoadResult_NotReady(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Job, error) {
			return &model.Job{Status: model.StatusCreated}, nil
		},
	}

	svc := JobService{repo: repo}

	_, _, err := svc.LoadResult(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrResultNotReady)
}

// LOADRESULT - SUCCESS
func TestJobService_LoadResult_OK(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Job, error) {
			return &model.Job{Status: model.StatusDone, ResultKey: "res/1.png"}, nil
		},
	}
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			require.Equal(t, "res/1.png", key)
			return io.NopCloser(strings.NewReader("png")), model.PNG, nil
		},
	}

	svc := JobService{repo: repo, storage: storage}

	rc, ctype, err := svc.LoadResult(context.Background(), uuid.New().String())
	require.NoError(t, err)
	require.Equal(t, model.PNG, ctype)
	require.NoError(t, rc.Close())
}

// LOADRESULT - OBJECT MISSING IN STORAGE
func TestJobService_LoadResult_ObjectMissing(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Job, error) {
			return &model.Job{Status: model.StatusDone, ResultKey: "res/1.png"}, nil
		},
	}
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return nil, "", fmt.Errorf("stat %q: %w", key, model.ErrImageNotFound)
		},
	}

	svc := JobService{repo: repo, storage: storage}

	_, _, err := svc.LoadResult(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrImageNotFound)
}

// DELETE - FAIL - NOT FOUND
func TestJobService_Delete_NotFound(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Job, error) {
			return nil, sql.ErrNoRows
		},
	}

	svc := JobService{repo: repo}
	err := svc.Delete(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrImageNotFound)
}

// DELETE - SUCCESS - пустые ключи пропускаются
func TestJobService_Delete_OK(t *testing.T) {
	var deleted []string
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Job, error) {
			return &model.Job{SourceKey: "src/1.png", ResultKey: "res/1.png"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error { return nil },
	}
	storage := &mockStorage{
		deleteFn: func(ctx context.Context, key string) error {
			deleted = append(deleted, key)
			return nil
		},
	}

	svc := JobService{repo: repo, storage: storage}
	err := svc.Delete(context.Background(), uuid.New().String())
	require.NoError(t, err)
	require.Equal(t, []string{"src/1.png", "res/1.png"}, deleted)
}

// UPDATESTATUS - SUCCESS
func TestJobService_UpdateStatus_OK(t *testing.T) {
	repo := &mockRepo{
		updateStatusFn: func(ctx context.Context, id string, st model.Status) error {
			require.Equal(t, model.StatusDone, st)
			return nil
		},
	}

	svc := JobService{repo: repo}
	err := svc.UpdateStatus(context.Background(), uuid.New().String(), model.StatusDone)
	require.NoError(t, err)
}

// UPDATESTATUS - FAIL
func TestJobService_UpdateStatus_Errors(t *testing.T) {
	svc := JobService{repo: &mockRepo{
		updateStatusFn: func(ctx context.Context, id string, st model.Status) error {
			return model.ErrImageNotFound
		},
	}}

	require.ErrorIs(t, svc.UpdateStatus(context.Background(), "bad", model.StatusDone), model.ErrIncorrectID)
	require.ErrorIs(t, svc.UpdateStatus(context.Background(), uuid.New().String(), "paused"), model.ErrIncorrectStatus)
	require.ErrorIs(t, svc.UpdateStatus(context.Background(), uuid.New().String(), model.StatusDone), model.ErrImageNotFound)
}

// SAVERESULT - SUCCESS
func TestJobService_SaveResult_OK(t *testing.T) {
	repo := &mockRepo{
		saveResultFn: func(ctx context.Context, j *model.Job) error {
			require.NotNil(t, j.UpdatedAt)
			return nil
		},
	}

	svc := JobService{repo: repo}
	err := svc.SaveResult(context.Background(), &model.Job{})
	require.NoError(t, err)
}

// REVIVEORPHANS - SUCCESS
func TestJobService_ReviveOrphans(t *testing.T) {
	called := 0

	repo := &mockRepo{
		fetchOrphansFn: func(ctx context.Context, limit int) ([]string, error) {
			return []string{"id1", "id2"}, nil
		},
	}

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			called++
			return nil
		},
	}

	svc := JobService{repo: repo, publisher: pub}
	svc.ReviveOrphans(context.Background(), 10)

	require.Equal(t, 2, called)
}

// хелпер для создания файла
func newFakeFile(content string) multipart.File {
	return &fakeMultipartFile{
		Reader: bytes.NewReader([]byte(content)),
	}
}

// хелпер для настоящей картинки в нужном формате
func encodedFile(t *testing.T, w, h int, format imaging.Format) multipart.File {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 40, G: 80, B: 120, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return &fakeMultipartFile{Reader: bytes.NewReader(buf.Bytes())}
}

func newPreviewService(t *testing.T) JobService {
	t.Helper()
	fonts, err := fontprovider.New("")
	require.NoError(t, err)
	return JobService{
		compositor: imageproc.NewCompositor(fonts),
		fonts:      fonts,
		previewMax: imageproc.DefaultPreviewSide,
	}
}

// хелпер для генерации корректного JobCreateData
func validCreateData() *model.JobCreateData {
	return &model.JobCreateData{
		Form:            model.WatermarkForm{Text: "© ACME"},
		OrigImg:         newFakeFile("image-bytes"),
		OrigImgSize:     int64(len("image-bytes")),
		OrigContentType: model.JPEG,
	}
}
