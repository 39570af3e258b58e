// Package jobpostgres keeps watermark jobs in PostgreSQL
package jobpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, j *model.Job) error {
	query := `INSERT INTO jobs (job_uid, source_key, wm_key, result_key, kind, wm_text, color, opacity, font, anchor, status, err_msg, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := p.DB.Master.ExecContext(ctx, query,
		j.UID, j.SourceKey, j.WatermarkKey, j.ResultKey,
		j.Kind, j.Text, j.Color, j.Opacity, j.Font, j.Anchor,
		j.Status, j.ErrMsg, j.CreatedAt, j.UpdatedAt)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT job_uid, source_key, wm_key, result_key, kind, wm_text, color, opacity, font, anchor, status, err_msg, created_at, updated_at
	FROM jobs
	WHERE job_uid = $1`
	var job model.Job

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&job.UID,
		&job.SourceKey,
		&job.WatermarkKey,
		&job.ResultKey,
		&job.Kind,
		&job.Text,
		&job.Color,
		&job.Opacity,
		&job.Font,
		&job.Anchor,
		&job.Status,
		&job.ErrMsg,
		&job.CreatedAt,
		&job.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrImageNotFound
		default:
			return nil, err // 500
		}
	}
	return &job, nil
}

// GetList expects req to be validated already: Sort and Order go into the query as is.
func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
	query := fmt.Sprintf(`SELECT job_uid, kind, wm_text, color, opacity, font, anchor, status, err_msg, created_at, updated_at
	FROM jobs
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error while closing *sql.Rows after scanning")
		}
	}()

	jobs := make([]model.Job, 0, req.Limit)
	for rows.Next() {
		var job model.Job
		if err := rows.Scan(&job.UID,
			&job.Kind,
			&job.Text,
			&job.Color,
			&job.Opacity,
			&job.Font,
			&job.Anchor,
			&job.Status,
			&job.ErrMsg,
			&job.CreatedAt,
			&job.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return jobs, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM jobs
	WHERE job_uid = $1`

	res, err := p.DB.Master.ExecContext(ctx, query, id)
	if err != nil {
		return err // 500
	}
	return affectedOrNotFound(res)
}

func (p PostgresRepo) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	query := `UPDATE jobs SET status = $1, updated_at = now() WHERE job_uid = $2`

	res, err := p.DB.Master.ExecContext(ctx, query, newStat, id)
	if err != nil {
		return err // 500
	}
	return affectedOrNotFound(res)
}

func (p PostgresRepo) SaveResult(ctx context.Context, input *model.Job) error {
	query := `UPDATE jobs SET status = $1, updated_at = $2, result_key = $3, err_msg = $4 WHERE job_uid = $5`

	res, err := p.DB.Master.ExecContext(ctx, query, input.Status, input.UpdatedAt, input.ResultKey, input.ErrMsg, input.UID)
	if err != nil {
		return err // 500
	}
	return affectedOrNotFound(res)
}

// FetchOrphans returns jobs which are stuck in created/in_progress for more than 10 minutes
func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT job_uid
	FROM jobs
	WHERE status IN ($1, $2)
	AND updated_at < now() - interval '10 minutes'
	LIMIT $3`

	rows, err := p.DB.QueryContext(ctx, query, model.StatusCreated, model.StatusInProgress, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error while closing *sql.Rows after scanning")
		}
	}()

	orphans := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		orphans = append(orphans, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrImageNotFound // 404
	}
	return nil
}
