package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"haazri/internal/geo"
	"haazri/internal/job/models"
	"haazri/pkg/domain"
)

// PostgresStore reads jobs from the shared marketplace schema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, job *models.Job) error {
	var lat, lng sql.NullFloat64
	if job.Site != nil {
		lat = sql.NullFloat64{Float64: job.Site.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: job.Site.Lng, Valid: true}
	}

	query := `
		INSERT INTO jobs (id, title, site_lat, site_lng, fence_radius_km)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			site_lat = EXCLUDED.site_lat,
			site_lng = EXCLUDED.site_lng,
			fence_radius_km = EXCLUDED.fence_radius_km
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(job.ID), job.Title, lat, lng, job.FenceRadiusKm)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.JobID) (*models.Job, error) {
	query := `
		SELECT id, title, site_lat, site_lng, fence_radius_km
		FROM jobs
		WHERE id = $1
	`

	var (
		jobID    uuid.UUID
		job      models.Job
		lat, lng sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(id)).
		Scan(&jobID, &job.Title, &lat, &lng, &job.FenceRadiusKm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}

	job.ID = domain.JobID(jobID)
	if lat.Valid && lng.Valid {
		job.Site = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &job, nil
}
