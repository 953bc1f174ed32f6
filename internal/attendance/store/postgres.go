package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"haazri/internal/attendance/models"
	"haazri/internal/geo"
	"haazri/pkg/domain"
	txcontext "haazri/pkg/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists attendance records. The same-day invariant is
// enforced by a unique index on (worker_id, job_id, day); Create translates
// that violation into ErrDuplicateDay so concurrent check-ins race safely.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	var lat, lng sql.NullFloat64
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: rec.Location.Lng, Valid: true}
	}

	query := `
		INSERT INTO attendance_records
			(id, worker_id, job_id, date, check_in_time, lat, lng, selfie_url,
			 status, verification_method, is_synced, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		uuid.UUID(rec.WorkerID),
		uuid.UUID(rec.JobID),
		rec.Date,
		rec.CheckInTime,
		lat, lng,
		rec.SelfieURL,
		string(rec.Status),
		string(rec.VerificationMethod),
		rec.IsSynced,
		rec.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateDay
		}
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindSameDay(ctx context.Context, workerID domain.WorkerID, jobID domain.JobID, dayStart time.Time) (*models.Record, error) {
	query := `
		SELECT id, worker_id, job_id, date, check_in_time, lat, lng, selfie_url,
		       status, verification_method, is_synced, created_at
		FROM attendance_records
		WHERE worker_id = $1 AND job_id = $2 AND date >= $3
		ORDER BY date ASC
		LIMIT 1
	`
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(workerID), uuid.UUID(jobID), dayStart))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find same-day attendance: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindNearTimestamp(ctx context.Context, workerID domain.WorkerID, ts time.Time, window time.Duration) (*models.Record, error) {
	query := `
		SELECT id, worker_id, job_id, date, check_in_time, lat, lng, selfie_url,
		       status, verification_method, is_synced, created_at
		FROM attendance_records
		WHERE worker_id = $1 AND date BETWEEN $2 AND $3
		LIMIT 1
	`
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(workerID), ts.Add(-window), ts.Add(window)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance near timestamp: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, workerID domain.WorkerID, jobID domain.JobID) (int, error) {
	query := `DELETE FROM attendance_records WHERE worker_id = $1 AND job_id = $2`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(workerID), uuid.UUID(jobID))
	if err != nil {
		return 0, fmt.Errorf("delete attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attendance rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) ListByWorker(ctx context.Context, workerID domain.WorkerID) ([]*models.Record, error) {
	query := `
		SELECT id, worker_id, job_id, date, check_in_time, lat, lng, selfie_url,
		       status, verification_method, is_synced, created_at
		FROM attendance_records
		WHERE worker_id = $1
		ORDER BY date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(workerID))
	if err != nil {
		return nil, fmt.Errorf("query attendance records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec            models.Record
		id, worker, jb uuid.UUID
		lat, lng       sql.NullFloat64
		status, method string
	)
	err := row.Scan(&id, &worker, &jb, &rec.Date, &rec.CheckInTime, &lat, &lng,
		&rec.SelfieURL, &status, &method, &rec.IsSynced, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.ID = domain.AttendanceID(id)
	rec.WorkerID = domain.WorkerID(worker)
	rec.JobID = domain.JobID(jb)
	rec.Status = models.Status(status)
	rec.VerificationMethod = models.Method(method)
	if lat.Valid && lng.Valid {
		rec.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &rec, nil
}
