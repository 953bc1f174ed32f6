package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"haazri/internal/device/models"
	"haazri/pkg/domain"
)

// PostgresStore persists device trust records. A unique index on
// (user_id, device_id) makes lazy registration race-safe: concurrent first
// sightings collapse onto one row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, userID domain.WorkerID, deviceID string) (*models.Trust, error) {
	query := `
		SELECT user_id, device_id, fp_os, fp_browser, fp_user_agent, fp_ip,
		       trust_score, blocked, last_seen, created_at
		FROM device_trust
		WHERE user_id = $1 AND device_id = $2
	`

	var (
		trust models.Trust
		uid   uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(userID), deviceID).Scan(
		&uid, &trust.DeviceID,
		&trust.Fingerprint.OS, &trust.Fingerprint.Browser,
		&trust.Fingerprint.UserAgent, &trust.Fingerprint.IP,
		&trust.TrustScore, &trust.Blocked, &trust.LastSeen, &trust.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find device trust: %w", err)
	}
	trust.UserID = domain.WorkerID(uid)
	return &trust, nil
}

func (s *PostgresStore) Create(ctx context.Context, trust *models.Trust) error {
	query := `
		INSERT INTO device_trust (user_id, device_id, fp_os, fp_browser, fp_user_agent, fp_ip,
		                          trust_score, blocked, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, device_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(trust.UserID), trust.DeviceID,
		trust.Fingerprint.OS, trust.Fingerprint.Browser,
		trust.Fingerprint.UserAgent, trust.Fingerprint.IP,
		trust.TrustScore, trust.Blocked, trust.LastSeen, trust.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create device trust: %w", err)
	}
	return nil
}

func (s *PostgresStore) TouchLastSeen(ctx context.Context, userID domain.WorkerID, deviceID string, at time.Time) error {
	query := `UPDATE device_trust SET last_seen = $3 WHERE user_id = $1 AND device_id = $2`
	_, err := s.db.ExecContext(ctx, query, uuid.UUID(userID), deviceID, at)
	if err != nil {
		return fmt.Errorf("touch device last_seen: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetBlocked(ctx context.Context, userID domain.WorkerID, deviceID string, blocked bool) error {
	query := `UPDATE device_trust SET blocked = $3 WHERE user_id = $1 AND device_id = $2`
	_, err := s.db.ExecContext(ctx, query, uuid.UUID(userID), deviceID, blocked)
	if err != nil {
		return fmt.Errorf("set device blocked: %w", err)
	}
	return nil
}
