package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"haazri/internal/fraud/models"
	"haazri/internal/geo"
	"haazri/pkg/domain"
	txcontext "haazri/pkg/tx"
)

// PostgresStore persists fraud signals in PostgreSQL. Writes join a
// caller-scoped transaction when one is present in the context.
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

func (s *PostgresStore) Append(ctx context.Context, signal *models.Signal) error {
	var lat, lng sql.NullFloat64
	if signal.Location != nil {
		lat = sql.NullFloat64{Float64: signal.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: signal.Location.Lng, Valid: true}
	}

	metadata, err := json.Marshal(signal.Metadata)
	if err != nil {
		return fmt.Errorf("marshal signal metadata: %w", err)
	}

	query := `
		INSERT INTO fraud_signals (id, user_id, action, risk_score, reasons, lat, lng, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(signal.ID),
		uuid.UUID(signal.UserID),
		string(signal.Action),
		signal.RiskScore,
		pq.Array(signal.Reasons),
		lat,
		lng,
		metadata,
		signal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fraud signal: %w", err)
	}
	return nil
}

// LatestCheckIn fetches the single most recent check_in signal carrying a
// coordinate. Bounded query (ORDER BY + LIMIT 1 over the per-user index),
// never a history scan.
func (s *PostgresStore) LatestCheckIn(ctx context.Context, userID domain.WorkerID) (*models.Signal, error) {
	query := `
		SELECT id, user_id, action, risk_score, reasons, lat, lng, metadata, created_at
		FROM fraud_signals
		WHERE user_id = $1 AND action = 'check_in' AND lat IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	signal, err := s.scanSignal(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(userID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest check_in signal: %w", err)
	}
	return signal, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID domain.WorkerID) ([]*models.Signal, error) {
	query := `
		SELECT id, user_id, action, risk_score, reasons, lat, lng, metadata, created_at
		FROM fraud_signals
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query fraud signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.Signal
	for rows.Next() {
		signal, err := s.scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fraud signal: %w", err)
		}
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fraud signals: %w", err)
	}
	return signals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanSignal(row rowScanner) (*models.Signal, error) {
	var (
		signal   models.Signal
		id       uuid.UUID
		userID   uuid.UUID
		action   string
		reasons  pq.StringArray
		lat, lng sql.NullFloat64
		metadata []byte
	)

	err := row.Scan(&id, &userID, &action, &signal.RiskScore, &reasons, &lat, &lng, &metadata, &signal.CreatedAt)
	if err != nil {
		return nil, err
	}

	signal.ID = domain.SignalID(id)
	signal.UserID = domain.WorkerID(userID)
	signal.Action = models.Action(action)
	signal.Reasons = []string(reasons)
	if lat.Valid && lng.Valid {
		signal.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &signal.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal signal metadata: %w", err)
		}
	}
	return &signal, nil
}
