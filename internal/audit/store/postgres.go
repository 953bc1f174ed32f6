package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"haazri/internal/audit/models"
	"haazri/pkg/domain"
	txcontext "haazri/pkg/tx"
)

// PostgresStore persists the audit chain. Seq is a bigserial so the chain
// has a storage-assigned total order independent of clock skew.
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

func (s *PostgresStore) Append(ctx context.Context, entry *models.Entry) error {
	var actorID *uuid.UUID
	if entry.ActorID != nil {
		u := uuid.UUID(*entry.ActorID)
		actorID = &u
	}

	query := `
		INSERT INTO audit_entries (action, actor_id, details, ip, prev_digest, digest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.Action,
		actorID,
		entry.Details,
		entry.IP,
		entry.PrevDigest,
		entry.Digest,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Tail(ctx context.Context) (*models.Entry, error) {
	query := `
		SELECT seq, action, actor_id, details, ip, prev_digest, digest, created_at
		FROM audit_entries
		ORDER BY seq DESC
		LIMIT 1
	`
	entry, err := scanEntry(s.execer(ctx).QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit tail: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Entry, error) {
	query := `
		SELECT seq, action, actor_id, details, ip, prev_digest, digest, created_at
		FROM audit_entries
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		entry   models.Entry
		actorID *uuid.UUID
	)
	err := row.Scan(&entry.Seq, &entry.Action, &actorID, &entry.Details,
		&entry.IP, &entry.PrevDigest, &entry.Digest, &entry.Timestamp)
	if err != nil {
		return nil, err
	}
	if actorID != nil {
		id := domain.WorkerID(*actorID)
		entry.ActorID = &id
	}
	return &entry, nil
}
