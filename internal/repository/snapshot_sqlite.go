package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bay-catalog/internal/domain"
)

// SQLiteSnapshotRepository implementa SnapshotRepository sobre database/sql (driver modernc sqlite).
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

func (r *SQLiteSnapshotRepository) Append(ctx context.Context, payload []byte) (domain.Snapshot, error) {
	const query = `INSERT INTO catalog_snapshots (created_at, payload) VALUES (?, ?) RETURNING id`
	now := time.Now().UTC()
	snap := domain.Snapshot{
		CreatedAt: now,
		Payload:   append([]byte(nil), payload...),
	}
	err := r.db.QueryRowContext(ctx, query, now.Format(time.RFC3339Nano), string(payload)).Scan(&snap.ID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

func (r *SQLiteSnapshotRepository) Latest(ctx context.Context) (domain.Snapshot, error) {
	const query = `SELECT id, created_at, payload FROM catalog_snapshots ORDER BY id DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

func (r *SQLiteSnapshotRepository) GetByID(ctx context.Context, id int64) (domain.Snapshot, error) {
	const query = `SELECT id, created_at, payload FROM catalog_snapshots WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteSnapshotRepository) List(ctx context.Context, limit int) ([]domain.SnapshotInfo, error) {
	const query = `SELECT id, created_at, length(CAST(payload AS BLOB)) FROM catalog_snapshots ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	infos := make([]domain.SnapshotInfo, 0, limit)
	for rows.Next() {
		var (
			info      domain.SnapshotInfo
			createdAt string
		)
		if err := rows.Scan(&info.ID, &createdAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan snapshot info: %w", err)
		}
		info.CreatedAt = parseTimestamp(createdAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return infos, nil
}

func (r *SQLiteSnapshotRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM catalog_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func (r *SQLiteSnapshotRepository) scanOne(row *sql.Row) (domain.Snapshot, error) {
	var (
		snap      domain.Snapshot
		createdAt string
		payload   string
	)
	err := row.Scan(&snap.ID, &createdAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	snap.CreatedAt = parseTimestamp(createdAt)
	snap.Payload = []byte(payload)
	return snap, nil
}

// parseTimestamp acepta RFC3339 y el formato de CURRENT_TIMESTAMP de SQLite.
func parseTimestamp(value string) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}
