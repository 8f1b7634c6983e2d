package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bay-catalog/internal/domain"
)

// ErrNotFound indica que no existe el snapshot pedido (o que la tabla esta vacia).
var ErrNotFound = errors.New("snapshot not found")

// SnapshotRepository define el contrato de persistencia del historial de documentos.
// Las filas son inmutables: solo se insertan.
type SnapshotRepository interface {
	Append(ctx context.Context, payload []byte) (domain.Snapshot, error)
	Latest(ctx context.Context) (domain.Snapshot, error)
	GetByID(ctx context.Context, id int64) (domain.Snapshot, error)
	List(ctx context.Context, limit int) ([]domain.SnapshotInfo, error)
	Count(ctx context.Context) (int64, error)
}

// PgSnapshotRepository implementa SnapshotRepository usando pgxpool.
type PgSnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewPgSnapshotRepository(pool *pgxpool.Pool) *PgSnapshotRepository {
	return &PgSnapshotRepository{pool: pool}
}

func (r *PgSnapshotRepository) Append(ctx context.Context, payload []byte) (domain.Snapshot, error) {
	const query = `
		INSERT INTO catalog_snapshots (payload)
		VALUES ($1::jsonb)
		RETURNING id, created_at
	`
	snap := domain.Snapshot{Payload: append([]byte(nil), payload...)}
	err := r.pool.QueryRow(ctx, query, string(payload)).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

func (r *PgSnapshotRepository) Latest(ctx context.Context) (domain.Snapshot, error) {
	const query = `
		SELECT id, created_at, payload::text
		FROM catalog_snapshots
		ORDER BY id DESC
		LIMIT 1
	`
	return r.scanOne(ctx, query)
}

func (r *PgSnapshotRepository) GetByID(ctx context.Context, id int64) (domain.Snapshot, error) {
	const query = `
		SELECT id, created_at, payload::text
		FROM catalog_snapshots
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *PgSnapshotRepository) List(ctx context.Context, limit int) ([]domain.SnapshotInfo, error) {
	const query = `
		SELECT id, created_at, octet_length(payload::text)
		FROM catalog_snapshots
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	infos := make([]domain.SnapshotInfo, 0, limit)
	for rows.Next() {
		var info domain.SnapshotInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan snapshot info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return infos, nil
}

func (r *PgSnapshotRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM catalog_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func (r *PgSnapshotRepository) scanOne(ctx context.Context, query string, args ...any) (domain.Snapshot, error) {
	var (
		snap    domain.Snapshot
		payload string
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(&snap.ID, &snap.CreatedAt, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	snap.Payload = []byte(payload)
	return snap, nil
}
