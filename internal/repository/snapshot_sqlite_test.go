package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bay-catalog/internal/db"
)

func newSQLiteRepo(t *testing.T) *SQLiteSnapshotRepository {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSQLiteSnapshotRepository(conn)
}

func TestSQLiteSnapshotRepository_LatestEmpty(t *testing.T) {
	repo := newSQLiteRepo(t)

	_, err := repo.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteSnapshotRepository_AppendAndLatest(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	first, err := repo.Append(ctx, []byte(`{"a":1}`))
	require.NoError(t, err)
	second, err := repo.Append(ctx, []byte(`{"b":2}`))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.JSONEq(t, `{"b":2}`, string(latest.Payload))
	assert.False(t, latest.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got.Payload))

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestSQLiteSnapshotRepository_ListNewestFirst(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	for _, payload := range []string{`{"v":1}`, `{"v":22}`, `{"v":333}`} {
		_, err := repo.Append(ctx, []byte(payload))
		require.NoError(t, err)
	}

	infos, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Greater(t, infos[0].ID, infos[1].ID)
	assert.Equal(t, len(`{"v":333}`), infos[0].Size)
	assert.Equal(t, len(`{"v":22}`), infos[1].Size)
}

func TestSQLiteSnapshotRepository_ConcurrentAppendsOnFile(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "bay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	repo := NewSQLiteSnapshotRepository(conn)

	const writers = 48
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.Append(ctx, []byte(fmt.Sprintf(`{"writer":%d}`, i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, writers, n)
}

func TestSQLiteSnapshotRepository_KeepsPayloadBytes(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	payload := `{"id":12345678901234567890,"n":9007199254740993}`

	_, err := repo.Append(ctx, []byte(payload))
	require.NoError(t, err)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, string(latest.Payload))
}

func TestSQLiteSnapshotRepository_StorageErrors(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	repo := NewSQLiteSnapshotRepository(conn)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery("INSERT INTO catalog_snapshots").
		WithArgs(sqlmock.AnyArg(), `{"x":1}`).
		WillReturnError(boom)
	_, err = repo.Append(context.Background(), []byte(`{"x":1}`))
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT id, created_at, payload FROM catalog_snapshots ORDER BY id DESC LIMIT 1").
		WillReturnError(boom)
	_, err = repo.Latest(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteSnapshotRepository_ParsesLegacyTimestamp(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	repo := NewSQLiteSnapshotRepository(conn)

	mock.ExpectQuery("SELECT id, created_at, payload FROM catalog_snapshots WHERE id = \\?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "payload"}).
			AddRow(int64(7), "2024-05-01 10:20:30", `{"Região E":{}}`))

	snap, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.EqualValues(t, 7, snap.ID)
	assert.Equal(t, 2024, snap.CreatedAt.Year())
	assert.JSONEq(t, `{"Região E":{}}`, string(snap.Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}
