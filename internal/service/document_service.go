package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	"go.uber.org/zap"

	"bay-catalog/internal/domain"
	"bay-catalog/internal/repository"
)

var (
	ErrInvalidFormat    = errors.New("invalid format")
	ErrStorageFailure   = errors.New("storage failure")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// DocumentService mantiene el documento compartido como un log append-only de snapshots.
type DocumentService struct {
	logger    *zap.Logger
	snapshots repository.SnapshotRepository
	seed      func() domain.Document
}

func NewDocumentService(logger *zap.Logger, snapshots repository.SnapshotRepository) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		logger:    logger,
		snapshots: snapshots,
		seed:      domain.SeedDocument,
	}
}

// GetCurrent devuelve el payload del snapshot mas reciente tal como se guardó,
// o el documento semilla si no hay filas.
func (s *DocumentService) GetCurrent(ctx context.Context) (json.RawMessage, error) {
	snap, err := s.snapshots.Latest(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		seed, err := json.Marshal(s.seed())
		if err != nil {
			return nil, fmt.Errorf("encode seed document: %w", err)
		}
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if !json.Valid(snap.Payload) {
		return nil, fmt.Errorf("%w: snapshot %d holds invalid JSON", ErrStorageFailure, snap.ID)
	}
	return snap.Payload, nil
}

// Replace guarda un documento completo nuevo. Solo acepta objetos JSON en la raíz.
func (s *DocumentService) Replace(ctx context.Context, raw []byte) (domain.Snapshot, error) {
	payload, err := normalizeObject(raw)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := s.snapshots.Append(ctx, payload)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	s.logger.Info("document replaced", zap.Int64("snapshot_id", snap.ID), zap.Int("size", len(payload)))
	return snap, nil
}

// History lista los snapshots del mas nuevo al mas viejo.
func (s *DocumentService) History(ctx context.Context, limit int) ([]domain.SnapshotInfo, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	infos, err := s.snapshots.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return infos, nil
}

func (s *DocumentService) Snapshot(ctx context.Context, id int64) (domain.Snapshot, error) {
	snap, err := s.snapshots.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return snap, nil
}

// Diff calcula el merge patch (RFC 7386) que lleva el snapshot id al documento actual.
func (s *DocumentService) Diff(ctx context.Context, id int64) (json.RawMessage, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	current, err := s.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(snap.Payload, current)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}
	return patch, nil
}

// Count devuelve la cantidad de snapshots guardados.
func (s *DocumentService) Count(ctx context.Context) (int64, error) {
	n, err := s.snapshots.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return n, nil
}

func normalizeObject(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidFormat
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, ErrInvalidFormat
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, ErrInvalidFormat
	}
	return buf.Bytes(), nil
}
