package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ageshift/internal/domain"
)

type HistoryRepository interface {
	Add(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error)
	List(ctx context.Context) ([]domain.HistoryEntry, error)
}

// historyRepository keeps completed transformations in process memory,
// newest first, bounded by capacity. Nothing is persisted.
type historyRepository struct {
	mu       sync.RWMutex
	capacity int
	entries  []domain.HistoryEntry
	log      *zap.Logger
}

func NewHistoryRepository(capacity int, log *zap.Logger) HistoryRepository {
	return &historyRepository{
		capacity: capacity,
		entries:  make([]domain.HistoryEntry, 0, capacity),
		log:      log,
	}
}

func (r *historyRepository) Add(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.HistoryEntry{}, err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append([]domain.HistoryEntry{entry}, r.entries...)
	if len(r.entries) > r.capacity {
		dropped := len(r.entries) - r.capacity
		r.entries = r.entries[:r.capacity]
		r.log.Debug("History at capacity, dropped oldest entries",
			zap.Int("dropped", dropped),
			zap.Int("capacity", r.capacity))
	}

	r.log.Info("History entry added",
		zap.String("id", entry.ID),
		zap.Int("total", len(r.entries)))

	return entry, nil
}

func (r *historyRepository) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.HistoryEntry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}
