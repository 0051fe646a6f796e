package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppe-dashboard/internal/backend"
)

var ErrNotJSON = errors.New("snapshot body is not valid JSON")

type Snapshot struct {
	Key       string         `gorm:"primaryKey"`
	Method    string         `gorm:"not null"`
	Path      string         `gorm:"not null"`
	Body      datatypes.JSON `gorm:"type:jsonb;not null"`
	FetchedAt time.Time      `gorm:"not null"`
}

func (Snapshot) TableName() string {
	return "dashboard_snapshots"
}

// SnapshotRepository persists last good responses so a restarted dashboard
// can still show something while the backend is down.
type SnapshotRepository struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewSnapshotRepository(db *gorm.DB, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{db: db, ttl: ttl, now: time.Now}
}

func newSnapshot(key string, body []byte, now time.Time) (Snapshot, error) {
	if !json.Valid(body) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotJSON, key)
	}
	method, path, ok := strings.Cut(key, " ")
	if !ok {
		method, path = "GET", key
	}
	return Snapshot{
		Key:       key,
		Method:    method,
		Path:      path,
		Body:      datatypes.JSON(body),
		FetchedAt: now,
	}, nil
}

func (r *SnapshotRepository) Save(ctx context.Context, key string, body []byte) error {
	snap, err := newSnapshot(key, body, r.now())
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "fetched_at"}),
		}).
		Create(&snap).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var snap Snapshot
	query := r.db.WithContext(ctx).Where("key = ?", key)
	if r.ttl > 0 {
		query = query.Where("fetched_at >= ?", r.now().Add(-r.ttl))
	}
	err := query.First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return []byte(snap.Body), true, nil
}

// Prune removes snapshots older than the TTL.
func (r *SnapshotRepository) Prune(ctx context.Context) (int64, error) {
	if r.ttl <= 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("fetched_at < ?", r.now().Add(-r.ttl)).
		Delete(&Snapshot{})
	return result.RowsAffected, result.Error
}

var _ backend.Store = (*SnapshotRepository)(nil)
