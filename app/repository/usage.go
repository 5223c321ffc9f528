package repository

import (
	"context"
	"time"
)

// UsageRepository counts resources owned by other services in the shared
// schema. It never writes.
type UsageRepository struct {
	db DBTX
}

func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) CountPostsSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM posts WHERE author_id = ? AND created_at >= ? AND deleted_at IS NULL`
	return r.count(ctx, query, userID, since)
}

func (r *UsageRepository) CountClubsOwned(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM clubs WHERE owner_id = ? AND deleted_at IS NULL`
	return r.count(ctx, query, userID)
}

func (r *UsageRepository) CountPlayerProfiles(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM player_profiles WHERE user_id = ? AND deleted_at IS NULL`
	return r.count(ctx, query, userID)
}

func (r *UsageRepository) count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
