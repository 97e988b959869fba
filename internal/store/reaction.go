package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fanvault/apiserver/types"
)

const (
	likesTable     = "likes"
	bookmarksTable = "bookmarks"
)

// ReactionRepository handles likes and bookmarks. Both tables share the same
// shape, keyed by (user_id, fanwork_id).
type ReactionRepository struct {
	db *sql.DB
}

func NewReactionRepository(db *sql.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// ToggleLike flips the caller's like on a fanwork and reports the resulting
// state.
func (r *ReactionRepository) ToggleLike(ctx context.Context, userID, fanworkID int) (bool, error) {
	return r.toggle(ctx, likesTable, userID, fanworkID)
}

// ToggleBookmark flips the caller's bookmark on a fanwork and reports the
// resulting state.
func (r *ReactionRepository) ToggleBookmark(ctx context.Context, userID, fanworkID int) (bool, error) {
	return r.toggle(ctx, bookmarksTable, userID, fanworkID)
}

// toggle deletes the row if present, otherwise inserts it. The composite
// primary key and ON CONFLICT DO NOTHING keep concurrent toggles at most one
// row without a transaction.
func (r *ReactionRepository) toggle(ctx context.Context, table string, userID, fanworkID int) (bool, error) {
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND fanwork_id = $2`, table)
	result, err := r.db.ExecContext(ctx, deleteQuery, userID, fanworkID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return false, nil
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (user_id, fanwork_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, table)
	if _, err := r.db.ExecContext(ctx, insertQuery, userID, fanworkID); err != nil {
		if isForeignKeyViolation(err) {
			return false, ErrNotFound
		}
		return false, err
	}
	return true, nil
}

// Counts aggregates engagement numbers for one fanwork plus the caller's own
// flags. userID 0 means anonymous.
func (r *ReactionRepository) Counts(ctx context.Context, fanworkID, userID int) (types.FanworkCounts, error) {
	const query = `
		SELECT
			EXISTS (SELECT 1 FROM fanworks WHERE id = $1),
			(SELECT COUNT(1) FROM likes WHERE fanwork_id = $1),
			(SELECT COUNT(1) FROM bookmarks WHERE fanwork_id = $1),
			(SELECT COUNT(1) FROM comments WHERE fanwork_id = $1),
			EXISTS (SELECT 1 FROM likes WHERE fanwork_id = $1 AND user_id = $2),
			EXISTS (SELECT 1 FROM bookmarks WHERE fanwork_id = $1 AND user_id = $2)`
	var exists bool
	var counts types.FanworkCounts
	if err := r.db.QueryRowContext(ctx, query, fanworkID, userID).Scan(
		&exists,
		&counts.Likes,
		&counts.Bookmarks,
		&counts.Comments,
		&counts.Liked,
		&counts.Bookmarked,
	); err != nil {
		return types.FanworkCounts{}, err
	}
	if !exists {
		return types.FanworkCounts{}, ErrNotFound
	}
	return counts, nil
}
