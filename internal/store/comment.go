package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fanvault/apiserver/types"
)

// CommentRepository handles persistence for fanwork comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) ListByFanwork(ctx context.Context, fanworkID int) ([]types.Comment, error) {
	const query = `
		SELECT c.id, c.fanwork_id, c.user_id, u.username, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.fanwork_id = $1
		ORDER BY c.created_at, c.id`
	rows, err := r.db.QueryContext(ctx, query, fanworkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	for rows.Next() {
		var comment types.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.FanworkID,
			&comment.UserID,
			&comment.Username,
			&comment.Content,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	comment.CreatedAt = time.Now()

	const query = `
		INSERT INTO comments (fanwork_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		comment.FanworkID,
		comment.UserID,
		comment.Content,
		comment.CreatedAt,
	).Scan(&comment.ID); err != nil {
		if isForeignKeyViolation(err) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}
