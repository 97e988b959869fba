package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fanvault/apiserver/types"
	"github.com/lib/pq"
)

// FanworkFilter narrows List results. Zero values leave the corresponding
// dimension unfiltered.
type FanworkFilter struct {
	Type          string
	Rating        string
	Search        string
	Tags          []string
	AuthorID      int
	IncludeHidden bool
	Limit         int
	Offset        int
}

// FanworkRepository handles persistence for fanworks.
type FanworkRepository struct {
	db *sql.DB
}

func NewFanworkRepository(db *sql.DB) *FanworkRepository {
	return &FanworkRepository{db: db}
}

func (r *FanworkRepository) List(ctx context.Context, filter FanworkFilter) ([]types.Fanwork, int, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	conditions := make([]string, 0, 6)
	args := make([]any, 0, 8)
	if !filter.IncludeHidden {
		conditions = append(conditions, "f.hidden = FALSE")
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("f.type = $%d", len(args)))
	}
	if filter.Rating != "" {
		args = append(args, filter.Rating)
		conditions = append(conditions, fmt.Sprintf("f.rating = $%d", len(args)))
	}
	if filter.AuthorID > 0 {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("f.author_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(f.title ILIKE $%d OR f.description ILIKE $%d)", len(args), len(args)))
	}
	if len(filter.Tags) > 0 {
		// A work matches only when it carries every requested tag.
		args = append(args, pq.Array(filter.Tags), len(filter.Tags))
		conditions = append(conditions, fmt.Sprintf(`f.id IN (
			SELECT ft.fanwork_id
			FROM fanwork_tags ft
			JOIN tags t ON t.id = ft.tag_id
			WHERE t.name = ANY($%d)
			GROUP BY ft.fanwork_id
			HAVING COUNT(DISTINCT t.name) = $%d)`, len(args)-1, len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(1) FROM fanworks f %s`, where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT f.id, f.author_id, u.username, f.type, f.rating, f.title, f.description,
			f.content, f.content_url, f.object_key, f.import_source, f.import_url,
			f.hidden, f.moderation_reason, f.created_at, f.updated_at
		FROM fanworks f
		JOIN users u ON u.id = f.author_id
		%s
		ORDER BY f.created_at DESC, f.id DESC
		OFFSET $%d LIMIT $%d`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Offset, filter.Limit)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	fanworks := make([]types.Fanwork, 0, filter.Limit)
	for rows.Next() {
		var fanwork types.Fanwork
		if err := rows.Scan(
			&fanwork.ID,
			&fanwork.AuthorID,
			&fanwork.AuthorUsername,
			&fanwork.Type,
			&fanwork.Rating,
			&fanwork.Title,
			&fanwork.Description,
			&fanwork.Content,
			&fanwork.ContentURL,
			&fanwork.ObjectKey,
			&fanwork.ImportSource,
			&fanwork.ImportURL,
			&fanwork.Hidden,
			&fanwork.ModerationReason,
			&fanwork.CreatedAt,
			&fanwork.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		fanworks = append(fanworks, fanwork)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return fanworks, total, nil
}

func (r *FanworkRepository) Get(ctx context.Context, id int) (types.Fanwork, error) {
	const query = `
		SELECT f.id, f.author_id, u.username, f.type, f.rating, f.title, f.description,
			f.content, f.content_url, f.object_key, f.import_source, f.import_url,
			f.hidden, f.moderation_reason, f.created_at, f.updated_at
		FROM fanworks f
		JOIN users u ON u.id = f.author_id
		WHERE f.id = $1`
	var fanwork types.Fanwork
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&fanwork.ID,
		&fanwork.AuthorID,
		&fanwork.AuthorUsername,
		&fanwork.Type,
		&fanwork.Rating,
		&fanwork.Title,
		&fanwork.Description,
		&fanwork.Content,
		&fanwork.ContentURL,
		&fanwork.ObjectKey,
		&fanwork.ImportSource,
		&fanwork.ImportURL,
		&fanwork.Hidden,
		&fanwork.ModerationReason,
		&fanwork.CreatedAt,
		&fanwork.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Fanwork{}, ErrNotFound
		}
		return types.Fanwork{}, err
	}
	return fanwork, nil
}

func (r *FanworkRepository) Exists(ctx context.Context, id int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM fanworks WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *FanworkRepository) Create(ctx context.Context, fanwork types.Fanwork) (types.Fanwork, error) {
	now := time.Now()
	fanwork.CreatedAt = now
	fanwork.UpdatedAt = now

	const query = `
		INSERT INTO fanworks (author_id, type, rating, title, description, content, content_url,
			object_key, import_source, import_url, hidden, moderation_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		fanwork.AuthorID,
		fanwork.Type,
		fanwork.Rating,
		fanwork.Title,
		fanwork.Description,
		fanwork.Content,
		fanwork.ContentURL,
		fanwork.ObjectKey,
		fanwork.ImportSource,
		fanwork.ImportURL,
		fanwork.Hidden,
		fanwork.ModerationReason,
		fanwork.CreatedAt,
		fanwork.UpdatedAt,
	).Scan(&fanwork.ID); err != nil {
		if isForeignKeyViolation(err) {
			return types.Fanwork{}, ErrNotFound
		}
		return types.Fanwork{}, err
	}
	return fanwork, nil
}

func (r *FanworkRepository) SetHidden(ctx context.Context, id int, hidden bool, reason string) error {
	const query = `
		UPDATE fanworks
		SET hidden = $1,
			moderation_reason = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, hidden, reason, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row and reports the stored media key so the caller can
// clean up the object afterwards.
func (r *FanworkRepository) Delete(ctx context.Context, id int) (string, error) {
	const query = `DELETE FROM fanworks WHERE id = $1 RETURNING object_key`
	var objectKey string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&objectKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return objectKey, nil
}
