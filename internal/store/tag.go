package store

import (
	"context"
	"database/sql"

	"github.com/fanvault/apiserver/types"
	"github.com/lib/pq"
)

// TagRepository handles persistence for tags and their fanwork links.
type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) List(ctx context.Context) ([]types.Tag, error) {
	const query = `
		SELECT t.id, t.name, COUNT(ft.fanwork_id)
		FROM tags t
		LEFT JOIN fanwork_tags ft ON ft.tag_id = t.id
		GROUP BY t.id, t.name
		ORDER BY COUNT(ft.fanwork_id) DESC, t.name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]types.Tag, 0)
	for rows.Next() {
		var tag types.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Count); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tags, nil
}

// Attach upserts each named tag and links it to the fanwork. Existing links
// are left in place.
func (r *TagRepository) Attach(ctx context.Context, fanworkID int, names []string) error {
	const upsertQuery = `
		INSERT INTO tags (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
	const linkQuery = `
		INSERT INTO fanwork_tags (fanwork_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	for _, name := range names {
		var tagID int
		if err := r.db.QueryRowContext(ctx, upsertQuery, name).Scan(&tagID); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, linkQuery, fanworkID, tagID); err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return err
		}
	}
	return nil
}

func (r *TagRepository) ListByFanwork(ctx context.Context, fanworkID int) ([]string, error) {
	const query = `
		SELECT t.name
		FROM tags t
		JOIN fanwork_tags ft ON ft.tag_id = t.id
		WHERE ft.fanwork_id = $1
		ORDER BY t.name`
	rows, err := r.db.QueryContext(ctx, query, fanworkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return names, nil
}

// NamesByFanworkIDs returns the tag names for each listed fanwork in one
// round trip, keyed by fanwork id.
func (r *TagRepository) NamesByFanworkIDs(ctx context.Context, ids []int) (map[int][]string, error) {
	names := make(map[int][]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	const query = `
		SELECT ft.fanwork_id, t.name
		FROM fanwork_tags ft
		JOIN tags t ON t.id = ft.tag_id
		WHERE ft.fanwork_id = ANY($1)
		ORDER BY t.name`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var fanworkID int
		var name string
		if err := rows.Scan(&fanworkID, &name); err != nil {
			return nil, err
		}
		names[fanworkID] = append(names[fanworkID], name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return names, nil
}
