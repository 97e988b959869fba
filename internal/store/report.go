package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fanvault/apiserver/types"
)

// ReportRepository handles persistence for content reports.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report types.Report) (types.Report, error) {
	report.CreatedAt = time.Now()

	const query = `
		INSERT INTO reports (reporter_id, target_type, target_id, reason, status, moderation_action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		report.ReporterID,
		report.TargetType,
		report.TargetID,
		report.Reason,
		report.Status,
		report.ModerationAction,
		report.CreatedAt,
	).Scan(&report.ID); err != nil {
		return types.Report{}, err
	}
	return report, nil
}

func (r *ReportRepository) Get(ctx context.Context, id int) (types.Report, error) {
	const query = `
		SELECT r.id, r.reporter_id, u.username, r.target_type, r.target_id, r.reason,
			r.status, r.moderation_action, r.reviewed_by, r.reviewed_at, r.created_at
		FROM reports r
		JOIN users u ON u.id = r.reporter_id
		WHERE r.id = $1`
	var report types.Report
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&report.ID,
		&report.ReporterID,
		&report.ReporterUsername,
		&report.TargetType,
		&report.TargetID,
		&report.Reason,
		&report.Status,
		&report.ModerationAction,
		&report.ReviewedBy,
		&report.ReviewedAt,
		&report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Report{}, ErrNotFound
		}
		return types.Report{}, err
	}
	return report, nil
}

// List returns reports newest first, optionally narrowed to one status.
func (r *ReportRepository) List(ctx context.Context, status string) ([]types.Report, error) {
	const query = `
		SELECT r.id, r.reporter_id, u.username, r.target_type, r.target_id, r.reason,
			r.status, r.moderation_action, r.reviewed_by, r.reviewed_at, r.created_at
		FROM reports r
		JOIN users u ON u.id = r.reporter_id
		WHERE $1 = '' OR r.status = $1
		ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]types.Report, 0)
	for rows.Next() {
		var report types.Report
		if err := rows.Scan(
			&report.ID,
			&report.ReporterID,
			&report.ReporterUsername,
			&report.TargetType,
			&report.TargetID,
			&report.Reason,
			&report.Status,
			&report.ModerationAction,
			&report.ReviewedBy,
			&report.ReviewedAt,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reports, nil
}

// Review stamps the outcome of a moderator pass over one report.
func (r *ReportRepository) Review(ctx context.Context, id int, status, action string, reviewerID int) (types.Report, error) {
	const query = `
		UPDATE reports
		SET status = $1,
			moderation_action = $2,
			reviewed_by = $3,
			reviewed_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, status, action, reviewerID, time.Now(), id)
	if err != nil {
		return types.Report{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Report{}, err
	}
	if affected == 0 {
		return types.Report{}, ErrNotFound
	}
	return r.Get(ctx, id)
}
