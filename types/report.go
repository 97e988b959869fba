package types

import "time"

// Entities a report can point at.
const (
	TargetFanwork = "fanwork"
	TargetComment = "comment"
	TargetUser    = "user"
)

// Report review states.
const (
	ReportPending   = "pending"
	ReportReviewed  = "reviewed"
	ReportDismissed = "dismissed"
)

// Report is a user's complaint about a fanwork, a comment, or another
// user. Reports are created by any authenticated user and mutated only
// by moderators.
type Report struct {
	// ID is the unique identifier of the report.
	ID int `json:"id" db:"id"`

	// ReporterID identifies the user who filed the report.
	ReporterID int `json:"reporter_id" db:"reporter_id"`

	// ReporterUsername is the reporter's public name, joined in for
	// moderator list responses.
	ReporterUsername string `json:"reporter_username,omitempty" db:"reporter_username"`

	// TargetType names the kind of entity being reported:
	// "fanwork", "comment", or "user".
	TargetType string `json:"target_type" db:"target_type"`

	// TargetID is the identifier of the reported entity. The reference
	// is loose: the target may have been deleted since.
	TargetID int `json:"target_id" db:"target_id"`

	// Reason is the reporter's explanation.
	Reason string `json:"reason" db:"reason"`

	// Status is the review state: "pending", "reviewed", or "dismissed".
	Status string `json:"status" db:"status"`

	// ModerationAction describes what the reviewing moderator did,
	// free text (e.g. "hid fanwork", "banned user").
	ModerationAction string `json:"moderation_action,omitempty" db:"moderation_action"`

	// ReviewedBy identifies the moderator who closed the report.
	ReviewedBy *int `json:"reviewed_by,omitempty" db:"reviewed_by"`

	// ReviewedAt is the timestamp of the review.
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`

	// CreatedAt is the timestamp when the report was filed.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
