package types

import "time"

// Kinds of fan work the archive accepts.
const (
	TypeArtwork    = "artwork"
	TypeFanfiction = "fanfiction"
	TypeComic      = "comic"
)

// Content ratings, from most to least broadly suitable.
const (
	RatingAllAges  = "all-ages"
	RatingTeen     = "teen"
	RatingMature   = "mature"
	RatingExplicit = "explicit"
)

// ValidType reports whether t names a known kind of fanwork.
func ValidType(t string) bool {
	switch t {
	case TypeArtwork, TypeFanfiction, TypeComic:
		return true
	}
	return false
}

// ValidRating reports whether r names a known content rating.
func ValidRating(r string) bool {
	switch r {
	case RatingAllAges, RatingTeen, RatingMature, RatingExplicit:
		return true
	}
	return false
}

// RestrictedRating reports whether a rating requires the uploader to have
// verified their age.
func RestrictedRating(rating string) bool {
	return rating == RatingMature || rating == RatingExplicit
}

// Fanwork represents a user-submitted creative work: a piece of artwork,
// a fanfiction, or a comic. Artwork and comics reference an uploaded media
// object; fanfiction carries its text in Content.
type Fanwork struct {
	// ID is the unique identifier of the fanwork.
	ID int `json:"id" db:"id"`

	// AuthorID identifies the user who submitted the work.
	AuthorID int `json:"author_id" db:"author_id"`

	// AuthorUsername is the submitting user's public name, joined in for
	// list and detail responses.
	AuthorUsername string `json:"author_username,omitempty" db:"author_username"`

	// Type is the kind of work: "artwork", "fanfiction", or "comic".
	Type string `json:"type" db:"type"`

	// Rating is the content rating: "all-ages", "teen", "mature",
	// or "explicit".
	Rating string `json:"rating" db:"rating"`

	// Title is the human-readable name of the work.
	Title string `json:"title" db:"title"`

	// Description is the author's summary or notes, plain text.
	Description string `json:"description" db:"description"`

	// Content holds the body of a fanfiction as markdown. Empty for
	// artwork and comics.
	Content string `json:"content,omitempty" db:"content"`

	// ContentHTML is the sanitized HTML rendering of Content, populated
	// on detail responses for fanfiction. Never stored.
	ContentHTML string `json:"content_html,omitempty" db:"-"`

	// ContentURL is the public URL of the uploaded media object for
	// artwork and comics.
	ContentURL string `json:"content_url,omitempty" db:"content_url"`

	// ObjectKey is the media object's key in the storage backend.
	// Internal bookkeeping, never exposed.
	ObjectKey string `json:"-" db:"object_key"`

	// ImportSource names the external site a work was imported from
	// (currently only "ao3"). Empty for direct uploads.
	ImportSource string `json:"import_source,omitempty" db:"import_source"`

	// ImportURL is the canonical URL of the imported work on the
	// external site.
	ImportURL string `json:"import_url,omitempty" db:"import_url"`

	// Hidden marks a work removed from public listings by a moderator.
	Hidden bool `json:"hidden" db:"hidden"`

	// ModerationReason records why a moderator hid the work.
	ModerationReason string `json:"moderation_reason,omitempty" db:"moderation_reason"`

	// Tags are the normalized tag names attached to the work.
	Tags []string `json:"tags" db:"-"`

	// CreatedAt is the timestamp when the work was submitted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the work.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FanworkCounts aggregates the engagement numbers for a single fanwork,
// plus the requesting user's own state when the request is authenticated.
type FanworkCounts struct {
	Likes      int  `json:"likes"`
	Bookmarks  int  `json:"bookmarks"`
	Comments   int  `json:"comments"`
	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`
}
