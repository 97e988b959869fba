package types

// Tag is a free-form label attached to fanworks for categorization and
// filtering. Names are normalized to lowercase and unique.
type Tag struct {
	// ID is the unique identifier of the tag.
	ID int `json:"id" db:"id"`

	// Name is the normalized tag text.
	Name string `json:"name" db:"name"`

	// Count is the number of fanworks carrying the tag, filled by
	// catalog queries.
	Count int `json:"count" db:"count"`
}
