package model

import "strings"

// SourceUsers is the source tag sent by the form on a user's private page.
// Reviews submitted with this tag are private to their owner.
const SourceUsers = "users"

const (
	MinRating = 1
	MaxRating = 5
)

// Item is a single book review.
//
// UserID and IsPrivate are fixed when the review is created; updates only
// touch Title, Author, Genre, Review and Rating.
type Item struct {
	ID        int64  `json:"id"         db:"id"`
	Title     string `json:"title"      db:"title"`
	Author    string `json:"author"     db:"author"`
	Genre     string `json:"genre"      db:"genre"`
	Rating    int    `json:"rating"     db:"rating"`
	Review    string `json:"review"     db:"review"`
	ImagePath string `json:"image_path" db:"image_path"` // "/uploads/<name>" or empty
	UserID    int64  `json:"user_id"    db:"user_id"`
	IsPrivate bool   `json:"is_private" db:"is_private"`
}

// IsPrivateSource derives the visibility flag from a submission's source tag.
func IsPrivateSource(source string) bool {
	return strings.TrimSpace(source) == SourceUsers
}

// Stars returns a slice with one entry per possible star, used by templates
// to draw filled and empty stars.
func (i *Item) Stars() []bool {
	stars := make([]bool, MaxRating)
	for n := range stars {
		stars[n] = n < i.Rating
	}
	return stars
}

// SortKey selects the ordering of the public catalog.
type SortKey string

const (
	SortNone     SortKey = ""
	SortTitleAsc SortKey = "Name (A-Z)"
	SortRating   SortKey = "Rating ★"
)

// ParseSortKey maps the submitted sort label to a SortKey. Unknown labels
// fall back to SortNone, the unsorted listing.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortTitleAsc:
		return SortTitleAsc
	case SortRating:
		return SortRating
	}
	return SortNone
}
