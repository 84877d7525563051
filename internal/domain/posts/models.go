package posts

import (
	"time"

	"github.com/google/uuid"
)

// PostType distinguishes physical items (picked up and returned) from
// services (performed, nothing to hand over).
type PostType string

const (
	PostTypeItem    PostType = "item"
	PostTypeService PostType = "service"
)

// Post is a borrow/lend request that users bid on. The budget is the
// ceiling a bid must stay strictly below.
type Post struct {
	ID        uuid.UUID
	UserID    uuid.UUID // post owner
	Title     string
	Type      PostType
	Budget    int64 // whole currency units
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOwnedBy reports whether the given user owns the post.
func (p *Post) IsOwnedBy(userID uuid.UUID) bool {
	return p.UserID == userID
}
