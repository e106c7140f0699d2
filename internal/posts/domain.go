// Package posts serves the posts resource, the API surface guarded by the rbac package.
package posts

import "time"

// Post is a short text authored by a user.
type Post struct {
	ID       int64     `json:"id"`
	Text     string    `json:"text"`
	PubDate  time.Time `json:"pub_date"`
	AuthorID int64     `json:"author_id"`
}

// OwnerID reports the author for ownership checks.
func (p Post) OwnerID() int64 { return p.AuthorID }

// PostInput carries the writable fields of a post.
type PostInput struct {
	Text string `json:"text" validate:"required,max=10000"`
}

// Scope limits which posts a query may see. AuthorID 0 means every post.
type Scope struct {
	AuthorID int64
}
