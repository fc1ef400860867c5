package model

import "time"

// Post is the slice of the content domain this service needs to know about.
// The full post/comment/like feature set lives in the content service; the
// identity core only touches authored content in two places: the authored
// summary on profile fetch, and the cascade when an account is deleted.
type Post struct {
	ID        string    `json:"id"        db:"id"`
	AuthorID  string    `json:"authorId"  db:"author_id"`
	Title     string    `json:"title"     db:"title"`
	Body      string    `json:"body"      db:"body"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// AuthoredSummary counts what a user has contributed across the content
// domain. Returned alongside the profile on /profile.
type AuthoredSummary struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
	Likes    int `json:"likes"`
}
