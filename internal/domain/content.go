package domain

import "time"

// Review is an administrator-authored review of a reported site.
type Review struct {
	ID          int64
	AuthorEmail string
	Title       string
	Body        string
	CreatedAt   time.Time
}

// Report is a user-submitted report.
type Report struct {
	ID          int64
	WriterEmail string
	URL         string
	Description string
	CreatedAt   time.Time
}
