package domain

import "time"

// AggregateKind names the content aggregate owning a media reference.
type AggregateKind string

const (
	AggregateReview AggregateKind = "review"
	AggregateReport AggregateKind = "report"
)

// Media is a stored binary asset owned by the media service.
type Media struct {
	ID          int64
	OwnerEmail  string
	Name        string
	FileName    string
	ContentType string
	StorageKey  string
	SizeBytes   int64
	CreatedAt   time.Time
}

// MediaReference associates a content aggregate with a media id.
type MediaReference struct {
	Kind        AggregateKind
	AggregateID int64
	MediaID     int64
}
