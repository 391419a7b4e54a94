package models

import (
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
)

const FeedPostCollection = "app.bsky.feed.post"

// NewPostRecord builds the app.bsky.feed.post record and stamps createdAt
// with the given time.
func NewPostRecord(text string, facets []*bsky.RichtextFacet, langs []string, createdAt time.Time) *bsky.FeedPost {
	return &bsky.FeedPost{
		LexiconTypeID: FeedPostCollection,
		Text:          text,
		Facets:        facets,
		Langs:         langs,
		CreatedAt:     FormatTimestamp(createdAt),
	}
}

// FormatTimestamp renders t the way the service expects datetimes: UTC,
// millisecond precision, Z suffix. Sub-millisecond remainders round up so
// the stamp is never earlier than t.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	if rem := time.Duration(t.Nanosecond()) % time.Millisecond; rem != 0 {
		t = t.Add(time.Millisecond - rem)
	}
	return t.Format("2006-01-02T15:04:05.000Z")
}

// PostResult is the service's acknowledgment of a created record.
type PostResult struct {
	Uri string `json:"uri"`
	Cid string `json:"cid"`
}
