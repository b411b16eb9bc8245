// Package store persists the per-video index records in DynamoDB.
//
// The table is keyed by the YouTube video identifier (attribute "ytkey").
// Records are created at most once: every write carries the condition
// attribute_not_exists(ytkey), so a second write for the same video is
// rejected by DynamoDB and reported to the caller as "already indexed"
// rather than as an error. Concurrent invocations racing on the same video
// rely on DynamoDB's conditional-write atomicity for this guarantee.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRecord is returned when a record cannot be turned into a
// DynamoDB item (missing key or marshal failure). The write is not attempted.
var ErrInvalidRecord = errors.New("invalid index record")

// RecordStore is the conditional-create capability used by the indexer.
type RecordStore interface {
	// CreateIfAbsent writes rec only if no record exists for rec.VideoID.
	// It returns created=false, err=nil when the record already exists.
	CreateIfAbsent(ctx context.Context, rec *IndexRecord) (created bool, err error)
}

// IndexRecord is one row of the index table.
type IndexRecord struct {
	VideoID       string `json:"ytkey" dynamodbav:"ytkey"`
	Downloaded    bool   `json:"downloaded" dynamodbav:"downloaded"`
	Author        string `json:"ytauthor" dynamodbav:"ytauthor"`
	LengthSeconds int    `json:"video_length" dynamodbav:"video_length"`
	PublishDate   string `json:"publish_date" dynamodbav:"publish_date"`
	ViewCount     int    `json:"view_count" dynamodbav:"view_count"`
	SourceURI     string `json:"source_uri" dynamodbav:"source_uri"`
	Title         string `json:"title" dynamodbav:"title"`
}

// FormatPublishDate renders a publish date the way it is stored in both the
// index record and the metadata document (RFC 3339, UTC).
func FormatPublishDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
