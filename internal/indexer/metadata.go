package indexer

import (
	"github.com/fpang/ytindexer/internal/store"
)

// metadataCategory is the document category shown in the search index.
const metadataCategory = "YouTube video"

// MetadataDocument is the JSON sidecar written next to each audio file. Its
// layout follows the document-metadata format used by search indexers
// (reserved attributes prefixed with an underscore plus custom attributes).
type MetadataDocument struct {
	Attributes MetadataAttributes `json:"Attributes"`
	Title      string             `json:"Title"`
}

// MetadataAttributes are the searchable attributes of a MetadataDocument.
type MetadataAttributes struct {
	SourceURI      string `json:"_source_uri"`
	Category       string `json:"_category"`
	CreatedAt      string `json:"_created_at"`
	VideoLength    int    `json:"video_length"`
	VideoViewCount int    `json:"video_view_count"`
	Author         string `json:"ytauthor"`
	Source         string `json:"ytsource"`
}

// newMetadataDocument derives the metadata document from an index record.
func newMetadataDocument(rec *store.IndexRecord) MetadataDocument {
	return MetadataDocument{
		Attributes: MetadataAttributes{
			SourceURI:      rec.SourceURI,
			Category:       metadataCategory,
			CreatedAt:      rec.PublishDate,
			VideoLength:    rec.LengthSeconds,
			VideoViewCount: rec.ViewCount,
			Author:         rec.Author,
			Source:         rec.SourceURI,
		},
		Title: rec.Title,
	}
}
