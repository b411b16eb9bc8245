// Package indexer downloads the audio of YouTube playlist entries, uploads it
// to S3, and records each video in the index table.
//
// A Worker handles one video: download the audio-only stream to scratch
// space, upload it, conditionally create the index record, and write the
// metadata document. A Runner walks a playlist in order and drives the Worker
// with a constant-delay bounded retry, stopping at the first video that still
// fails once its retries are exhausted.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ytindexer/internal/config"
	"github.com/fpang/ytindexer/internal/store"
	"github.com/fpang/ytindexer/internal/youtube"
)

// Content types of the objects written by the Worker. Audio uses the stream's
// own type when the source reports one.
const (
	audioContentType    = "audio/mpeg"
	metadataContentType = "application/json"
)

// AudioSource downloads one video's audio-only stream to a local file.
type AudioSource interface {
	DownloadAudio(ctx context.Context, videoID, destPath string) (*youtube.Video, error)
}

// ObjectStore is the object-storage capability used by the Worker.
type ObjectStore interface {
	PutFile(ctx context.Context, key, localPath, contentType string) error
	PutBytes(ctx context.Context, key string, body []byte, contentType string) error
}

// IndexResult describes a successful fetch-and-index.
type IndexResult struct {
	VideoID string
	// Created is false when the index record already existed.
	Created bool
}

// AlreadyIndexed reports whether the record existed before this attempt.
func (r IndexResult) AlreadyIndexed() bool {
	return !r.Created
}

// Worker performs fetch, upload, and index for a single video.
type Worker struct {
	cfg     *config.Config
	audio   AudioSource
	objects ObjectStore
	records store.RecordStore
}

// NewWorker creates a Worker.
func NewWorker(cfg *config.Config, audio AudioSource, objects ObjectStore, records store.RecordStore) *Worker {
	return &Worker{
		cfg:     cfg,
		audio:   audio,
		objects: objects,
		records: records,
	}
}

// FetchAndIndex downloads the audio of videoID, uploads it, and indexes it.
// sourceURL is the playlist entry the identifier came from and is used for
// logging only. An empty videoID fails the fetch stage.
//
// The scratch file is removed before returning, whatever the outcome.
func (w *Worker) FetchAndIndex(ctx context.Context, videoID, sourceURL string) (IndexResult, error) {
	if videoID == "" || strings.ContainsAny(videoID, `/\`) {
		err := stageError(OutcomeFetchFailed, videoID, sourceURL, ErrUnrecognizedURL)
		log.Error().Str("url", sourceURL).Str("stage", OutcomeFetchFailed.String()).Msg("No video identifier for playlist entry")
		return IndexResult{}, err
	}

	localPath := filepath.Join(w.cfg.ScratchDir, videoID+".mp3")
	defer removeScratch(localPath)

	start := time.Now()
	log.Info().Str("videoId", videoID).Str("url", sourceURL).Msg("Downloading YouTube audio")
	video, err := w.audio.DownloadAudio(ctx, videoID, localPath)
	if err != nil {
		log.Error().Err(err).Str("videoId", videoID).Str("url", sourceURL).Str("stage", OutcomeFetchFailed.String()).
			Msg("Could not download audio from YouTube")
		return IndexResult{}, stageError(OutcomeFetchFailed, videoID, sourceURL, err)
	}
	log.Debug().
		Str("videoId", videoID).
		Str("title", video.Title).
		Str("author", video.Author).
		Dur("length", video.Length).
		Dur("elapsed", time.Since(start)).
		Msg("Audio downloaded")

	contentType := video.MimeType
	if contentType == "" {
		contentType = audioContentType
	}
	mediaKey := w.cfg.MediaKey(videoID)
	if err := w.objects.PutFile(ctx, mediaKey, localPath, contentType); err != nil {
		log.Error().Err(err).Str("videoId", videoID).Str("key", mediaKey).Str("stage", OutcomeUploadFailed.String()).
			Msg("Could not upload audio to S3")
		return IndexResult{}, stageError(OutcomeUploadFailed, videoID, sourceURL, err)
	}

	return w.Index(ctx, video, sourceURL)
}

// Index conditionally creates the index record for video and then writes
// its metadata document. An existing record is not an error; the metadata
// document is written either way.
func (w *Worker) Index(ctx context.Context, video *youtube.Video, sourceURL string) (IndexResult, error) {
	rec := &store.IndexRecord{
		VideoID:       video.ID,
		Downloaded:    true,
		Author:        video.Author,
		LengthSeconds: int(video.Length / time.Second),
		PublishDate:   store.FormatPublishDate(video.PublishDate),
		ViewCount:     video.Views,
		SourceURI:     video.WatchURL,
		Title:         video.Title,
	}

	created, err := w.records.CreateIfAbsent(ctx, rec)
	if err != nil {
		outcome := OutcomeRecordWriteFailed
		if errors.Is(err, store.ErrInvalidRecord) {
			outcome = OutcomeIndexFailed
		}
		log.Error().Err(err).Str("videoId", video.ID).Str("url", sourceURL).Str("stage", outcome.String()).
			Msg("Could not index video")
		return IndexResult{}, stageError(outcome, video.ID, sourceURL, err)
	}
	if created {
		log.Info().Str("videoId", video.ID).Str("url", sourceURL).Msg("Video indexed")
	} else {
		log.Info().Str("videoId", video.ID).Str("url", sourceURL).Msg("Video has already been indexed")
	}

	body, err := json.Marshal(newMetadataDocument(rec))
	if err != nil {
		return IndexResult{}, stageError(OutcomeMetadataWriteFailed, video.ID, sourceURL, fmt.Errorf("marshal metadata: %w", err))
	}

	metaKey := w.cfg.MetadataKey(video.ID)
	log.Debug().Str("videoId", video.ID).Str("key", metaKey).Msg("Uploading metadata document")
	if err := w.objects.PutBytes(ctx, metaKey, body, metadataContentType); err != nil {
		log.Error().Err(err).Str("videoId", video.ID).Str("key", metaKey).Str("stage", OutcomeMetadataWriteFailed.String()).
			Msg("Could not upload the metadata document to S3")
		return IndexResult{}, stageError(OutcomeMetadataWriteFailed, video.ID, sourceURL, err)
	}

	return IndexResult{VideoID: video.ID, Created: created}, nil
}

func removeScratch(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove scratch file")
	}
}
