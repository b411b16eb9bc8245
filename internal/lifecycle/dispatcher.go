// Package lifecycle turns one Lambda invocation into either a bucket purge or
// an indexing pass, and reports the result to CloudFormation when the
// invocation came from a custom resource.
package lifecycle

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ytindexer/internal/indexer"
	"github.com/fpang/ytindexer/internal/metrics"
	"github.com/fpang/ytindexer/internal/notify"
)

// Purger removes every object from the media bucket.
type Purger interface {
	DeleteAll(ctx context.Context) (int, error)
}

// IndexRunner runs one indexing pass over a playlist.
type IndexRunner interface {
	Run(ctx context.Context, playlistURL string) (indexer.Summary, error)
}

// Reporter delivers the terminal status of an invocation.
type Reporter interface {
	Report(ctx context.Context, event cfn.Event, status cfn.StatusType) error
}

// Notifier announces completed indexing passes.
type Notifier interface {
	PublishPlaylistIndexed(ctx context.Context, event notify.PlaylistIndexed) error
}

// Dispatcher handles invocation events.
type Dispatcher struct {
	playlistURL string
	purger      Purger
	runner      IndexRunner
	reporter    Reporter
	notifier    Notifier
	metricsOut  io.Writer
}

// NewDispatcher creates a Dispatcher for playlistURL. An empty playlistURL
// makes every non-delete invocation a successful no-op.
func NewDispatcher(playlistURL string, purger Purger, runner IndexRunner, reporter Reporter) *Dispatcher {
	return &Dispatcher{
		playlistURL: playlistURL,
		purger:      purger,
		runner:      runner,
		reporter:    reporter,
	}
}

// WithNotifier sets the Notifier used after each indexing pass.
func (d *Dispatcher) WithNotifier(n Notifier) *Dispatcher {
	d.notifier = n
	return d
}

// WithMetricsWriter redirects EMF records, which go to stdout by default.
func (d *Dispatcher) WithMetricsWriter(w io.Writer) *Dispatcher {
	d.metricsOut = w
	return d
}

// Handle processes one invocation and returns its status. A Delete request
// empties the bucket and never indexes; anything else indexes the playlist.
// The status is returned even when delivering it to CloudFormation fails; the
// delivery error is returned alongside.
func (d *Dispatcher) Handle(ctx context.Context, event cfn.Event) (cfn.StatusType, error) {
	log.Info().
		Str("requestType", string(event.RequestType)).
		Str("requestId", event.RequestID).
		Str("resourceType", event.ResourceType).
		Bool("customResource", IsCustomResource(event)).
		Msg("Invocation received")

	var status cfn.StatusType
	if event.RequestType == cfn.RequestDelete {
		status = d.purge(ctx)
	} else {
		status = d.index(ctx)
	}

	if d.reporter != nil {
		if err := d.reporter.Report(ctx, event, status); err != nil {
			log.Error().Err(err).
				Str("requestId", event.RequestID).
				Str("status", string(status)).
				Msg("Failed to deliver custom resource response")
			return status, fmt.Errorf("report %s: %w", status, err)
		}
	}

	log.Info().Str("status", string(status)).Str("requestId", event.RequestID).Msg("Invocation complete")
	return status, nil
}

func (d *Dispatcher) purge(ctx context.Context) cfn.StatusType {
	log.Info().Msg("Delete request: emptying media bucket")

	status := cfn.StatusSuccess
	n, err := d.purger.DeleteAll(ctx)
	if err != nil {
		status = cfn.StatusFailed
		log.Error().Err(err).Int("deleted", n).Msg("Failed to empty media bucket")
	} else {
		log.Info().Int("deleted", n).Msg("Media bucket emptied")
	}

	rec := d.recorder("purge")
	rec.Count("ObjectsDeleted", n)
	rec.Count("Failures", failures(status))
	rec.Property("status", string(status))
	d.flush(rec)
	return status
}

func (d *Dispatcher) index(ctx context.Context) cfn.StatusType {
	if d.playlistURL == "" {
		log.Warn().Msg("No playlist URL configured; nothing to index")
		return cfn.StatusSuccess
	}

	status := cfn.StatusSuccess
	sum, err := d.runner.Run(ctx, d.playlistURL)
	if err != nil {
		status = cfn.StatusFailed
		log.Error().Err(err).Str("runId", sum.RunID).Str("failedUrl", sum.FailedURL).Msg("Playlist indexing failed")
	}

	rec := d.recorder("index")
	rec.Count("VideosIndexed", sum.Indexed)
	rec.Count("VideosAlreadyIndexed", sum.AlreadyIndexed)
	rec.Count("Attempts", sum.Attempts)
	rec.Count("Failures", failures(status))
	rec.Duration("RunDurationMs", sum.Duration)
	rec.Property("runId", sum.RunID)
	rec.Property("status", string(status))
	d.flush(rec)

	if d.notifier != nil {
		event := notify.PlaylistIndexed{
			RunID:          sum.RunID,
			PlaylistURL:    d.playlistURL,
			Status:         string(status),
			Processed:      sum.Processed,
			Indexed:        sum.Indexed,
			AlreadyIndexed: sum.AlreadyIndexed,
			Attempts:       sum.Attempts,
			FailedURL:      sum.FailedURL,
			DurationMs:     sum.Duration.Milliseconds(),
		}
		if sum.FailedURL != "" {
			event.FailedStage = sum.FailedOutcome.String()
		}
		if err := d.notifier.PublishPlaylistIndexed(ctx, event); err != nil {
			log.Warn().Err(err).Str("runId", sum.RunID).Msg("Could not publish PlaylistIndexed event")
		}
	}
	return status
}

func (d *Dispatcher) recorder(operation string) *metrics.Recorder {
	rec := metrics.New(metrics.Namespace).Dimension("Operation", operation)
	if d.metricsOut != nil {
		rec.WithWriter(d.metricsOut)
	}
	return rec
}

func (d *Dispatcher) flush(rec *metrics.Recorder) {
	if err := rec.Flush(); err != nil {
		log.Warn().Err(err).Msg("Failed to write EMF record")
	}
}

func failures(status cfn.StatusType) int {
	if status == cfn.StatusFailed {
		return 1
	}
	return 0
}
