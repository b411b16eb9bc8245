package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ytindexer/internal/config"
	"github.com/fpang/ytindexer/internal/videoid"
)

// PlaylistSource resolves a playlist into its video URLs, in playlist order.
type PlaylistSource interface {
	PlaylistVideoURLs(ctx context.Context, playlistURL string) ([]string, error)
}

// Processor is the per-video step driven by the Runner. *Worker implements it.
type Processor interface {
	FetchAndIndex(ctx context.Context, videoID, sourceURL string) (IndexResult, error)
}

// RetryFunc is called before each retry of a video, after a failed attempt.
type RetryFunc func(videoURL string, attempt int, delay time.Duration, err error)

// Summary describes one indexing run.
type Summary struct {
	RunID          string
	PlaylistURL    string
	PlaylistSize   int
	Selected       int
	Processed      int
	Indexed        int
	AlreadyIndexed int
	Attempts       int
	FailedURL      string
	FailedOutcome  Outcome
	Duration       time.Duration
}

// Runner walks a playlist and processes each entry with bounded retry.
type Runner struct {
	cfg       *config.Config
	playlists PlaylistSource
	processor Processor
	onRetry   RetryFunc
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, playlists PlaylistSource, processor Processor) *Runner {
	return &Runner{
		cfg:       cfg,
		playlists: playlists,
		processor: processor,
	}
}

// OnRetry registers a callback invoked before every retry.
func (r *Runner) OnRetry(fn RetryFunc) *Runner {
	r.onRetry = fn
	return r
}

// Run indexes the first cfg.MaxVideos entries of the playlist, in order.
// Each entry is attempted up to cfg.RetryCeiling+1 times with a constant
// cfg.RetryDelay between attempts, whatever the failure. The first entry
// that still fails ends the run; later entries are not attempted.
func (r *Runner) Run(ctx context.Context, playlistURL string) (sum Summary, err error) {
	start := time.Now()
	sum = Summary{RunID: uuid.NewString(), PlaylistURL: playlistURL}
	defer func() { sum.Duration = time.Since(start) }()

	urls, err := r.playlists.PlaylistVideoURLs(ctx, playlistURL)
	if err != nil {
		log.Error().Err(err).Str("runId", sum.RunID).Str("playlist", playlistURL).Msg("Could not resolve playlist")
		return sum, fmt.Errorf("resolve playlist %s: %w", playlistURL, err)
	}
	sum.PlaylistSize = len(urls)
	if len(urls) > r.cfg.MaxVideos {
		urls = urls[:r.cfg.MaxVideos]
	}
	sum.Selected = len(urls)

	log.Info().
		Str("runId", sum.RunID).
		Str("playlist", playlistURL).
		Int("playlistSize", sum.PlaylistSize).
		Int("selected", sum.Selected).
		Int("retryCeiling", r.cfg.RetryCeiling).
		Msg("Starting playlist indexing")

	for _, url := range urls {
		log.Info().Str("runId", sum.RunID).Str("url", url).Msg("Checking YouTube video")

		res, err := r.processEntry(ctx, url, &sum)
		if err != nil {
			sum.FailedURL = url
			sum.FailedOutcome = OutcomeOf(err)
			log.Error().Err(err).
				Str("runId", sum.RunID).
				Str("url", url).
				Str("stage", sum.FailedOutcome.String()).
				Int("processed", sum.Processed).
				Msg("Failure while downloading, uploading, or indexing video; stopping run")
			return sum, fmt.Errorf("index %s: %w", url, err)
		}

		sum.Processed++
		if res.Created {
			sum.Indexed++
		} else {
			sum.AlreadyIndexed++
		}
	}

	log.Info().
		Str("runId", sum.RunID).
		Int("processed", sum.Processed).
		Int("indexed", sum.Indexed).
		Int("alreadyIndexed", sum.AlreadyIndexed).
		Int("attempts", sum.Attempts).
		Dur("elapsed", time.Since(start)).
		Msg("Playlist indexing complete")
	return sum, nil
}

// processEntry runs the processor for one playlist entry with retry. A panic
// anywhere in the entry is converted into an error and is not retried.
func (r *Runner) processEntry(ctx context.Context, url string, sum *Summary) (res IndexResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("runId", sum.RunID).Str("url", url).Interface("panic", p).Msg("Unexpected failure while indexing video")
			res, err = IndexResult{}, fmt.Errorf("%w: %v", ErrUnexpected, p)
		}
	}()

	videoID, ok := videoid.Extract(url)
	if !ok {
		log.Warn().Str("runId", sum.RunID).Str("url", url).Msg("Unrecognized video URL")
	}

	attempt := 0
	operation := func() (IndexResult, error) {
		attempt++
		sum.Attempts++
		return r.processor.FetchAndIndex(ctx, videoID, url)
	}
	notify := func(err error, delay time.Duration) {
		log.Info().
			Str("runId", sum.RunID).
			Str("url", url).
			Int("attempt", attempt).
			Int("retryCeiling", r.cfg.RetryCeiling).
			Dur("delay", delay).
			Str("stage", OutcomeOf(err).String()).
			Msg("Retrying video")
		if r.onRetry != nil {
			r.onRetry(url, attempt, delay, err)
		}
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(r.cfg.RetryCeiling)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
}
