// Command ytindexer runs the playlist indexer from a workstation against the
// same bucket and table the Lambda uses. Configuration comes from the same
// environment variables; flags override a few of them.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/ytindexer/internal/indexer"
	"github.com/fpang/ytindexer/internal/lambdaboot"
	"github.com/fpang/ytindexer/internal/videoid"
	"github.com/fpang/ytindexer/internal/youtube"
)

// CLI flags
var (
	playlistFlag  string
	maxVideosFlag int
	retryFlag     int
	yesFlag       bool
)

var rootCmd = &cobra.Command{
	Use:   "ytindexer",
	Short: "Index the audio of a YouTube playlist into S3 and DynamoDB",
	Long: `ytindexer downloads the audio of the first videos of a YouTube playlist,
uploads each one to the media bucket, and records it in the index table.
Videos that are already indexed are skipped.

Examples:
  ytindexer run --playlist "https://www.youtube.com/playlist?list=PL..."
  ytindexer run --max-videos 10 --retry 3
  ytindexer video-id "https://youtu.be/dQw4w9WgXcQ"
  ytindexer purge --yes`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index the configured playlist once",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var videoIDCmd = &cobra.Command{
	Use:   "video-id URL...",
	Short: "Print the video identifier extracted from each URL",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runVideoID,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every object in the media bucket",
	Args:  cobra.NoArgs,
	RunE:  runPurge,
}

func init() {
	runCmd.Flags().StringVarP(&playlistFlag, "playlist", "p", "", "Playlist URL (overrides playListURL and PLAYLIST_URL_PARAM)")
	runCmd.Flags().IntVarP(&maxVideosFlag, "max-videos", "n", -1, "Maximum videos to index (overrides numberOfYTVideos)")
	runCmd.Flags().IntVar(&retryFlag, "retry", -1, "Retries per video after the first attempt (overrides RETRY)")
	purgeCmd.Flags().BoolVar(&yesFlag, "yes", false, "Confirm deletion of every object in the bucket")

	rootCmd.AddCommand(runCmd, videoIDCmd, purgeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg := lambdaboot.LoadConfig()
	if maxVideosFlag >= 0 {
		cfg.MaxVideos = maxVideosFlag
	}
	if retryFlag >= 0 {
		cfg.RetryCeiling = retryFlag
	}

	aws := lambdaboot.InitAWS()
	playlistURL := playlistFlag
	if playlistURL == "" {
		var err error
		playlistURL, err = lambdaboot.ResolvePlaylistURL(ctx, aws.SSM, cfg)
		if err != nil {
			return err
		}
	}
	if playlistURL == "" {
		return errors.New("no playlist URL: set --playlist, playListURL, or PLAYLIST_URL_PARAM")
	}

	bucket := lambdaboot.InitS3(aws.Config, cfg.Bucket)
	records := lambdaboot.InitDynamo(aws.Config, cfg.TableName)
	yt := youtube.NewClient(&http.Client{Timeout: 10 * time.Minute})
	runner := indexer.NewRunner(cfg, yt, indexer.NewWorker(cfg, yt, bucket, records))

	sum, err := runner.Run(ctx, playlistURL)
	printSummary(cmd, sum)
	return err
}

func printSummary(cmd *cobra.Command, sum indexer.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:             %s\n", sum.RunID)
	fmt.Fprintf(out, "Playlist:        %s (%d videos, %d selected)\n", sum.PlaylistURL, sum.PlaylistSize, sum.Selected)
	fmt.Fprintf(out, "Indexed:         %d\n", sum.Indexed)
	fmt.Fprintf(out, "Already indexed: %d\n", sum.AlreadyIndexed)
	fmt.Fprintf(out, "Attempts:        %d\n", sum.Attempts)
	fmt.Fprintf(out, "Duration:        %s\n", sum.Duration.Round(time.Millisecond))
	if sum.FailedURL != "" {
		fmt.Fprintf(out, "Failed:          %s (%s)\n", sum.FailedURL, sum.FailedOutcome)
	}
}

func runVideoID(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, raw := range args {
		id, ok := videoid.Extract(raw)
		if !ok {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: no video identifier\n", raw)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d URLs not recognized", failed, len(args))
	}
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg := lambdaboot.LoadConfig()
	if !yesFlag {
		return fmt.Errorf("refusing to empty bucket %s without --yes", cfg.Bucket)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	aws := lambdaboot.InitAWS()
	bucket := lambdaboot.InitS3(aws.Config, cfg.Bucket)
	n, err := bucket.DeleteAll(ctx)
	if err != nil {
		log.Error().Err(err).Int("deleted", n).Str("bucket", bucket.Name()).Msg("Purge failed")
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d objects from %s\n", n, bucket.Name())
	return nil
}
