// Package main provides the Lambda entry point of the playlist indexer.
//
// The same function serves two callers:
//   - a schedule or manual invoke with an empty event, which indexes the
//     configured playlist
//   - a CloudFormation custom resource, which indexes on Create/Update and
//     empties the media bucket on Delete, then receives the result at its
//     ResponseURL
//
// The function returns "SUCCESS" or "FAILED".
package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ytindexer/internal/indexer"
	"github.com/fpang/ytindexer/internal/lambdaboot"
	"github.com/fpang/ytindexer/internal/lifecycle"
	"github.com/fpang/ytindexer/internal/youtube"
)

var coldStart = true

var dispatcher *lifecycle.Dispatcher

func init() {
	initStart := time.Now()
	cfg := lambdaboot.LoadConfig()

	aws := lambdaboot.InitAWS()
	bucket := lambdaboot.InitS3(aws.Config, cfg.Bucket)
	records := lambdaboot.InitDynamo(aws.Config, cfg.TableName)
	publisher := lambdaboot.InitEventBridge(aws.Config, cfg.EventBusName)

	playlistURL, err := lambdaboot.ResolvePlaylistURL(context.Background(), aws.SSM, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve playlist URL")
	}

	yt := youtube.NewClient(&http.Client{Timeout: 10 * time.Minute})
	worker := indexer.NewWorker(cfg, yt, bucket, records)
	runner := indexer.NewRunner(cfg, yt, worker)
	dispatcher = lifecycle.NewDispatcher(playlistURL, bucket, runner, lifecycle.NewCallbackReporter(nil)).
		WithNotifier(publisher)

	startup := lambdaboot.StartupLog("ytindexer-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		S3Bucket("media", bucket.Name()).
		DynamoTable("index", records.TableName()).
		Feature("notifications", publisher.Enabled()).
		Feature("playlistConfigured", playlistURL != "").
		Config("playlistUrl", playlistURL).
		Config("maxVideos", strconv.Itoa(cfg.MaxVideos)).
		Config("retryCeiling", strconv.Itoa(cfg.RetryCeiling)).
		Config("retryDelay", cfg.RetryDelay.String()).
		Config("mediaPrefix", cfg.MediaPrefix).
		Config("metadataPrefix", cfg.MetadataPrefix)
	if cfg.PlaylistURLParam != "" {
		startup.SSMParam("playlistUrl", cfg.PlaylistURLParam)
	}
	if publisher.Enabled() {
		startup.EventBus("runs", cfg.EventBusName)
	}
	startup.Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, event cfn.Event) (string, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "ytindexer-lambda").Msg("Cold start, first invocation")
	}
	status, err := dispatcher.Handle(ctx, event)
	return string(status), err
}
