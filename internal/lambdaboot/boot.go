// Package lambdaboot provides the cold-start bootstrap shared by the Lambda
// entry point and the local CLI: configuration, AWS clients, the optional
// SSM playlist parameter, and startup logging.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ytindexer/internal/config"
	"github.com/fpang/ytindexer/internal/logging"
	"github.com/fpang/ytindexer/internal/notify"
	"github.com/fpang/ytindexer/internal/s3util"
	"github.com/fpang/ytindexer/internal/store"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// SSMAPI is the subset of the SSM client used to resolve parameters.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadConfig reads the environment into a Config and initializes logging
// at the configured level. Fatals on invalid configuration.
func LoadConfig() *config.Config {
	cfg, err := config.Load(nil)
	if err != nil {
		logging.Init("")
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Init(cfg.LogLevel)
	return cfg
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client bound to the media bucket.
func InitS3(cfg aws.Config, bucket string) *s3util.Bucket {
	if bucket == "" {
		log.Fatal().Msg("Media bucket is required")
	}
	return s3util.NewBucket(s3.NewFromConfig(cfg), bucket)
}

// InitDynamo creates the index record store for tableName.
func InitDynamo(cfg aws.Config, tableName string) *store.DynamoStore {
	if tableName == "" {
		log.Fatal().Msg("DynamoDB table name is required")
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// InitEventBridge creates the run notification publisher. Without a bus name
// the publisher is disabled and no client is created.
func InitEventBridge(cfg aws.Config, busName string) *notify.Publisher {
	if busName == "" {
		log.Debug().Msg("EVENT_BUS_NAME not set; run notifications disabled")
		return notify.NewPublisher(nil, "")
	}
	return notify.NewPublisher(eventbridge.NewFromConfig(cfg), busName)
}

// ResolvePlaylistURL returns the playlist to index. When cfg names an SSM
// parameter its value wins over the playListURL variable; a parameter that
// cannot be read is an error rather than a silent fallback.
func ResolvePlaylistURL(ctx context.Context, client SSMAPI, cfg *config.Config) (string, error) {
	if cfg.PlaylistURLParam == "" {
		return cfg.PlaylistURL, nil
	}
	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.PlaylistURLParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read playlist parameter %s: %w", cfg.PlaylistURLParam, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("playlist parameter %s is empty", cfg.PlaylistURLParam)
	}
	log.Debug().Str("param", cfg.PlaylistURLParam).Dur("elapsed", time.Since(start)).Msg("Playlist URL loaded from SSM")
	return aws.ToString(out.Parameter.Value), nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
