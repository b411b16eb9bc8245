// Package config holds the indexer configuration. It is read once at cold
// start from the Lambda environment and passed explicitly to every component.
//
// The environment variable names match the ones the CloudFormation template
// sets on the function (playListURL, numberOfYTVideos, RETRY, ...), so they
// are kept as-is rather than normalised to upper snake case.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvPlaylistURL      = "playListURL"
	EnvPlaylistURLParam = "PLAYLIST_URL_PARAM"
	EnvMaxVideos        = "numberOfYTVideos"
	EnvRetry            = "RETRY"
	EnvRetryDelay       = "RETRY_DELAY"
	EnvBucket           = "mediaBucket"
	EnvMediaPrefix      = "mediaFolderPrefix"
	EnvMetadataPrefix   = "metaDataFolderPrefix"
	EnvTableName        = "ddbTableName"
	EnvLogLevel         = "LOG_LEVEL"
	EnvScratchDir       = "SCRATCH_DIR"
	EnvEventBusName     = "EVENT_BUS_NAME"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultMaxVideos    = 5
	DefaultRetryCeiling = 2
	DefaultRetryDelay   = 2 * time.Second
	DefaultLogLevel     = "info"
)

// Config is the complete runtime configuration of the indexer.
type Config struct {
	// PlaylistURL is the playlist to index. Empty means "nothing to do".
	PlaylistURL string
	// PlaylistURLParam optionally names an SSM parameter holding the playlist
	// URL. When set, its value is used instead of PlaylistURL.
	PlaylistURLParam string

	// MaxVideos bounds how many playlist entries are processed per run.
	MaxVideos int
	// RetryCeiling is the number of retries per video after the first attempt.
	RetryCeiling int
	// RetryDelay is the constant wait between attempts on the same video.
	RetryDelay time.Duration

	Bucket         string
	MediaPrefix    string
	MetadataPrefix string
	TableName      string

	LogLevel     string
	ScratchDir   string
	EventBusName string
}

// Load builds a Config from the given environment lookup function (usually
// os.Getenv) and validates it.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{
		PlaylistURL:      strings.TrimSpace(getenv(EnvPlaylistURL)),
		PlaylistURLParam: getenv(EnvPlaylistURLParam),
		MaxVideos:        DefaultMaxVideos,
		RetryCeiling:     DefaultRetryCeiling,
		RetryDelay:       DefaultRetryDelay,
		Bucket:           getenv(EnvBucket),
		MediaPrefix:      getenv(EnvMediaPrefix),
		MetadataPrefix:   getenv(EnvMetadataPrefix),
		TableName:        getenv(EnvTableName),
		LogLevel:         strings.ToLower(getenv(EnvLogLevel)),
		ScratchDir:       getenv(EnvScratchDir),
		EventBusName:     getenv(EnvEventBusName),
	}

	var err error
	if cfg.MaxVideos, err = intFromEnv(getenv, EnvMaxVideos, DefaultMaxVideos); err != nil {
		return nil, err
	}
	if cfg.RetryCeiling, err = intFromEnv(getenv, EnvRetry, DefaultRetryCeiling); err != nil {
		return nil, err
	}
	if v := getenv(EnvRetryDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse %s=%q: %w", EnvRetryDelay, v, err)
		}
		cfg.RetryDelay = d
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Bucket == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvBucket))
	}
	if c.TableName == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvTableName))
	}
	if c.MaxVideos < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", EnvMaxVideos, c.MaxVideos))
	}
	if c.RetryCeiling < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", EnvRetry, c.RetryCeiling))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0, got %s", EnvRetryDelay, c.RetryDelay))
	}
	return errors.Join(errs...)
}

// MediaKey is the object key of the audio artifact for a video.
func (c *Config) MediaKey(videoID string) string {
	return c.MediaPrefix + videoID + ".mp3"
}

// MetadataKey is the object key of the metadata document for a video. It
// nests the media key under the metadata prefix so the document sits next to
// the audio file in search-index layouts.
func (c *Config) MetadataKey(videoID string) string {
	return c.MetadataPrefix + c.MediaKey(videoID) + ".metadata.json"
}

func intFromEnv(getenv func(string) string, name string, def int) (int, error) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", name, v, err)
	}
	return n, nil
}
