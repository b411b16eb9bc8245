// Package youtube resolves playlists and downloads audio streams from YouTube.
//
// It is a thin layer over github.com/kkdai/youtube/v2 that exposes only the
// two capabilities the indexer needs: listing a playlist's video URLs in
// order, and writing one video's audio-only stream to a local file along with
// the descriptive fields that end up in the index.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ytindexer/internal/videoid"
)

// ErrNoAudioStream is returned when a video exposes no audio-only format.
var ErrNoAudioStream = errors.New("no audio-only stream available")

// Video holds the descriptive fields of a downloaded video.
type Video struct {
	ID          string
	Title       string
	Author      string
	Length      time.Duration
	PublishDate time.Time
	Views       int
	WatchURL    string
	// MimeType is the media type of the downloaded stream, without codec
	// parameters (e.g. "audio/mp4").
	MimeType string
}

// Client wraps a kkdai/youtube client.
type Client struct {
	yt *yt.Client
}

// NewClient creates a Client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{yt: &yt.Client{HTTPClient: httpClient}}
}

// PlaylistVideoURLs returns the canonical watch URL of every playlist entry,
// in playlist order.
func (c *Client) PlaylistVideoURLs(ctx context.Context, playlistURL string) ([]string, error) {
	start := time.Now()
	playlist, err := c.yt.GetPlaylistContext(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("get playlist %s: %w", playlistURL, err)
	}

	urls := make([]string, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		urls = append(urls, videoid.WatchURL(entry.ID))
	}

	log.Debug().
		Str("playlistId", playlist.ID).
		Str("title", playlist.Title).
		Int("videoCount", len(urls)).
		Dur("elapsed", time.Since(start)).
		Msg("Playlist resolved")
	return urls, nil
}

// DownloadAudio fetches the video's metadata and writes its first audio-only
// stream to destPath. On error the partially written file is removed.
func (c *Client) DownloadAudio(ctx context.Context, videoID, destPath string) (*Video, error) {
	watchURL := videoid.WatchURL(videoID)

	video, err := c.yt.GetVideoContext(ctx, watchURL)
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}

	format, err := selectAudioFormat(video.Formats)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}

	stream, size, err := c.yt.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("open audio stream %s (itag %d): %w", videoID, format.ItagNo, err)
	}
	defer stream.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", destPath, err)
	}

	written, err := io.Copy(f, stream)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("download audio %s: %w", videoID, err)
	}

	log.Debug().
		Str("videoId", videoID).
		Str("mimeType", format.MimeType).
		Int("itag", format.ItagNo).
		Int64("expectedBytes", size).
		Int64("writtenBytes", written).
		Msg("Audio stream downloaded")

	return &Video{
		ID:          videoID,
		Title:       video.Title,
		Author:      video.Author,
		Length:      video.Duration,
		PublishDate: video.PublishDate,
		Views:       video.Views,
		WatchURL:    watchURL,
		MimeType:    baseMimeType(format.MimeType),
	}, nil
}

// selectAudioFormat returns the first audio-only format in the list, keeping
// the order YouTube reports them in.
func selectAudioFormat(formats yt.FormatList) (*yt.Format, error) {
	for i := range formats {
		if strings.HasPrefix(formats[i].MimeType, "audio/") {
			return &formats[i], nil
		}
	}
	return nil, ErrNoAudioStream
}

// baseMimeType strips parameters such as codecs from a MIME type.
func baseMimeType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.TrimSpace(base)
}
