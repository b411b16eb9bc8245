package indexer

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fpang/ytindexer/internal/config"
	"github.com/fpang/ytindexer/internal/store"
	"github.com/fpang/ytindexer/internal/videoid"
	"github.com/fpang/ytindexer/internal/youtube"
)

// fakeAudio writes a small file for every download and can be told to fail
// a given video a number of times (or forever with -1).
type fakeAudio struct {
	mu       sync.Mutex
	failures map[string]int
	calls    []string
	paths    []string
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{failures: make(map[string]int)}
}

func (f *fakeAudio) failAlways(id string) { f.failures[id] = -1 }

func (f *fakeAudio) failTimes(id string, n int) { f.failures[id] = n }

func (f *fakeAudio) callsFor(id string) int {
	n := 0
	for _, c := range f.calls {
		if c == id {
			n++
		}
	}
	return n
}

func (f *fakeAudio) DownloadAudio(_ context.Context, videoID, destPath string) (*youtube.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, videoID)
	f.paths = append(f.paths, destPath)

	if n, ok := f.failures[videoID]; ok && n != 0 {
		if n > 0 {
			f.failures[videoID] = n - 1
		}
		return nil, errors.New("video unavailable")
	}
	if err := os.WriteFile(destPath, []byte("audio:"+videoID), 0o600); err != nil {
		return nil, err
	}
	return testVideo(videoID), nil
}

func testVideo(id string) *youtube.Video {
	return &youtube.Video{
		ID:          id,
		Title:       "Title " + id,
		Author:      "Author " + id,
		Length:      3*time.Minute + 30*time.Second,
		PublishDate: time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC),
		Views:       1234,
		WatchURL:    videoid.WatchURL(id),
	}
}

// fakeObjects is an in-memory ObjectStore.
type fakeObjects struct {
	objects     map[string][]byte
	puts        map[string]int
	types       map[string]string
	putFileErr  error
	putBytesErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		objects: make(map[string][]byte),
		puts:    make(map[string]int),
		types:   make(map[string]string),
	}
}

func (f *fakeObjects) PutFile(_ context.Context, key, localPath, contentType string) error {
	if f.putFileErr != nil {
		return f.putFileErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.objects[key] = data
	f.types[key] = contentType
	f.puts[key]++
	return nil
}

func (f *fakeObjects) PutBytes(_ context.Context, key string, body []byte, contentType string) error {
	if f.putBytesErr != nil {
		return f.putBytesErr
	}
	f.objects[key] = append([]byte(nil), body...)
	f.types[key] = contentType
	f.puts[key]++
	return nil
}

// memRecords is an in-memory RecordStore with create-if-absent semantics.
type memRecords struct {
	records map[string]store.IndexRecord
	writes  int
	err     error
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[string]store.IndexRecord)}
}

func (m *memRecords) CreateIfAbsent(_ context.Context, rec *store.IndexRecord) (bool, error) {
	m.writes++
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.records[rec.VideoID]; ok {
		return false, nil
	}
	m.records[rec.VideoID] = *rec
	return true, nil
}

// fakePlaylist returns a fixed list of URLs.
type fakePlaylist struct {
	urls []string
	err  error
}

func (f *fakePlaylist) PlaylistVideoURLs(context.Context, string) ([]string, error) {
	return f.urls, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		PlaylistURL:    "https://www.youtube.com/playlist?list=PLtest",
		MaxVideos:      5,
		RetryCeiling:   2,
		RetryDelay:     5 * time.Millisecond,
		Bucket:         "media",
		MediaPrefix:    "yt-audio/",
		MetadataPrefix: "meta/",
		TableName:      "yt-index",
		ScratchDir:     t.TempDir(),
	}
}

func watchURLs(ids ...string) []string {
	urls := make([]string, len(ids))
	for i, id := range ids {
		urls[i] = videoid.WatchURL(id)
	}
	return urls
}
