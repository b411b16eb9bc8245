// Package videoid extracts canonical YouTube video identifiers from URLs.
package videoid

import (
	"net/url"
	"strings"
)

// watchURLPrefix is the canonical watch URL without the identifier.
const watchURLPrefix = "https://www.youtube.com/watch?v="

// Extract returns the video identifier for the supported URL shapes:
//
//	https://youtu.be/<id>
//	https://www.youtube.com/watch?v=<id>
//	https://www.youtube.com/embed/<id>
//	https://www.youtube.com/v/<id>
//
// The bare youtube.com host is accepted as well. Any other shape returns
// ("", false).
func Extract(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}

	var id string
	switch u.Hostname() {
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	case "www.youtube.com", "youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/v/"):
			id = secondSegment(u.Path)
		}
	}

	if id == "" {
		return "", false
	}
	return id, true
}

// WatchURL returns the canonical watch URL for an identifier.
func WatchURL(id string) string {
	return watchURLPrefix + id
}

// secondSegment returns "b" for "/a/b/c".
func secondSegment(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
