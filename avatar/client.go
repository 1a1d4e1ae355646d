package avatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

var Version = ""

// DefaultThumbnailSize is the edge length requested from the media repo.
const DefaultThumbnailSize = 96

// Client fetches avatar thumbnails from a media source.
type Client interface {
	// Thumbnail downloads a square thumbnail of the image at mxcURL.
	Thumbnail(ctx context.Context, mxcURL string) ([]byte, error)
}

// HTTPClient fetches thumbnails from a homeserver's media repository.
// One client can be shared among many rooms.
type HTTPClient struct {
	Client        *http.Client
	HomeserverURL string
	ThumbnailSize int
}

func (c *HTTPClient) Thumbnail(ctx context.Context, mxcURL string) ([]byte, error) {
	serverName, mediaID, err := ParseMXC(mxcURL)
	if err != nil {
		return nil, err
	}
	size := c.ThumbnailSize
	if size == 0 {
		size = DefaultThumbnailSize
	}
	thumbnailURL := fmt.Sprintf(
		"%s/_matrix/media/v3/thumbnail/%s/%s?width=%d&height=%d&method=crop",
		c.HomeserverURL, url.PathEscape(serverName), url.PathEscape(mediaID), size, size,
	)
	req, err := http.NewRequestWithContext(ctx, "GET", thumbnailURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Thumbnail: NewRequest failed: %w", err)
	}
	req.Header.Set("User-Agent", "room-roster-"+Version)
	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Thumbnail: request failed: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("Thumbnail: failed to read response: %w", err)
	}
	if res.StatusCode != 200 {
		// error bodies look like {"errcode":"M_NOT_FOUND","error":"..."}
		parsed := gjson.ParseBytes(body)
		return nil, fmt.Errorf("Thumbnail: %s returned HTTP %d %s %s",
			mxcURL, res.StatusCode, parsed.Get("errcode").Str, parsed.Get("error").Str)
	}
	return body, nil
}

// ParseMXC splits an mxc://server/mediaID content URI.
func ParseMXC(mxcURL string) (serverName, mediaID string, err error) {
	rest, ok := strings.CutPrefix(mxcURL, "mxc://")
	if !ok {
		return "", "", fmt.Errorf("not an mxc URI: %s", mxcURL)
	}
	segments := strings.SplitN(rest, "/", 2)
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return "", "", fmt.Errorf("malformed mxc URI: %s", mxcURL)
	}
	return segments[0], segments[1], nil
}
