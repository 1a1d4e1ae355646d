package avatar

import (
	"context"
	"time"
)

const fetchTimeout = 30 * time.Second

// Loader resolves room avatars on demand: cache first, then a thumbnail
// fetch which backfills the cache. It satisfies the roster's AvatarRequester
// contract: deliver always runs on a fresh goroutine, and fetch failures are
// logged and swallowed so they never surface to roster callers.
type Loader struct {
	client Client
	cache  *Cache
}

func NewLoader(client Client, cache *Cache) *Loader {
	return &Loader{
		client: client,
		cache:  cache,
	}
}

func (l *Loader) Request(roomID, mxcURL string, deliver func(roomID string, avatar []byte)) {
	go l.load(roomID, mxcURL, deliver)
}

func (l *Loader) load(roomID, mxcURL string, deliver func(roomID string, avatar []byte)) {
	if avatar, ok := l.cache.Lookup(mxcURL); ok {
		deliver(roomID, avatar)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	avatar, err := l.client.Thumbnail(ctx, mxcURL)
	if err != nil {
		logger.Warn().Err(err).Str("mxc", mxcURL).Str("room", roomID).Msg("failed to download room avatar")
		return
	}
	l.cache.Put(mxcURL, avatar)
	deliver(roomID, avatar)
}
