package avatar

import (
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// Store is the persistent layer underneath the in-memory cache. A nil Store
// makes the cache memory-only.
type Store interface {
	// SelectAvatar returns the stored bytes for this URL, or nil if absent.
	SelectAvatar(mxcURL string) ([]byte, error)
	InsertAvatar(mxcURL string, avatar []byte) error
}

// Cache is a two-tier avatar cache: a TTL'd in-memory layer in front of an
// optional persistent store. Memory entries live for a fixed period however
// often they are hit; the store keeps them across restarts.
type Cache struct {
	mem   *ttlcache.Cache[string, []byte]
	store Store
}

func NewCache(store Store) *Cache {
	mem := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](30*time.Minute),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go mem.Start()
	return &Cache{
		mem:   mem,
		store: store,
	}
}

func (c *Cache) Close() {
	c.mem.Stop()
}

// Lookup checks memory then the store. Store hits are pulled back into
// memory. Store errors are logged and treated as misses.
func (c *Cache) Lookup(mxcURL string) ([]byte, bool) {
	if item := c.mem.Get(mxcURL); item != nil {
		return item.Value(), true
	}
	if c.store == nil {
		return nil, false
	}
	avatar, err := c.store.SelectAvatar(mxcURL)
	if err != nil {
		logger.Warn().Err(err).Str("mxc", mxcURL).Msg("avatar store lookup failed")
		return nil, false
	}
	if avatar == nil {
		return nil, false
	}
	c.mem.Set(mxcURL, avatar, ttlcache.DefaultTTL)
	return avatar, true
}

// Put writes to both layers. Store failures are logged: the memory layer
// still serves the bytes for this session.
func (c *Cache) Put(mxcURL string, avatar []byte) {
	c.mem.Set(mxcURL, avatar, ttlcache.DefaultTTL)
	if c.store == nil {
		return
	}
	if err := c.store.InsertAvatar(mxcURL, avatar); err != nil {
		logger.Warn().Err(err).Str("mxc", mxcURL).Msg("failed to persist avatar")
	}
}
