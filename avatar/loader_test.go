package avatar

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type delivery struct {
	roomID string
	avatar []byte
}

// fakeClient serves canned thumbnails and counts fetches per URL.
type fakeClient struct {
	mu      sync.Mutex
	avatars map[string][]byte
	fetches map[string]int
}

func (f *fakeClient) Thumbnail(ctx context.Context, mxcURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[mxcURL]++
	avatar, ok := f.avatars[mxcURL]
	if !ok {
		return nil, fmt.Errorf("no thumbnail for %s", mxcURL)
	}
	return avatar, nil
}

func (f *fakeClient) fetchCount(mxcURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[mxcURL]
}

func waitForDelivery(t *testing.T, ch chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for avatar delivery")
		return delivery{}
	}
}

func TestLoaderFetchesAndCaches(t *testing.T) {
	mxcURL := "mxc://localhost/abc"
	wantAvatar := []byte("avatar bytes")
	client := &fakeClient{
		avatars: map[string][]byte{mxcURL: wantAvatar},
		fetches: make(map[string]int),
	}
	cache := NewCache(nil)
	defer cache.Close()
	loader := NewLoader(client, cache)

	deliveries := make(chan delivery, 4)
	deliver := func(roomID string, avatar []byte) {
		deliveries <- delivery{roomID, avatar}
	}

	loader.Request("!a:localhost", mxcURL, deliver)
	got := waitForDelivery(t, deliveries)
	if got.roomID != "!a:localhost" || !bytes.Equal(got.avatar, wantAvatar) {
		t.Errorf("delivery: got %+v", got)
	}

	// second request for the same URL is served from cache
	loader.Request("!b:localhost", mxcURL, deliver)
	got = waitForDelivery(t, deliveries)
	if got.roomID != "!b:localhost" || !bytes.Equal(got.avatar, wantAvatar) {
		t.Errorf("cached delivery: got %+v", got)
	}
	if n := client.fetchCount(mxcURL); n != 1 {
		t.Errorf("fetch count: got %d want 1", n)
	}
}

func TestLoaderSwallowsFetchFailures(t *testing.T) {
	client := &fakeClient{
		avatars: map[string][]byte{"mxc://localhost/good": []byte("ok")},
		fetches: make(map[string]int),
	}
	cache := NewCache(nil)
	defer cache.Close()
	loader := NewLoader(client, cache)

	deliveries := make(chan delivery, 4)
	deliver := func(roomID string, avatar []byte) {
		deliveries <- delivery{roomID, avatar}
	}

	loader.Request("!bad:localhost", "mxc://localhost/missing", deliver)
	// a later successful request proves the failed one was dropped, not queued
	loader.Request("!good:localhost", "mxc://localhost/good", deliver)
	got := waitForDelivery(t, deliveries)
	if got.roomID != "!good:localhost" {
		t.Fatalf("delivery: got %+v want the successful room only", got)
	}
	select {
	case d := <-deliveries:
		t.Errorf("unexpected extra delivery: %+v", d)
	default:
	}
}

func TestCacheStoreBackfill(t *testing.T) {
	store := &memStore{avatars: make(map[string][]byte)}
	store.avatars["mxc://localhost/persisted"] = []byte("from disk")
	cache := NewCache(store)
	defer cache.Close()

	avatar, ok := cache.Lookup("mxc://localhost/persisted")
	if !ok || !bytes.Equal(avatar, []byte("from disk")) {
		t.Fatalf("Lookup: got (%v, %v)", avatar, ok)
	}
	// the store hit was pulled into memory: a store wipe must not cause a miss
	store.mu.Lock()
	delete(store.avatars, "mxc://localhost/persisted")
	store.mu.Unlock()
	if _, ok := cache.Lookup("mxc://localhost/persisted"); !ok {
		t.Errorf("Lookup after store wipe: got miss, want memory hit")
	}

	cache.Put("mxc://localhost/new", []byte("fresh"))
	store.mu.Lock()
	persisted := store.avatars["mxc://localhost/new"]
	store.mu.Unlock()
	if !bytes.Equal(persisted, []byte("fresh")) {
		t.Errorf("Put did not reach the store: got %v", persisted)
	}
}

type memStore struct {
	mu      sync.Mutex
	avatars map[string][]byte
}

func (m *memStore) SelectAvatar(mxcURL string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avatars[mxcURL], nil
}

func (m *memStore) InsertAvatar(mxcURL string, avatar []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.avatars[mxcURL] = avatar
	return nil
}
