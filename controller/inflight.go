package controller

import (
	"context"
	"strconv"
	"sync"
)

const (
	keyPending     = "zone:pending"
	keyCameraPlace = "camera:place"
)

func zoneKey(id int64) string {
	return "zone:" + strconv.FormatInt(id, 10)
}

func cameraKey(id int64) string {
	return "camera:" + strconv.FormatInt(id, 10)
}

// inflight allows at most one outstanding request per key.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{keys: make(map[string]struct{})}
}

// acquire claims key and returns the function releasing it.
func (f *inflight) acquire(key string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return nil, ErrBusy
	}
	f.keys[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.keys, key)
			f.mu.Unlock()
		})
	}, nil
}

func (f *inflight) busy(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key]
	return ok
}

// loadGate serializes the full reloads of one entity set. A reload waits
// for the running one, so it always fetches after the caller's last write.
type loadGate chan struct{}

func newLoadGate() loadGate {
	return make(loadGate, 1)
}

func (g loadGate) enter(ctx context.Context, done <-chan struct{}) (func(), error) {
	select {
	case g <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-g }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, ErrClosed
	}
}
