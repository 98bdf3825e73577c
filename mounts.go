package drivekit

import (
	"context"
	"sort"
	"time"
)

const mountCacheKey = "mounts"

// DefaultMountTTL bounds how long a fetched mount table is served before
// the remote is asked again.
const DefaultMountTTL = time.Minute

// mountTable caches the storage mount table reported by the remote API
// and answers longest-prefix ownership queries against it.
type mountTable struct {
	api   RemoteAPI
	cache Cache
	ttl   time.Duration
}

func newMountTable(api RemoteAPI, cache Cache, ttl time.Duration) *mountTable {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultMountTTL
	}
	return &mountTable{api: api, cache: cache, ttl: ttl}
}

// load returns the mount table sorted by path length descending, so the
// first prefix match is the longest one.
func (t *mountTable) load(ctx context.Context) ([]MountPoint, error) {
	if v, ok := t.cache.Get(mountCacheKey); ok {
		return v.([]MountPoint), nil
	}
	mounts, err := t.api.ListMounts(ctx)
	if err != nil {
		return nil, err
	}
	sorted := make([]MountPoint, len(mounts))
	copy(sorted, mounts)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Path) > len(sorted[j].Path)
	})
	t.cache.Set(mountCacheKey, sorted, t.ttl)
	return sorted, nil
}

// storageOf returns the mount owning path via longest-prefix match.
func (t *mountTable) storageOf(ctx context.Context, path string) (MountPoint, error) {
	mounts, err := t.load(ctx)
	if err != nil {
		return MountPoint{}, err
	}
	for _, m := range mounts {
		if underMount(path, m.Path) {
			return m, nil
		}
	}
	// Paths outside every declared mount belong to the implicit root.
	return MountPoint{Path: "/"}, nil
}

// isMountRoot reports whether path is exactly a storage mount root.
func (t *mountTable) isMountRoot(ctx context.Context, path string) (bool, error) {
	if path == "/" {
		return true, nil
	}
	mounts, err := t.load(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range mounts {
		if m.Path == path {
			return true, nil
		}
	}
	return false, nil
}

// invalidate drops the cached table; the next query refetches it.
func (t *mountTable) invalidate() {
	t.cache.Delete(mountCacheKey)
}
