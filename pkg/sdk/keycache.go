package sdk

import (
	"context"

	"github.com/bluele/gcache"

	"github.com/and161185/ironkeep/internal/api"
	"github.com/and161185/ironkeep/internal/model"
)

// keyCache is an LRU of user and group public keys. Keys never rotate within a
// session, so entries do not expire. gcache is goroutine safe.
type keyCache struct {
	c gcache.Cache
}

func newKeyCache(size int) *keyCache {
	return &keyCache{c: gcache.New(size).LRU().Build()}
}

func cacheKey(kind, id string) string { return kind + ":" + id }

func (k *keyCache) get(kind, id string) ([]byte, bool) {
	v, err := k.c.Get(cacheKey(kind, id))
	if err != nil {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (k *keyCache) put(kind, id string, pub []byte) {
	_ = k.c.Set(cacheKey(kind, id), pub)
}

// publicKeys resolves ids of one kind, asking the backend only for cache misses.
// Unknown ids are absent from the result.
func (s *Session) publicKeys(ctx context.Context, op, kind string, ids []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(ids))
	var miss []string
	for _, id := range ids {
		if pub, ok := s.keys.get(kind, id); ok {
			out[id] = pub
			continue
		}
		miss = append(miss, id)
	}
	if len(miss) == 0 {
		return out, nil
	}
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.PublicKeysResponse, error) {
		req := &api.PublicKeysRequest{IDs: miss}
		if kind == model.GranteeGroup {
			return s.backend.GroupPublicKeys(ctx, req)
		}
		return s.backend.UserPublicKeys(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	for id, pub := range resp.Keys {
		s.keys.put(kind, id, pub)
		out[id] = pub
	}
	return out, nil
}
