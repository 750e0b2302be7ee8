package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// VisitorStore answers "is this the first time we see this visitor for this key?".
type VisitorStore struct {
	rdb    *redis.Client
	mem    *expiringSet
	prefix string
}

// NewVisitorStore prefers Redis for cross-instance dedupe; rdb may be nil.
func NewVisitorStore(rdb *redis.Client) *VisitorStore {
	return &VisitorStore{rdb: rdb, mem: newExpiringSet(), prefix: "affiliate:uv:"}
}

// FirstSeen marks key as seen for ttl and reports whether it was new.
// Redis errors count as "seen" so a flaky cache never inflates unique visitors.
func (s *VisitorStore) FirstSeen(ctx context.Context, key string, ttl time.Duration) bool {
	if s.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		ok, err := s.rdb.SetNX(ctx, s.prefix+key, "1", ttl).Result()
		if err != nil {
			return false
		}
		return ok
	}
	return s.mem.add(key, ttl)
}
