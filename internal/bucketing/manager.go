package bucketing

import (
	"hash"
	"sync"
	"time"

	"login-service/internal/config"

	"github.com/spaolacci/murmur3"
)

// BucketingManager spreads audit rows of one account over a fixed number of partitions.
type BucketingManager struct {
	eventBuckets int
	hasherPool   sync.Pool
}

type BucketAssignment struct {
	EventBucket int    `json:"event_bucket"`
	DateBucket  string `json:"date_bucket"`
}

func NewBucketingManager(cfg config.BucketingConfig) *BucketingManager {
	buckets := cfg.EventBuckets
	if buckets <= 0 {
		buckets = 1
	}
	return &BucketingManager{
		eventBuckets: buckets,
		hasherPool: sync.Pool{
			New: func() any { return murmur3.New64() },
		},
	}
}

// EventBucket is stable for a given key; the empty key (anonymous events) maps too.
func (bm *BucketingManager) EventBucket(key string) int {
	return int(bm.hash(key) % uint64(bm.eventBuckets))
}

func (bm *BucketingManager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (bm *BucketingManager) Assign(key string, at time.Time) BucketAssignment {
	return BucketAssignment{
		EventBucket: bm.EventBucket(key),
		DateBucket:  bm.DateBucket(at),
	}
}

func (bm *BucketingManager) EventBuckets() int {
	return bm.eventBuckets
}

func (bm *BucketingManager) hash(key string) uint64 {
	h := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(h)

	h.Reset()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}
