package bucketing

import (
	"fmt"
	"testing"
	"time"

	"login-service/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestEventBucketIsStableAndInRange(t *testing.T) {
	bm := NewBucketingManager(config.BucketingConfig{EventBuckets: 16})

	first := bm.EventBucket("user1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, bm.EventBucket("user1"))
	}

	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		b := bm.EventBucket(fmt.Sprintf("account-%d", i))
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 16)
		seen[b] = true
	}
	assert.Greater(t, len(seen), 8, "keys spread over most buckets")
}

func TestZeroBucketsFallsBackToOne(t *testing.T) {
	bm := NewBucketingManager(config.BucketingConfig{})
	assert.Equal(t, 1, bm.EventBuckets())
	assert.Equal(t, 0, bm.EventBucket("anything"))
}

func TestAssignUsesUTCDate(t *testing.T) {
	bm := NewBucketingManager(config.BucketingConfig{EventBuckets: 4})
	at := time.Date(2026, 1, 2, 23, 30, 0, 0, time.FixedZone("x", -3*3600))

	a := bm.Assign("user2", at)
	assert.Equal(t, "2026-01-03", a.DateBucket)
	assert.Equal(t, bm.EventBucket("user2"), a.EventBucket)
}
