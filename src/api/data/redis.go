package data

import (
	"context"
	"log"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/redis/go-redis/v9"
)

const (
	resultPrefix = "verify:"
	sharePrefix  = "share:"
	anchorPrefix = "anchor:"

	resultTTL = 10 * time.Minute
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// ResultCacheKey fingerprints one verification input. Identical input
// against unchanged store state yields an identical result, so cached
// results are safe to replay within the TTL.
func ResultCacheKey(certID, institution string, document []byte) string {
	h := xxhash.New64()
	_, _ = h.WriteString(certID)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(institution)
	_, _ = h.WriteString("\x00")
	_, _ = h.Write(document)
	return resultPrefix + xxhashHex(h.Sum64())
}

func xxhashHex(v uint64) string {
	const hexdigits = "0123456789abcdef"
	var b [16]byte
	for i := 15; i >= 0; i-- {
		b[i] = hexdigits[v&0xf]
		v >>= 4
	}
	return string(b[:])
}

func GetCachedResult(ctx context.Context, rdb *redis.Client, key string) (string, error) {
	return rdb.Get(ctx, key).Result()
}

func SetCachedResult(ctx context.Context, rdb *redis.Client, key, resultJSON string) error {
	return rdb.Set(ctx, key, resultJSON, resultTTL).Err()
}

// Share links map an opaque token to a verification job id, expiring on
// their own without cleanup.
func SetShareLink(ctx context.Context, rdb *redis.Client, token, jobID string, ttl time.Duration) error {
	return rdb.Set(ctx, sharePrefix+token, jobID, ttl).Err()
}

func GetShareLink(ctx context.Context, rdb *redis.Client, token string) (string, error) {
	return rdb.Get(ctx, sharePrefix+token).Result()
}

// Anchor cache: read-through in front of the anchors table.
func SetAnchor(ctx context.Context, rdb *redis.Client, contentHash, txRef string) error {
	return rdb.Set(ctx, anchorPrefix+contentHash, txRef, 0).Err()
}

func GetAnchor(ctx context.Context, rdb *redis.Client, contentHash string) (string, error) {
	return rdb.Get(ctx, anchorPrefix+contentHash).Result()
}
