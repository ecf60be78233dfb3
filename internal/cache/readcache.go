package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

// Scopes group cache entries that are invalidated together.
const (
	ScopeCatalog = "catalog"
	scopeAccess  = "access"
)

// AccessScope is the scope holding the entitlement set of one user.
func AccessScope(userID string) string {
	return scopeAccess + ":" + userID
}

// ReadCache is a read-through cache over redis. Every scope has a generation
// counter that is part of each key; bumping it orphans all entries of the
// scope at once and the TTL reclaims them. A nil *ReadCache is valid and
// always loads from the source. Redis failures are logged and bypassed.
type ReadCache struct {
	client redis.Cmdable
	prefix string
	log    zerolog.Logger
}

func NewReadCache(client redis.Cmdable, prefix string, log zerolog.Logger) *ReadCache {
	if client == nil {
		return nil
	}
	return &ReadCache{
		client: client,
		prefix: prefix,
		log:    log.With().Str("component", "readcache").Logger(),
	}
}

func (c *ReadCache) genKey(scope string) string {
	return c.prefix + ":" + scope + ":gen"
}

func (c *ReadCache) generation(ctx context.Context, scope string) (int64, error) {
	val, err := c.client.Get(ctx, c.genKey(scope)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// EntryKey derives the redis key for (scope, generation, parts).
func EntryKey(prefix, scope string, gen int64, parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return prefix + ":" + scope + ":g" + strconv.FormatInt(gen, 10) + ":" + hex.EncodeToString(sum[:16])
}

// Fetch returns the cached value for (scope, parts) or calls load and stores
// its result for ttl. Errors from load are returned as is and never cached.
func Fetch[T any](ctx context.Context, c *ReadCache, scope string, ttl time.Duration, parts []string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	gen, err := c.generation(ctx, scope)
	if err != nil {
		c.log.Warn().Err(err).Str("scope", scope).Msg("cache generation read failed")
		return load(ctx)
	}
	key := EntryKey(c.prefix, scope, gen, parts...)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		jsonErr := json.Unmarshal(raw, &cached)
		if jsonErr == nil {
			return cached, nil
		}
		c.log.Warn().Err(jsonErr).Str("key", key).Msg("cache entry undecodable")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return load(ctx)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return value, nil
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return value, nil
}

// Invalidate bumps the generation of scope.
func (c *ReadCache) Invalidate(ctx context.Context, scope string) {
	if c == nil {
		return
	}
	if err := c.client.Incr(ctx, c.genKey(scope)).Err(); err != nil {
		c.log.Warn().Err(err).Str("scope", scope).Msg("cache invalidate failed")
	}
}

// Purge deletes every entry of scope, generation counter excluded. The worker
// runs it after catalog mutations so stale generations do not wait for their
// TTL.
func (c *ReadCache) Purge(ctx context.Context, scope string) (int, error) {
	if c == nil {
		return 0, nil
	}

	gen, err := c.generation(ctx, scope)
	if err != nil {
		return 0, err
	}
	current := c.prefix + ":" + scope + ":g" + strconv.FormatInt(gen, 10) + ":"
	counter := c.genKey(scope)

	var (
		cursor  uint64
		removed int
	)
	pattern := c.prefix + ":" + scope + ":g*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return removed, err
		}
		var stale []string
		for _, k := range keys {
			if k != counter && !strings.HasPrefix(k, current) {
				stale = append(stale, k)
			}
		}
		if len(stale) > 0 {
			n, err := c.client.Del(ctx, stale...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
