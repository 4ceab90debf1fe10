package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/taskguard/secret"
)

// tokenBucketScript atomically refills then (if possible) consumes n tokens
// from the named bucket, taking "now" from Redis's own clock to avoid
// client skew between callers.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local n = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokensKey = KEYS[1] .. ':tokens'
local tsKey = KEYS[1] .. ':ts'

local t = redis.call('TIME')
local now = tonumber(t[1]) + tonumber(t[2]) / 1000000

local tokens = tonumber(redis.call('GET', tokensKey))
local last = tonumber(redis.call('GET', tsKey))
if tokens == nil then tokens = capacity end
if last == nil then last = now end

local elapsed = now - last
if elapsed < 0 then elapsed = 0 end
tokens = math.min(capacity, tokens + elapsed * rate)

local granted = 0
if tokens >= n then
  tokens = tokens - n
  granted = 1
end

redis.call('SET', tokensKey, tostring(tokens), 'EX', ttl)
redis.call('SET', tsKey, tostring(now), 'EX', ttl)

return {granted, tostring(tokens)}
`)

// fixedWindowScript atomically advances (or resets) the named window and
// increments its counter if still under limit.
var fixedWindowScript = redis.NewScript(`
local period = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local startKey = KEYS[1] .. ':start'
local countKey = KEYS[1] .. ':count'

local t = redis.call('TIME')
local now = tonumber(t[1]) + tonumber(t[2]) / 1000000

local start = tonumber(redis.call('GET', startKey))
local count = tonumber(redis.call('GET', countKey))

if start == nil or (now - start) >= period then
  start = now
  count = 0
end

local granted = 0
if count < limit then
  count = count + 1
  granted = 1
end

redis.call('SET', startKey, tostring(start), 'EX', ttl)
redis.call('SET', countKey, tostring(count), 'EX', ttl)

return {granted, count, tostring(start)}
`)

// circuitCASScript compare-and-sets a circuit breaker record stored as a
// Redis hash, keyed by an explicit version field rather than relying on
// WATCH/MULTI, so a single round trip is enough.
var circuitCASScript = redis.NewScript(`
local expectedVersion = tonumber(ARGV[1])
local ttl = tonumber(ARGV[7])

local exists = redis.call('EXISTS', KEYS[1])
local currentVersion = 0
if exists == 1 then
  currentVersion = tonumber(redis.call('HGET', KEYS[1], 'version')) or 0
end

if currentVersion ~= expectedVersion then
  return 0
end

redis.call('HSET', KEYS[1],
  'state', ARGV[2],
  'failures', ARGV[3],
  'lastFailure', ARGV[4],
  'openedAt', ARGV[5],
  'halfOpen', ARGV[6],
  'version', expectedVersion + 1)

if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
end

return 1
`)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// Addr is the Redis address (host:port). May be a secretref resolved
	// via Resolver.
	Addr string

	// Password authenticates to Redis. May be a secretref resolved via
	// Resolver, e.g. "secretref:bws:project/dotenv/key/REDIS_PASSWORD".
	Password string

	// DB selects the logical Redis database.
	DB int

	// Resolver resolves Addr/Password if they carry a secretref prefix.
	// If nil, Addr/Password are used verbatim.
	Resolver *secret.Resolver

	// IdleTTL is how long an idle token bucket key is kept before Redis
	// expires it. Fixed window keys expire after twice their period and
	// circuit records after the TTL passed to CompareAndSet instead.
	// Default: 10 minutes.
	IdleTTL time.Duration

	// Client, if set, is used directly instead of constructing one from
	// Addr/Password/DB. Lets callers share a connection pool.
	Client *redis.Client
}

// RedisStore is a Store backed by Redis, using server-side Lua scripts so
// concurrent clients observe a single serialization order per key.
type RedisStore struct {
	client  *redis.Client
	idleTTL time.Duration
}

// NewRedisStore connects (or reuses cfg.Client) and returns a RedisStore.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	client := cfg.Client
	if client == nil {
		addr, password, err := resolveRedisCreds(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("storage: resolve redis credentials: %w", err)
		}
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       cfg.DB,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &RedisStore{client: client, idleTTL: cfg.IdleTTL}, nil
}

func resolveRedisCreds(ctx context.Context, cfg RedisConfig) (addr, password string, err error) {
	addr, password = cfg.Addr, cfg.Password
	if cfg.Resolver == nil {
		return addr, password, nil
	}
	if addr, err = cfg.Resolver.ResolveValue(ctx, addr); err != nil {
		return "", "", fmt.Errorf("resolve addr: %w", err)
	}
	if password, err = cfg.Resolver.ResolveValue(ctx, password); err != nil {
		return "", "", fmt.Errorf("resolve password: %w", err)
	}
	return addr, password, nil
}

// ttlSecondsCeil rounds d up to whole seconds, floored at 1, since the
// scripts pass it to Redis's SET ... EX which rejects 0 or negative
// values — a sub-second d must not truncate down to an invalid TTL.
func ttlSecondsCeil(d time.Duration) int64 {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// runScript executes script against Redis. go-redis's *redis.Script.Run
// already does the EVALSHA-then-EVAL-on-NOSCRIPT fallback and caches the
// uploaded SHA internally, so there is nothing to coalesce here: each call
// is its own independent, atomically-executed script invocation.
func (s *RedisStore) runScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	v, err := script.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return v, nil
}

func (s *RedisStore) ConsumeTokenBucket(ctx context.Context, name string, capacity, refillPerSec float64, _ time.Time, n float64) (bool, float64, time.Duration, error) {
	ttlSeconds := ttlSecondsCeil(s.idleTTL)
	res, err := s.runScript(ctx, tokenBucketScript, []string{name}, capacity, refillPerSec, n, ttlSeconds)
	if err != nil {
		return false, 0, 0, err
	}

	rows, ok := res.([]any)
	if !ok || len(rows) != 2 {
		return false, 0, 0, fmt.Errorf("storage: unexpected token bucket script reply: %v", res)
	}
	granted := toInt64(rows[0]) == 1
	remaining := toFloat64(rows[1])

	if granted {
		return true, remaining, 0, nil
	}
	deficit := n - remaining
	if deficit < 0 {
		deficit = 0
	}
	retryAfter := time.Duration(deficit / refillPerSec * float64(time.Second))
	return false, remaining, retryAfter, nil
}

func (s *RedisStore) ConsumeFixedWindow(ctx context.Context, name string, period time.Duration, limit int64, _ time.Time) (bool, int64, time.Time, error) {
	ttlSeconds := ttlSecondsCeil(period) * 2
	res, err := s.runScript(ctx, fixedWindowScript, []string{name}, period.Seconds(), limit, ttlSeconds)
	if err != nil {
		return false, 0, time.Time{}, err
	}

	rows, ok := res.([]any)
	if !ok || len(rows) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("storage: unexpected fixed window script reply: %v", res)
	}
	granted := toInt64(rows[0]) == 1
	count := toInt64(rows[1])
	start := toFloat64(rows[2])

	resetAt := time.Unix(0, 0).Add(time.Duration(start * float64(time.Second))).Add(period)
	return granted, count, resetAt, nil
}

func (s *RedisStore) Get(ctx context.Context, name string) (Record, bool, error) {
	vals, err := s.client.HGetAll(ctx, name).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(vals) == 0 {
		return Record{}, false, nil
	}
	return recordFromHash(vals), true, nil
}

func (s *RedisStore) CompareAndSet(ctx context.Context, name string, expected, next Record, ttl time.Duration) (bool, error) {
	ttlSeconds := int64(ttl.Seconds())
	res, err := s.runScript(ctx, circuitCASScript, []string{name},
		expected.Version,
		int(next.State),
		next.Failures,
		next.LastFailureAt.UnixNano(),
		next.OpenedAt.UnixNano(),
		next.HalfOpenProbes,
		ttlSeconds,
	)
	if err != nil {
		return false, err
	}
	return toInt64(res) == 1, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func recordFromHash(vals map[string]string) Record {
	return Record{
		State:          CircuitState(parseInt(vals["state"])),
		Failures:       int(parseInt(vals["failures"])),
		LastFailureAt:  time.Unix(0, parseInt(vals["lastFailure"])),
		OpenedAt:       time.Unix(0, parseInt(vals["openedAt"])),
		HalfOpenProbes: int(parseInt(vals["halfOpen"])),
		Version:        parseInt(vals["version"]),
	}
}

func parseInt(s string) int64 {
	var n int64
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		return parseInt(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case string:
		var f float64
		_, _ = fmt.Sscanf(n, "%g", &f)
		return f
	case int64:
		return float64(n)
	default:
		return 0
	}
}

var _ Store = (*RedisStore)(nil)
