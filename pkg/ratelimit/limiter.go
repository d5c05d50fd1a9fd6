package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/richxcame/fraud-screening/pkg/config"
)

// IdentityType distinguishes how a caller was identified for limiting.
type IdentityType int

const (
	// IdentityAnonymous keys the limit on the caller's IP address.
	IdentityAnonymous IdentityType = iota
	// IdentityAuthenticated keys the limit on the caller's subject claim.
	IdentityAuthenticated
)

// Rule is the resolved limit applied to one request.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result reports the limiter's decision for one request.
type Result struct {
	Allowed      bool
	Remaining    int
	RetryAfter   time.Duration
	Limit        int
	Window       time.Duration
	ResetAfter   time.Duration
	IdentityKey  string
	EndpointKey  string
	IdentityType IdentityType
}

// slidingWindowScript keeps a per-key sorted set of request timestamps,
// expires entries older than the window, and admits the request while the
// set holds fewer than limit+burst members. Fractional values return as
// strings because Lua numbers truncate to integers on the wire.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count < max then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, math.ceil(window * 1000))
  return {1, max - count - 1, '0', '0'}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retry = 0
if oldest[2] then
  retry = (tonumber(oldest[2]) + window) - now
  if retry < 0 then
    retry = 0
  end
end
return {0, 0, tostring(retry), tostring(retry)}
`

// Limiter enforces sliding-window rate limits backed by Redis.
type Limiter struct {
	client redis.UniversalClient
	script *redis.Script
	cfg    config.RateLimitConfig
	now    func() time.Time
}

// NewLimiter creates a new rate limiter.
func NewLimiter(client redis.UniversalClient, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		script: redis.NewScript(slidingWindowScript),
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithNow overrides the limiter's clock.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// RuleFor resolves the limit for an endpoint and identity class, applying
// any endpoint override on top of the configured defaults.
func (l *Limiter) RuleFor(endpoint string, identity IdentityType) Rule {
	limit, burst := l.cfg.DefaultLimit, l.cfg.DefaultBurst
	if identity == IdentityAnonymous {
		limit, burst = l.cfg.AnonymousLimit, l.cfg.AnonymousBurst
	}
	window := l.cfg.Window()

	if override, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		overrideLimit, overrideBurst := override.AuthenticatedLimit, override.AuthenticatedBurst
		if identity == IdentityAnonymous {
			overrideLimit, overrideBurst = override.AnonymousLimit, override.AnonymousBurst
		}
		if overrideLimit > 0 {
			limit = overrideLimit
		}
		burst = overrideBurst
		if override.WindowSeconds > 0 {
			window = time.Duration(override.WindowSeconds) * time.Second
		}
	}

	if burst < 0 {
		burst = 0
	}
	return Rule{Limit: limit, Burst: burst, Window: window}
}

// Allow decides whether the identified caller may proceed. A disabled
// limiter and non-positive limits always admit.
func (l *Limiter) Allow(ctx context.Context, endpoint, identity string, rule Rule, identityType IdentityType) (Result, error) {
	result := Result{
		Allowed:      true,
		Remaining:    rule.Limit,
		Limit:        rule.Limit,
		Window:       rule.Window,
		IdentityKey:  identity,
		EndpointKey:  endpoint,
		IdentityType: identityType,
	}

	if !l.cfg.Enabled || rule.Limit <= 0 {
		return result, nil
	}

	window := rule.Window
	if window <= 0 {
		window = l.cfg.Window()
		result.Window = window
	}

	burst := rule.Burst
	if burst < 0 {
		burst = 0
	}

	key := fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpoint, identity)
	nowSeconds := float64(l.now().UnixNano()) / float64(time.Second)

	raw, err := l.script.Run(ctx, l.client, []string{key},
		formatFloat(nowSeconds),
		formatFloat(window.Seconds()),
		strconv.Itoa(rule.Limit+burst),
		uuid.NewString(),
	).Result()
	if err != nil {
		return result, fmt.Errorf("rate limit script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) < 4 {
		return result, fmt.Errorf("unexpected rate limit reply type %T", raw)
	}

	result.Allowed = toInt(values[0]) == 1
	result.Remaining = toInt(values[1])
	result.RetryAfter = time.Duration(toFloat(values[2]) * float64(time.Second))
	result.ResetAfter = time.Duration(toFloat(values[3]) * float64(time.Second))
	return result, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 10, 64)
}

func toInt(v interface{}) int {
	switch value := v.(type) {
	case int64:
		return int(value)
	case int:
		return value
	case float64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case int64:
		return float64(value)
	case int:
		return float64(value)
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
