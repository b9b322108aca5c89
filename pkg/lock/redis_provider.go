package lock

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisProvider implements Provider over a Redis client, storing each
// lock under "unet:lock:<key>". Exclusive,
// Leader and Critical locks share one holder slot per key; Shared locks
// hold each holder under its own nonce-keyed sub-key so concurrent readers
// don't contend with each other.
type RedisProvider struct {
	client          *redis.Client
	totalAcquired   int64
	contentionCount int64
}

// NewRedisProvider wraps an existing Redis client.
func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

func redisKey(key string) string               { return "unet:lock:" + key }
func infoHashKey(key string) string            { return "unet:lock:info:" + key }
func sharedSetKey(key string) string           { return "unet:lock:shared:" + key }
func sharedMemberKey(key, nonce string) string  { return "unet:lock:shared:" + key + ":" + nonce }

// releaseScript is a compare-and-delete: it only removes the lock record if
// the stored nonce and owner still match the caller's, so a GET-then-DEL
// race can never delete a lease a different holder has since acquired.
var releaseScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if stored == false or stored ~= ARGV[1] then
	return 0
end
local owner = redis.call("HGET", KEYS[2], "owner_id")
if owner == false or owner ~= ARGV[2] then
	return 0
end
redis.call("DEL", KEYS[1], KEYS[2])
return 1
`)

// extendScript renews the lease key and its info hash together, atomically
// with the nonce check, so an expiring lease can't be extended out from
// under a new holder that just won it.
var extendScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if stored == false or stored ~= ARGV[1] then
	return 0
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
redis.call("PEXPIRE", KEYS[2], ARGV[2])
redis.call("HINCRBY", KEYS[2], "renewal_count", 1)
return 1
`)

// Acquire performs an atomic SETNX+EXPIRE for Exclusive/Leader/Critical
// locks, or adds a nonce-keyed holder for Shared locks.
func (p *RedisProvider) Acquire(ctx context.Context, key, nonce, ownerID string, lockType Type, ttl time.Duration) (bool, error) {
	if lockType == TypeShared {
		return p.acquireShared(ctx, key, nonce, ownerID, ttl)
	}
	return p.acquireExclusive(ctx, key, nonce, ownerID, lockType, ttl)
}

func (p *RedisProvider) acquireExclusive(ctx context.Context, key, nonce, ownerID string, lockType Type, ttl time.Duration) (bool, error) {
	active, err := p.activeSharedHolders(ctx, key)
	if err != nil {
		return false, err
	}
	if len(active) > 0 {
		atomic.AddInt64(&p.contentionCount, 1)
		return false, nil
	}

	ok, err := p.client.SetNX(ctx, redisKey(key), nonce, ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		atomic.AddInt64(&p.contentionCount, 1)
		return false, nil
	}

	now := time.Now()
	p.client.HSet(ctx, infoHashKey(key), map[string]interface{}{
		"owner_id":    ownerID,
		"type":        string(lockType),
		"acquired_at": now.Format(time.RFC3339Nano),
		"expires_at":  now.Add(ttl).Format(time.RFC3339Nano),
	})
	p.client.Expire(ctx, infoHashKey(key), ttl)

	atomic.AddInt64(&p.totalAcquired, 1)
	return true, nil
}

func (p *RedisProvider) acquireShared(ctx context.Context, key, nonce, ownerID string, ttl time.Duration) (bool, error) {
	held, err := p.client.Exists(ctx, redisKey(key)).Result()
	if err != nil {
		return false, err
	}
	if held > 0 {
		atomic.AddInt64(&p.contentionCount, 1)
		return false, nil
	}

	now := time.Now()
	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, sharedMemberKey(key, nonce), map[string]interface{}{
		"owner_id":    ownerID,
		"acquired_at": now.Format(time.RFC3339Nano),
		"expires_at":  now.Add(ttl).Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, sharedMemberKey(key, nonce), ttl)
	pipe.SAdd(ctx, sharedSetKey(key), nonce)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	atomic.AddInt64(&p.totalAcquired, 1)
	return true, nil
}

// activeSharedHolders prunes nonces whose per-holder key has already
// expired out of the membership set and returns the survivors.
func (p *RedisProvider) activeSharedHolders(ctx context.Context, key string) ([]string, error) {
	nonces, err := p.client.SMembers(ctx, sharedSetKey(key)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	var active []string
	var stale []interface{}
	for _, nonce := range nonces {
		exists, err := p.client.Exists(ctx, sharedMemberKey(key, nonce)).Result()
		if err != nil {
			return nil, err
		}
		if exists > 0 {
			active = append(active, nonce)
		} else {
			stale = append(stale, nonce)
		}
	}
	if len(stale) > 0 {
		p.client.SRem(ctx, sharedSetKey(key), stale...)
	}
	return active, nil
}

// Release releases an Exclusive/Leader/Critical lease iff the caller's
// nonce and owner still match (via releaseScript's atomic compare-and-
// delete), falling back to the Shared-holder path when no exclusive
// record matches — a Shared holder's key is itself nonce-scoped, so no
// separate CAS is needed there.
func (p *RedisProvider) Release(ctx context.Context, key, nonce, ownerID string) (bool, error) {
	res, err := releaseScript.Run(ctx, p.client, []string{redisKey(key), infoHashKey(key)}, nonce, ownerID).Result()
	if err != nil {
		return false, err
	}
	if n, _ := res.(int64); n == 1 {
		return true, nil
	}

	storedOwner, err := p.client.HGet(ctx, sharedMemberKey(key, nonce), "owner_id").Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if storedOwner != ownerID {
		return false, nil
	}
	p.client.Del(ctx, sharedMemberKey(key, nonce))
	p.client.SRem(ctx, sharedSetKey(key), nonce)
	return true, nil
}

// Extend renews an existing lock's TTL iff nonce still matches: an
// Exclusive/Leader/Critical lease via extendScript's atomic check, or a
// Shared holder's own nonce-scoped key otherwise.
func (p *RedisProvider) Extend(ctx context.Context, key, nonce string, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, p.client, []string{redisKey(key), infoHashKey(key)}, nonce, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	if n, _ := res.(int64); n == 1 {
		return true, nil
	}

	n, err := p.client.Expire(ctx, sharedMemberKey(key, nonce), ttl).Result()
	if err != nil {
		return false, err
	}
	if n {
		p.client.HIncrBy(ctx, sharedMemberKey(key, nonce), "renewal_count", 1)
	}
	return n, nil
}

// GetInfo returns the exclusive-family holder for key if one exists, else
// the most recently acquired Shared holder. Use List to see every Shared
// holder.
func (p *RedisProvider) GetInfo(ctx context.Context, key string) (*Info, error) {
	value, err := p.client.Get(ctx, redisKey(key)).Result()
	if err == nil {
		fields, err := p.client.HGetAll(ctx, infoHashKey(key)).Result()
		if err != nil {
			return nil, err
		}
		return fieldsToInfo(key, value, fields), nil
	}
	if err != redis.Nil {
		return nil, err
	}

	active, err := p.activeSharedHolders(ctx, key)
	if err != nil {
		return nil, err
	}
	var latest *Info
	for _, nonce := range active {
		fields, err := p.client.HGetAll(ctx, sharedMemberKey(key, nonce)).Result()
		if err != nil {
			return nil, err
		}
		info := fieldsToInfo(key, nonce, fields)
		info.Type = TypeShared
		if latest == nil || info.AcquiredAt.After(latest.AcquiredAt) {
			latest = info
		}
	}
	return latest, nil
}

func fieldsToInfo(key, value string, fields map[string]string) *Info {
	acquiredAt, _ := time.Parse(time.RFC3339Nano, fields["acquired_at"])
	expiresAt, _ := time.Parse(time.RFC3339Nano, fields["expires_at"])
	renewalCount, _ := strconv.Atoi(fields["renewal_count"])
	lockType := Type(fields["type"])
	if lockType == "" {
		lockType = TypeExclusive
	}
	return &Info{
		Key:          key,
		Value:        value,
		OwnerID:      fields["owner_id"],
		Type:         lockType,
		AcquiredAt:   acquiredAt,
		ExpiresAt:    expiresAt,
		RenewalCount: renewalCount,
	}
}

// List scans for keys under the lock namespace and returns their info, one
// row per exclusive-family key and one row per active Shared holder.
func (p *RedisProvider) List(ctx context.Context) ([]*Info, error) {
	var out []*Info
	iter := p.client.Scan(ctx, 0, "unet:lock:*", 0).Iterator()
	seen := map[string]bool{}
	for iter.Next(ctx) {
		k := iter.Val()
		switch {
		case len(k) > len("unet:lock:info:") && k[:len("unet:lock:info:")] == "unet:lock:info:":
			continue
		case len(k) > len("unet:lock:shared:") && k[:len("unet:lock:shared:")] == "unet:lock:shared:":
			continue
		}
		key := k[len("unet:lock:"):]
		if seen[key] {
			continue
		}
		seen[key] = true

		value, err := p.client.Get(ctx, redisKey(key)).Result()
		if err != nil {
			continue
		}
		fields, err := p.client.HGetAll(ctx, infoHashKey(key)).Result()
		if err == nil {
			out = append(out, fieldsToInfo(key, value, fields))
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sharedKeys, err := p.scanSharedKeys(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range sharedKeys {
		active, err := p.activeSharedHolders(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, nonce := range active {
			fields, err := p.client.HGetAll(ctx, sharedMemberKey(key, nonce)).Result()
			if err != nil {
				continue
			}
			info := fieldsToInfo(key, nonce, fields)
			info.Type = TypeShared
			out = append(out, info)
		}
	}
	return out, nil
}

// scanSharedKeys returns the set of lock keys that have a Shared-holder
// membership set, decoded from "unet:lock:shared:<key>" (the per-member
// keys carry a trailing ":<nonce>" and are skipped).
func (p *RedisProvider) scanSharedKeys(ctx context.Context) ([]string, error) {
	prefix := "unet:lock:shared:"
	var keys []string
	iter := p.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		rest := k[len(prefix):]
		isMember := false
		for i := 0; i < len(rest); i++ {
			if rest[i] == ':' {
				isMember = true
				break
			}
		}
		if !isMember {
			keys = append(keys, rest)
		}
	}
	return keys, iter.Err()
}

// Stats reports cumulative acquisition counters and the currently-held count.
func (p *RedisProvider) Stats(ctx context.Context) (Stats, error) {
	held, err := p.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalAcquired:   atomic.LoadInt64(&p.totalAcquired),
		CurrentlyHeld:   int64(len(held)),
		ContentionCount: atomic.LoadInt64(&p.contentionCount),
	}, nil
}
