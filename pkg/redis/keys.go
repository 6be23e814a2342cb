package redis

import "strings"

const defaultKeyPrefix = "bs"

// Keyspace builds colon separated keys under one prefix so several
// deployments can share a Redis database.
type Keyspace string

func (k Keyspace) key(kind string, parts ...string) string {
	prefix := string(k)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey is where a replayable response for (scope, id) lives.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.key("idempotency", scope, id)
}

// LockKey names a mutual exclusion lock, e.g. LockKey("ledger", residentID).
func (k Keyspace) LockKey(parts ...string) string {
	return k.key("lock", parts...)
}

// AccessSessionKey holds the refresh token bound to an access token id.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.key("session", accessID)
}

// RateLimitKey holds a fixed-window attempt counter.
func (k Keyspace) RateLimitKey(parts ...string) string {
	return k.key("rl", parts...)
}
