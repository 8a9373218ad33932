package redis

import "strings"

const keyNamespace = "kb"

// keyspace builds namespaced keys. Blank parts are dropped.
type keyspace struct{}

func (keyspace) key(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

func (k keyspace) IdempotencyKey(scope, id string) string { return k.key("idempotency", scope, id) }

func (k keyspace) RateLimitKey(scope string) string { return k.key("rate_limit", scope) }

func (k keyspace) LockKey(name string) string { return k.key("lock", name) }
