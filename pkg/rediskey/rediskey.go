package rediskey

import "fmt"

// Sequence namespaces (shared convention across services)
const (
	SequencePrefix = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSequenceKey returns "seq:{prefix}:{scope}:{date}", the daily counter
// behind human-facing record codes.
func BuildSequenceKey(prefix, scope, date string) string {
	return NamespaceKey(SequencePrefix, fmt.Sprintf("%s:%s:%s", prefix, scope, date))
}
