package telebirr

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign produces the request signature telebirr expects: parameters sorted by
// key, concatenated as key=value pairs joined with &, the shared appKey
// appended, and the whole string SHA-256 hashed to lowercase hex. Kept pure
// so signing is testable without network I/O.
func Sign(params map[string]string, appKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	sb.WriteString(appKey)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
