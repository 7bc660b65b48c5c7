// Package identity derives the string keys the limiters throttle on: a
// best-effort client IP for the global flood guard, and a salted one-way
// hash of either an API key ID or an IP for per-endpoint quotas, so counter
// keys never carry raw PII.
package identity

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Unknown is the sentinel identity used when no client address can be
// determined. All such requests share one counter, which is the safe
// direction to fail.
const Unknown = "unknown"

var ErrEmptySubject = errors.New("identity: empty subject")

// ClientIP extracts the caller's address from r. Edge-injected headers are
// preferred over client-spoofable ones; X-Forwarded-For uses the first
// comma-separated entry.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		return addr
	}
	return Unknown
}

// Hasher turns raw subjects (API key IDs, IPs) into stable pseudo-identities.
type Hasher struct {
	salt string
}

func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Pseudonym returns a salted 128-bit hash of subject, hex encoded. Callers
// must treat an error as a denial, never as permission to skip the check.
func (h *Hasher) Pseudonym(subject string) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	hi, lo := murmur3.Sum128([]byte(h.salt + ":" + subject))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], hi)
	binary.BigEndian.PutUint64(buf[8:], lo)
	return hex.EncodeToString(buf[:]), nil
}
