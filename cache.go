package dql

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Cache stores encoded compiled statements. Any byte store with TTLs fits
// (Redis, Memcached); compiler.MemoryCache is the in-process one.
type Cache interface {
	// Get returns the value stored under key, or nil, nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
}

// CacheKey identifies a compiled statement.
type CacheKey struct {
	Dialect   string
	Operation string
	Statement string
	Quoted    bool
	// Args is the number of arguments the statement is compiled with.
	Args int
}

// Prefix returns the key prefix shared by every statement of the dialect.
// It can be passed to Cache.DeletePrefix after the metadata registry changed.
func (k CacheKey) Prefix() string {
	return "dql:" + k.Dialect + ":"
}

// String returns the string representation of the cache key. Runs of
// whitespace in the statement collapse to one space, except inside quoted
// literals.
func (k CacheKey) String() string {
	return k.Prefix() + k.Operation + ":" + strconv.FormatBool(k.Quoted) + ":" + strconv.Itoa(k.Args) + ":" + normalizeSpace(k.Statement)
}

func normalizeSpace(s string) string {
	var (
		b     strings.Builder
		quote rune
		space bool
	)
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case unicode.IsSpace(r):
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
