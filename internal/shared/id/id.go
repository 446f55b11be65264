// Package id mints the identifiers the service hands out.
//
// Managed objects are identified by UUIDs because their identity is part of
// the archived data. Everything the service itself mints (webhooks, watches,
// requests, spans, connections) gets a prefixed ULID instead:
//   - Sortable: ids from one generator sort in creation order
//   - Prefixed: wh_*, sub_*, req_*, span_*, conn_* tell the kind at a glance
//   - Typed: separate string types keep a WatchID from passing as a WebhookID
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// WebhookID identifies a registered webhook sink
type WebhookID string

// RequestID identifies an API request and the trace it starts
type RequestID string

// SpanID identifies one span within a trace
type SpanID string

// WatchID identifies a topic watch
type WatchID string

// ConnID identifies a WebSocket connection
type ConnID string

// Prefixes of the typed ids
const (
	WebhookPrefix = "wh"
	RequestPrefix = "req"
	SpanPrefix    = "span"
	WatchPrefix   = "sub"
	ConnPrefix    = "conn"
)

// Generator mints ULIDs. Ids minted within the same millisecond are
// monotonically increasing.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader // Protected by mu
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a "<prefix>_<ulid>" string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + "_" + g.Generate().String()
}

func newID[T ~string](prefix string) T {
	return T(Default().GenerateWithPrefix(prefix))
}

// NewWebhookID generates a new webhook ID
func NewWebhookID() WebhookID { return newID[WebhookID](WebhookPrefix) }

// NewRequestID generates a new request ID
func NewRequestID() RequestID { return newID[RequestID](RequestPrefix) }

// NewSpanID generates a new span ID
func NewSpanID() SpanID { return newID[SpanID](SpanPrefix) }

// NewWatchID generates a new watch ID
func NewWatchID() WatchID { return newID[WatchID](WatchPrefix) }

// NewConnID generates a new connection ID
func NewConnID() ConnID { return newID[ConnID](ConnPrefix) }

func (id WebhookID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id SpanID) String() string    { return string(id) }
func (id WatchID) String() string   { return string(id) }
func (id ConnID) String() string    { return string(id) }

// Split separates a prefixed ID into its prefix and ULID parts.
// An unprefixed ID yields an empty prefix.
func Split(id string) (prefix, value string) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// HasPrefix reports whether id carries prefix and a valid ULID
func HasPrefix(id, prefix string) bool {
	p, value := Split(id)
	return p == prefix && IsValid(value)
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// Timestamp extracts the creation time from an id, prefixed or not
func Timestamp(id string) (time.Time, error) {
	_, value := Split(id)
	parsed, err := ulid.ParseStrict(value)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
