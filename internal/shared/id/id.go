// Package id generates the prefixed ULIDs used across the service.
//
// Every id has the form "<prefix>_<ULID>". ULIDs sort by creation time, so
// listings ordered by id are ordered by age.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a capture session.
type SessionID string

// RequestID identifies an API request.
type RequestID string

// ReportID identifies a security checklist report.
type ReportID string

// NotificationID identifies a user notification.
type NotificationID string

const (
	SessionPrefix      = "sess"
	RequestPrefix      = "req"
	ReportPrefix       = "rpt"
	NotificationPrefix = "ntf"
)

// Generator produces ULIDs from an entropy source.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(nil)
	})
	return defaultGenerator
}

// NewGenerator creates a generator. A nil entropy source uses crypto/rand
// through a monotonic reader, so ids minted within one millisecond still
// sort in creation order.
func NewGenerator(entropy io.Reader) *Generator {
	if entropy == nil {
		entropy = ulid.Monotonic(rand.Reader, 0)
	}
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// WithPrefix creates "<prefix>_<ULID>".
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

func NewSessionID() SessionID { return SessionID(Default().WithPrefix(SessionPrefix)) }
func NewRequestID() RequestID { return RequestID(Default().WithPrefix(RequestPrefix)) }
func NewReportID() ReportID   { return ReportID(Default().WithPrefix(ReportPrefix)) }
func NewNotificationID() NotificationID {
	return NotificationID(Default().WithPrefix(NotificationPrefix))
}

func (id SessionID) String() string      { return string(id) }
func (id RequestID) String() string      { return string(id) }
func (id ReportID) String() string       { return string(id) }
func (id NotificationID) String() string { return string(id) }

// Split separates a prefixed id into prefix and ULID and validates the ULID.
func Split(s string) (prefix string, u ulid.ULID, err error) {
	prefix, raw, ok := strings.Cut(s, "_")
	if !ok {
		return "", ulid.ULID{}, fmt.Errorf("id %q has no prefix", s)
	}
	u, err = ulid.Parse(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("id %q: %w", s, err)
	}
	return prefix, u, nil
}

// HasPrefix reports whether s is a valid id with the given prefix.
func HasPrefix(s, prefix string) bool {
	p, _, err := Split(s)
	return err == nil && p == prefix
}

// Timestamp returns the creation time encoded in a prefixed id.
func Timestamp(s string) (time.Time, error) {
	_, u, err := Split(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
