package browser

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/pagelens/internal/domain/pentest"
)

// RequestLog records requests issued by a page, oldest first. Once full it
// drops the oldest entry.
type RequestLog struct {
	mu    sync.Mutex
	limit int
	reqs  []pentest.Request
	now   func() time.Time
}

var _ pentest.RequestLog = (*RequestLog)(nil)

// NewRequestLog creates a log holding at most limit requests.
func NewRequestLog(limit int) *RequestLog {
	if limit <= 0 {
		limit = DefaultConfig().RequestLogSize
	}
	return &RequestLog{limit: limit, now: time.Now}
}

// Add records a request.
func (l *RequestLog) Add(url, method string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, pentest.Request{URL: url, Method: method, Timestamp: l.now()})
	if over := len(l.reqs) - l.limit; over > 0 {
		l.reqs = append(l.reqs[:0:0], l.reqs[over:]...)
	}
}

// Requests implements pentest.RequestLog.
func (l *RequestLog) Requests() []pentest.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]pentest.Request(nil), l.reqs...)
}

// Len returns the number of recorded requests.
func (l *RequestLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reqs)
}
