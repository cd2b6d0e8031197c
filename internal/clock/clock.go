package clock

import (
	"sync"
	"time"
)

// Civil is the fixed school timezone (WIB, UTC+7). All "same day" decisions use it.
var Civil = time.FixedZone("WIB", 7*60*60)

// DateLayout is the civil calendar date format stored next to attendance records.
const DateLayout = "2006-01-02"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock and reports it in the civil timezone.
type System struct{}

// Now returns the current time in WIB.
func (System) Now() time.Time { return time.Now().In(Civil) }

// Date returns the civil calendar date of t.
func Date(t time.Time) string {
	return t.In(Civil).Format(DateLayout)
}

// Manual is a settable clock for tests and tooling.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual starts a manual clock at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.In(Civil)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.In(Civil)
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
