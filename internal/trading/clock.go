package trading

import (
	"fmt"
	"sync"
	"time"

	"tradeguard/pkg/utils"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a settable clock for tests and simulations.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock returns a clock stopped at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now returns the current fixed instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// LockClock decides whether rule edits are allowed. Rules are editable all
// weekend and on weekdays before the lock time; from the lock time until
// midnight they are locked. Everything is evaluated in the clock's location,
// never the host's. Exchange holidays and early closes are not modelled.
type LockClock struct {
	clock      Clock
	location   *time.Location
	lockHour   int
	lockMinute int
	timeFormat string
}

// NewLockClock creates a lock clock for the given zone and weekday lock time.
// A nil location means US Eastern.
func NewLockClock(clock Clock, loc *time.Location, lockHour, lockMinute int) *LockClock {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = utils.EasternLocation()
	}
	return &LockClock{
		clock:      clock,
		location:   loc,
		lockHour:   lockHour,
		lockMinute: lockMinute,
		timeFormat: "3:04 PM",
	}
}

// NewMarketLockClock locks at 09:30 US Eastern, the NYSE/Nasdaq open.
func NewMarketLockClock(clock Clock) *LockClock {
	return NewLockClock(clock, utils.EasternLocation(), 9, 30)
}

// Location returns the reference zone.
func (c *LockClock) Location() *time.Location {
	return c.location
}

// Now returns the current time in the reference zone.
func (c *LockClock) Now() time.Time {
	return c.clock.Now().In(c.location)
}

// IsLocked reports whether rules are locked right now.
func (c *LockClock) IsLocked() bool {
	return c.IsLockedAt(c.clock.Now())
}

// IsLockedAt reports whether rules are locked at t.
func (c *LockClock) IsLockedAt(t time.Time) bool {
	t = t.In(c.location)
	if utils.IsWeekend(t) {
		return false
	}
	return !t.Before(c.lockTime(t))
}

// StatusText describes the lock state with the current reference-zone time.
func (c *LockClock) StatusText() string {
	return c.StatusTextAt(c.clock.Now())
}

// StatusTextAt describes the lock state at t.
func (c *LockClock) StatusTextAt(t time.Time) string {
	t = t.In(c.location)
	current := fmt.Sprintf("Current: %s %s", t.Format(c.timeFormat), t.Format("MST"))

	switch {
	case utils.IsWeekend(t):
		return "Weekend - Edit anytime | " + current
	case c.IsLockedAt(t):
		return "Locked until midnight | " + current
	default:
		lockAt := c.lockTime(t)
		return fmt.Sprintf("Editable until %s %s | %s", lockAt.Format(c.timeFormat), lockAt.Format("MST"), current)
	}
}

// NextUnlock returns when edits next become possible after t. An unlocked t
// returns t itself.
func (c *LockClock) NextUnlock(t time.Time) time.Time {
	t = t.In(c.location)
	if !c.IsLockedAt(t) {
		return t
	}
	return utils.AtClock(t, 0, 0).AddDate(0, 0, 1)
}

// NextLock returns the next weekday lock time strictly after t.
func (c *LockClock) NextLock(t time.Time) time.Time {
	return utils.NextWeekdayAt(t.In(c.location), c.lockHour, c.lockMinute)
}

func (c *LockClock) lockTime(t time.Time) time.Time {
	return utils.AtClock(t, c.lockHour, c.lockMinute)
}

// SetTimeFormat overrides the clock layout used in status text.
func (c *LockClock) SetTimeFormat(layout string) {
	if layout != "" {
		c.timeFormat = layout
	}
}
