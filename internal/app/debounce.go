package app

import "time"

// DefaultDebounce is the quiet interval required before a query dispatches.
const DefaultDebounce = 300 * time.Millisecond

// DebounceTicket identifies one scheduled debounce fire. The event loop sleeps
// for Delay and then reports Seq back; only the newest ticket is honored.
type DebounceTicket struct {
	Seq   uint64
	Delay time.Duration
	Query string
}

// Debouncer owns the single pending debounce timer of a search box.
// Scheduling supersedes any earlier ticket; Cancel releases the pending one.
type Debouncer struct {
	delay   time.Duration
	seq     uint64
	pending bool
}

// NewDebouncer constructs a debouncer; non-positive delays use DefaultDebounce.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay}
}

// Delay returns the configured quiet interval.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Schedule starts a new debounce window and returns its sequence number.
func (d *Debouncer) Schedule() uint64 {
	d.seq++
	d.pending = true
	return d.seq
}

// Fire consumes the pending ticket when seq is the newest one scheduled.
func (d *Debouncer) Fire(seq uint64) bool {
	if !d.pending || seq != d.seq {
		return false
	}
	d.pending = false
	return true
}

// Cancel drops the pending ticket, if any.
func (d *Debouncer) Cancel() {
	d.pending = false
}

// Pending reports whether an un-fired ticket exists.
func (d *Debouncer) Pending() bool {
	return d.pending
}
