package transport

import (
	"sync"
	"time"
)

// DefaultSyncDelay and DefaultPingTimeout mirror
// original_source/client/src/net/heartbeat.rs's DEFAULT_PING_DELAY_SECONDS
// and PING_TIMEOUT_SECONDS.
const (
	DefaultSyncDelay   = 5 * time.Second
	DefaultPingTimeout = 5 * time.Second
)

// Heartbeat tracks liveness of one control-channel peer: when a ping is
// due, and when the peer should be declared unresponsive per spec.md's
// "(now - last_sync) > sync_delay + ping_timeout" rule.
type Heartbeat struct {
	syncDelay   time.Duration
	pingTimeout time.Duration

	mu       sync.Mutex
	lastSync time.Time
	pingSent bool
}

// NewHeartbeat builds a Heartbeat with the given sync delay and ping
// timeout. last_sync starts unset; PingNeeded and Unresponsive both
// return false until Update is first called, matching the original's
// Option<DateTime> default.
func NewHeartbeat(syncDelay, pingTimeout time.Duration) *Heartbeat {
	return &Heartbeat{syncDelay: syncDelay, pingTimeout: pingTimeout}
}

// Update records a successful sync (a received SyncSuccessful pong, or
// any other liveness signal) and clears the pending-ping flag.
func (h *Heartbeat) Update(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSync = now
	h.pingSent = false
}

// PingNeeded reports whether a ping should be sent now: the sync delay
// has elapsed since the last sync and no ping is already outstanding.
func (h *Heartbeat) PingNeeded(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastSync.IsZero() {
		return false
	}
	return now.Sub(h.lastSync) > h.syncDelay && !h.pingSent
}

// MarkPingSent records that a ping was just sent, so PingNeeded won't
// fire again until the next Update.
func (h *Heartbeat) MarkPingSent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pingSent = true
}

// PingTimeout returns the configured ping timeout, for diagnostics.
func (h *Heartbeat) PingTimeout() time.Duration { return h.pingTimeout }

// Unresponsive reports whether the peer has gone quiet long enough to be
// declared dead: a ping is outstanding and sync_delay+ping_timeout has
// elapsed since the last sync.
func (h *Heartbeat) Unresponsive(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastSync.IsZero() {
		return false
	}
	return now.Sub(h.lastSync) > h.syncDelay+h.pingTimeout && h.pingSent
}
