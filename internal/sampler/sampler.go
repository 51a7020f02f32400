// Package sampler implements the throughput sampler: per-connection rolling
// per-second byte-rate buckets over send/receive/throughput sample queues.
package sampler

import (
	"net"
	"sync"
	"time"

	"github.com/cespare/xxhash"

	"github.com/sipcapture/xailyser/internal/dpi"
)

// Sample is one observed frame: its captured length and capture time.
type Sample struct {
	CapturedBytes uint64
	TimeCaptured  time.Time
}

// SpeedUnit controls the scale applied to captured-byte counts during
// bucketing, so a unit change never requires re-queueing samples.
type SpeedUnit int

const (
	BitsPerSecond SpeedUnit = iota
	BytesPerSecond
	KilobytesPerSecond
	MegabytesPerSecond
	GigabytesPerSecond
)

func (u SpeedUnit) scale(capturedBytes uint64) float64 {
	b := float64(capturedBytes)
	switch u {
	case BitsPerSecond:
		return b * 8
	case KilobytesPerSecond:
		return b / 1024
	case MegabytesPerSecond:
		return b / (1024 * 1024)
	case GigabytesPerSecond:
		return b / (1024 * 1024 * 1024)
	default: // BytesPerSecond
		return b
	}
}

// queue is a FIFO of samples, oldest first.
type queue struct {
	samples []Sample
}

func (q *queue) append(s Sample) {
	q.samples = append(q.samples, s)
}

// buckets prunes samples older than w seconds as of now, then recomputes
// the W+1 rolling per-second buckets, scaled by unit.
func (q *queue) buckets(now time.Time, w int, unit SpeedUnit) []float64 {
	drop := 0
	for drop < len(q.samples) && now.Sub(q.samples[drop].TimeCaptured) > time.Duration(w)*time.Second {
		drop++
	}
	q.samples = q.samples[drop:]

	out := make([]float64, w+1)
	for _, s := range q.samples {
		age := int(now.Sub(s.TimeCaptured) / time.Second)
		if age < 0 {
			age = 0
		}
		if age <= w {
			out[age] += unit.scale(s.CapturedBytes)
		}
	}
	return out
}

// Connection is the per-connection sampler state named by §4.7: three
// aligned sample queues tagging traffic by direction relative to the
// private/unique-local side of the link.
type Connection struct {
	mu         sync.Mutex
	throughput queue
	send       queue
	receive    queue
}

// Observe tags and records one completed frame. A frame with no decoded IP
// layer updates only the throughput queue, from the header alone. A frame
// whose source address is private/unique-local is also recorded to send;
// one whose destination is private/unique-local is also recorded to
// receive — independently, so a frame between two private hosts lands in
// both. A frame with neither a private source nor a private destination
// lands only in throughput.
func (c *Connection) Observe(meta *dpi.FrameMetadata, capturedBytes uint64, capturedAt time.Time) {
	sample := Sample{CapturedBytes: capturedBytes, TimeCaptured: capturedAt}

	c.mu.Lock()
	defer c.mu.Unlock()

	src, dst, ok := ipAddresses(meta)
	if !ok {
		c.throughput.append(sample)
		return
	}

	send := dpi.IsPrivateAddr(src)
	receive := dpi.IsPrivateAddr(dst)
	if !send && !receive {
		c.throughput.append(sample)
		return
	}
	if send {
		c.send.append(sample)
	}
	if receive {
		c.receive.append(sample)
	}
}

// Buckets recomputes the three rolling bucket vectors as of now.
func (c *Connection) Buckets(now time.Time, w int, unit SpeedUnit) (throughput, send, receive []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.throughput.buckets(now, w, unit), c.send.buckets(now, w, unit), c.receive.buckets(now, w, unit)
}

func ipAddresses(meta *dpi.FrameMetadata) (src, dst net.IP, ok bool) {
	for _, layer := range meta.Layers {
		switch l := layer.(type) {
		case *dpi.Ipv4Layer:
			return l.Source, l.Destination, true
		case *dpi.Ipv6Layer:
			return l.Source, l.Destination, true
		}
	}
	return nil, nil, false
}

// Sampler multiplexes per-connection state across every active capture
// session, keyed by a caller-chosen identifier hashed with xxhash — the
// same fold-fields-through-one-hash approach gopacket's Flow type uses
// internally for its own FastHash, applied here to connection identity
// instead of a packet's 4-tuple.
type Sampler struct {
	mu          sync.Mutex
	connections map[uint64]*Connection
}

// New builds an empty Sampler.
func New() *Sampler {
	return &Sampler{connections: make(map[uint64]*Connection)}
}

// Key folds an arbitrary connection identifier into the stable key Sampler
// uses to keep connections apart.
func Key(identifier string) uint64 {
	return xxhash.Sum64([]byte(identifier))
}

func (s *Sampler) connection(key uint64) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[key]
	if !ok {
		c = &Connection{}
		s.connections[key] = c
	}
	return c
}

// Observe records one completed frame against the connection identified by
// key, creating its state on first use.
func (s *Sampler) Observe(key uint64, meta *dpi.FrameMetadata, capturedBytes uint64, capturedAt time.Time) {
	s.connection(key).Observe(meta, capturedBytes, capturedAt)
}

// Buckets recomputes the rolling bucket vectors for the connection
// identified by key.
func (s *Sampler) Buckets(key uint64, now time.Time, w int, unit SpeedUnit) (throughput, send, receive []float64) {
	return s.connection(key).Buckets(now, w, unit)
}

// Remove drops all state for a connection, e.g. once its subscriber
// disconnects.
func (s *Sampler) Remove(key uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, key)
}
