// Package fanout broadcasts decoded frames from one capture session to any
// number of subscribers, each reading at its own pace.
package fanout

import (
	"sync"

	"github.com/sipcapture/xailyser/internal/dpi"
)

// Subscriber receives broadcast frames in capture order through Frames().
// Its internal queue is unbounded: a slow subscriber never causes a frame
// to be dropped, and never blocks the producer.
type Subscriber struct {
	id     uint64
	frames chan dpi.FrameType
	done   chan struct{}

	mu    sync.Mutex
	cond  *sync.Cond
	queue []dpi.FrameType
}

func newSubscriber(id uint64) *Subscriber {
	s := &Subscriber{
		id:     id,
		frames: make(chan dpi.FrameType),
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

// Frames is the channel a consumer ranges over to receive broadcast
// frames.
func (s *Subscriber) Frames() <-chan dpi.FrameType { return s.frames }

// Disconnect signals that this subscriber's consumer is gone. Publish
// observes it on the next broadcast pass and the fanout drops it.
func (s *Subscriber) Disconnect() {
	s.mu.Lock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *Subscriber) disconnected() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscriber) push(f dpi.FrameType) {
	s.mu.Lock()
	s.queue = append(s.queue, f)
	s.cond.Signal()
	s.mu.Unlock()
}

// pump drains the unbounded queue into the bounded Frames() channel,
// blocking only on the channel send — never on the broadcaster.
func (s *Subscriber) pump() {
	defer close(s.frames)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.disconnected() {
				s.mu.Unlock()
				return
			}
			s.cond.Wait()
		}
		f := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.frames <- f:
		case <-s.done:
			return
		}
	}
}

// Fanout is a one-producer-many-consumer broadcaster of decoded frames.
// Membership changes (subscribe, disconnect) are guarded by a mutex;
// broadcasting a frame never holds that mutex while pushing to a
// subscriber, so one slow reader can't stall another's subscription.
type Fanout struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers map[uint64]*Subscriber
}

// New builds an empty Fanout.
func New() *Fanout {
	return &Fanout{subscribers: make(map[uint64]*Subscriber)}
}

// Subscribe registers a new subscriber and starts delivering broadcasts to
// it.
func (f *Fanout) Subscribe() *Subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := newSubscriber(f.nextID)
	f.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe disconnects and immediately removes sub.
func (f *Fanout) Unsubscribe(sub *Subscriber) {
	sub.Disconnect()
	f.mu.Lock()
	delete(f.subscribers, sub.id)
	f.mu.Unlock()
}

// Publish broadcasts frame to every connected subscriber, in capture
// order. A subscriber observed disconnected during the pass is collected
// by id and removed from the subscriber map in a second pass under the
// mutex — never by position in a slice being mutated mid-iteration.
func (f *Fanout) Publish(frame dpi.FrameType) {
	f.mu.Lock()
	snapshot := make([]*Subscriber, 0, len(f.subscribers))
	for _, sub := range f.subscribers {
		snapshot = append(snapshot, sub)
	}
	f.mu.Unlock()

	var stale []uint64
	for _, sub := range snapshot {
		if sub.disconnected() {
			stale = append(stale, sub.id)
			continue
		}
		sub.push(frame)
	}

	if len(stale) == 0 {
		return
	}
	f.mu.Lock()
	for _, id := range stale {
		delete(f.subscribers, id)
	}
	f.mu.Unlock()
}

// Count reports the number of currently connected subscribers.
func (f *Fanout) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
