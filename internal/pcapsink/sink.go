// Package pcapsink writes queued captured frames out as a standard libpcap
// savefile, preserving the capture's link type.
package pcapsink

import (
	"io"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/sipcapture/xailyser/internal/dpi"
)

const defaultSnapLen = 65535

type entry struct {
	header dpi.FrameHeader
	data   []byte
}

// Sink accumulates captured frames for on-demand export. It only needs the
// link type and each frame's raw bytes, so it queues independently of how
// (or whether) the traversal engine parsed a given frame.
type Sink struct {
	mu       sync.Mutex
	linkType layers.LinkType
	queue    []entry
}

// New builds an empty sink for the given link type.
func New(linkType layers.LinkType) *Sink {
	return &Sink{linkType: linkType}
}

// Append queues one captured frame.
func (s *Sink) Append(header dpi.FrameHeader, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, entry{header: header, data: data})
}

// Len reports the number of queued, not-yet-written frames.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// WriteTo writes every queued frame to w as a pcap capture file and clears
// the queue on success. On failure the queue is left untouched, so a write
// error never loses frames.
func (s *Sink) WriteTo(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(defaultSnapLen, s.linkType); err != nil {
		return err
	}
	for _, e := range s.queue {
		ci := gopacket.CaptureInfo{
			Timestamp:     e.header.Time(),
			CaptureLength: int(e.header.Caplen),
			Length:        int(e.header.Len),
		}
		if err := writer.WritePacket(ci, e.data); err != nil {
			return err
		}
	}
	s.queue = nil
	return nil
}
