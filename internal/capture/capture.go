// Package capture runs one worker per capture session: it pulls raw
// frames from a FrameSource, hands them to the DPI traversal engine, and
// fans the decoded result out to every subscriber while feeding the
// throughput sampler and pcap sink.
package capture

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/negbie/logp"

	"github.com/sipcapture/xailyser/internal/dpi"
	"github.com/sipcapture/xailyser/internal/fanout"
	"github.com/sipcapture/xailyser/internal/metrics"
	"github.com/sipcapture/xailyser/internal/pcapsink"
	"github.com/sipcapture/xailyser/internal/sampler"
)

// FrameSource is satisfied by anything that yields raw captured frames:
// in tests, a slice-backed fake; in cmd/xailyser-server, any
// gopacket.PacketDataSource (a pcapgo.Reader replaying a file, or a live
// pcap handle) — the live NIC sniff itself is an external collaborator,
// but this interface is shaped so one drops in without an adapter.
type FrameSource interface {
	ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error)
}

// SliceSource is a FrameSource fed from an in-memory list of frames, used
// by tests.
type SliceSource struct {
	Frames []CapturedFrame
	pos    int
}

// CapturedFrame pairs one frame's bytes with its capture metadata.
type CapturedFrame struct {
	Data []byte
	CI   gopacket.CaptureInfo
}

// ReadPacketData implements FrameSource. It returns io.EOF-shaped
// gopacket behavior: once exhausted, it keeps returning the same error.
func (s *SliceSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if s.pos >= len(s.Frames) {
		return nil, gopacket.CaptureInfo{}, errEndOfFrames
	}
	f := s.Frames[s.pos]
	s.pos++
	return f.Data, f.CI, nil
}

var errEndOfFrames = endOfFramesError{}

type endOfFramesError struct{}

func (endOfFramesError) Error() string { return "capture: no more frames" }

// Worker runs one capture session: read, decode, publish, sample, sink.
type Worker struct {
	Source        FrameSource
	LinkType      layers.LinkType
	RawNeeded     bool
	AcceptTimeout time.Duration

	Fanout  *fanout.Fanout
	Sampler *sampler.Sampler
	Sink    *pcapsink.Sink
	Metrics *metrics.Collector

	shutdown atomic.Bool
}

// Shutdown requests the worker's Run loop stop at its next iteration,
// matching decoder.go's own sync/atomic shutdown-flag pattern.
func (w *Worker) Shutdown() { w.shutdown.Store(true) }

// Run reads frames until the source is exhausted, an unrecoverable read
// error occurs, or Shutdown is called. It never panics on a malformed
// frame: decode failures still produce a FrameType (HeaderFrame or
// RawFrame) which is published like any other result.
func (w *Worker) Run() error {
	key := sampler.Key(sessionKey(w.LinkType))
	for !w.shutdown.Load() {
		data, ci, err := w.Source.ReadPacketData()
		if err != nil {
			return err
		}

		header := dpi.FrameHeaderFromCaptureInfo(ci)
		frame := dpi.Parse(header, data, w.LinkType, w.RawNeeded)

		w.observe(frame)
		w.Fanout.Publish(frame)
		w.Sink.Append(header, data)

		if mf, ok := frame.(dpi.MetadataFrame); ok {
			w.Sampler.Observe(key, mf.Metadata, uint64(len(data)), header.Time())
		}

		if w.AcceptTimeout > 0 {
			time.Sleep(w.AcceptTimeout)
		}
	}
	return nil
}

func (w *Worker) observe(frame dpi.FrameType) {
	if w.Metrics == nil {
		return
	}
	switch v := frame.(type) {
	case dpi.MetadataFrame:
		w.Metrics.FramesParsed.Inc()
		for _, l := range v.Metadata.Layers {
			w.Metrics.ObserveLayer(l.Identifier())
		}
	case dpi.RawFrame:
		w.Metrics.FramesIncomplete.Inc()
	case dpi.HeaderFrame:
		w.Metrics.FramesFailed.Inc()
		logp.Debug("capture", "malformed frame at %v, %d bytes captured", v.Header.Time(), v.Header.Caplen)
	}
}

func sessionKey(linkType layers.LinkType) string {
	return linkType.String()
}

// ListInterfaces returns the name of every network interface the OS
// reports, loopback and virtual adapters included. No filtering is done:
// whether a capture handle can actually be opened on one is a runtime
// property this stdlib-only listing can't determine.
func ListInterfaces() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		names = append(names, iface.Name)
	}
	return names, nil
}
