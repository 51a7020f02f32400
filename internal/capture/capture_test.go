package capture_test

import (
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipcapture/xailyser/internal/capture"
	"github.com/sipcapture/xailyser/internal/fanout"
	"github.com/sipcapture/xailyser/internal/pcapsink"
	"github.com/sipcapture/xailyser/internal/sampler"
)

// ethernetFrame builds a minimal 14-byte Ethernet header (no known
// EtherType payload), just enough to exercise one traversal step.
func ethernetFrame() []byte {
	b := make([]byte, 14)
	b[12], b[13] = 0xFF, 0xFF // unrecognized EtherType
	return b
}

func TestWorkerRunPublishesUntilSourceExhausted(t *testing.T) {
	src := &capture.SliceSource{Frames: []capture.CapturedFrame{
		{Data: ethernetFrame(), CI: gopacket.CaptureInfo{Timestamp: time.Unix(1, 0), CaptureLength: 14, Length: 14}},
		{Data: ethernetFrame(), CI: gopacket.CaptureInfo{Timestamp: time.Unix(2, 0), CaptureLength: 14, Length: 14}},
	}}

	f := fanout.New()
	sub := f.Subscribe()

	w := &capture.Worker{
		Source:   src,
		LinkType: layers.LinkTypeEthernet,
		Fanout:   f,
		Sampler:  sampler.New(),
		Sink:     pcapsink.New(layers.LinkTypeEthernet),
	}

	err := w.Run()
	require.Error(t, err)

	count := 0
	for {
		select {
		case <-sub.Frames():
			count++
		case <-time.After(50 * time.Millisecond):
			assert.Equal(t, 2, count)
			return
		}
	}
}

func TestWorkerShutdownStopsRunBeforeExhaustion(t *testing.T) {
	src := &infiniteSource{}
	w := &capture.Worker{
		Source:   src,
		LinkType: layers.LinkTypeEthernet,
		Fanout:   fanout.New(),
		Sampler:  sampler.New(),
		Sink:     pcapsink.New(layers.LinkTypeEthernet),
	}

	done := make(chan error, 1)
	go func() { done <- w.Run() }()

	time.Sleep(10 * time.Millisecond)
	w.Shutdown()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after Shutdown")
	}
}

type infiniteSource struct{}

func (infiniteSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return ethernetFrame(), gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: 14, Length: 14}, nil
}

func TestSliceSourceReturnsErrorWhenExhausted(t *testing.T) {
	src := &capture.SliceSource{}
	_, _, err := src.ReadPacketData()
	require.Error(t, err)
}

func TestListInterfacesReturnsSomething(t *testing.T) {
	names, err := capture.ListInterfaces()
	require.NoError(t, err)
	assert.NotNil(t, names)
}
