package sampler_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipcapture/xailyser/internal/dpi"
	"github.com/sipcapture/xailyser/internal/sampler"
)

func metaWithIPv4(src, dst string) *dpi.FrameMetadata {
	return &dpi.FrameMetadata{
		Layers: []dpi.Layer{
			&dpi.Ipv4Layer{Source: net.ParseIP(src), Destination: net.ParseIP(dst)},
		},
	}
}

func TestConnectionObserveThroughputOnly(t *testing.T) {
	now := time.Unix(1000, 0)
	c := &sampler.Connection{}
	c.Observe(metaWithIPv4("8.8.8.8", "1.1.1.1"), 100, now)

	throughput, send, receive := c.Buckets(now, 5, sampler.BytesPerSecond)
	assert.Equal(t, float64(100), throughput[0])
	assert.Equal(t, float64(0), sum(send))
	assert.Equal(t, float64(0), sum(receive))
}

func TestConnectionObserveBothSendAndReceive(t *testing.T) {
	now := time.Unix(1000, 0)
	c := &sampler.Connection{}
	c.Observe(metaWithIPv4("192.168.1.10", "10.0.0.5"), 200, now)

	throughput, send, receive := c.Buckets(now, 5, sampler.BytesPerSecond)
	assert.Equal(t, float64(0), sum(throughput))
	assert.Equal(t, float64(200), send[0])
	assert.Equal(t, float64(200), receive[0])
}

func TestConnectionObserveNoIPLayer(t *testing.T) {
	now := time.Unix(1000, 0)
	c := &sampler.Connection{}
	c.Observe(&dpi.FrameMetadata{}, 64, now)

	throughput, _, _ := c.Buckets(now, 5, sampler.BytesPerSecond)
	assert.Equal(t, float64(64), throughput[0])
}

func TestBucketsDropsSamplesOutsideWindow(t *testing.T) {
	base := time.Unix(1000, 0)
	c := &sampler.Connection{}
	c.Observe(&dpi.FrameMetadata{}, 10, base)
	c.Observe(&dpi.FrameMetadata{}, 20, base.Add(9*time.Second))

	throughput, _, _ := c.Buckets(base.Add(9*time.Second), 5, sampler.BytesPerSecond)
	assert.Equal(t, float64(20), throughput[0])
	assert.Equal(t, float64(0), sum(throughput[1:]))
}

func TestSpeedUnitScaling(t *testing.T) {
	now := time.Unix(1000, 0)
	c := &sampler.Connection{}
	c.Observe(&dpi.FrameMetadata{}, 1024, now)

	throughput, _, _ := c.Buckets(now, 1, sampler.KilobytesPerSecond)
	assert.Equal(t, float64(1), throughput[0])
}

func TestSamplerKeepsConnectionsSeparate(t *testing.T) {
	s := sampler.New()
	now := time.Unix(1000, 0)
	a := sampler.Key("session-a")
	b := sampler.Key("session-b")
	require.NotEqual(t, a, b)

	s.Observe(a, &dpi.FrameMetadata{}, 50, now)
	s.Observe(b, &dpi.FrameMetadata{}, 75, now)

	at, _, _ := s.Buckets(a, now, 1, sampler.BytesPerSecond)
	bt, _, _ := s.Buckets(b, now, 1, sampler.BytesPerSecond)
	assert.Equal(t, float64(50), at[0])
	assert.Equal(t, float64(75), bt[0])
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}
