package transport_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipcapture/xailyser/internal/dpi"
	"github.com/sipcapture/xailyser/internal/transport"
)

func sampleFrame() dpi.FrameType {
	meta := &dpi.FrameMetadata{
		Header: dpi.FrameHeader{TvSec: 100, TvUsec: 200, Caplen: 60, Len: 60},
		Layers: []dpi.Layer{
			dpi.EthernetLayer{},
			dpi.Ipv4Layer{
				Version:     4,
				IHL:         20,
				TotalLength: 40,
				TTL:         64,
				Protocol:    6,
				Source:      net.ParseIP("10.0.0.1").To4(),
				Destination: net.ParseIP("10.0.0.2").To4(),
			},
			dpi.TcpLayer{SourcePort: 443, DestPort: 51234},
		},
	}
	return dpi.MetadataFrame{Metadata: meta}
}

func TestServerMessageJSONRoundTrip(t *testing.T) {
	msg := transport.DataMessage(sampleFrame())

	b, err := transport.Marshal(msg, transport.EncodingJSON)
	require.NoError(t, err)

	var got transport.ServerMessage
	require.NoError(t, transport.Unmarshal(b, transport.EncodingJSON, &got))

	assert.Equal(t, transport.KindData, got.Kind)
	mf, ok := got.Data.(dpi.MetadataFrame)
	require.True(t, ok)
	require.Len(t, mf.Metadata.Layers, 3)

	tcp, ok := mf.Metadata.Layers[2].(*dpi.TcpLayer)
	require.True(t, ok)
	assert.EqualValues(t, 443, tcp.SourcePort)
	assert.EqualValues(t, 51234, tcp.DestPort)

	ip, ok := mf.Metadata.Layers[1].(*dpi.Ipv4Layer)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", ip.Source.String())
}

func TestServerMessageCompactRoundTrip(t *testing.T) {
	msg := transport.DataMessage(sampleFrame())

	b, err := transport.Marshal(msg, transport.EncodingCompact)
	require.NoError(t, err)

	var got transport.ServerMessage
	require.NoError(t, transport.Unmarshal(b, transport.EncodingCompact, &got))

	assert.Equal(t, transport.KindData, got.Kind)
	mf, ok := got.Data.(dpi.MetadataFrame)
	require.True(t, ok)
	require.Len(t, mf.Metadata.Layers, 3)
}

func TestServerMessageSettingsRoundTrip(t *testing.T) {
	settings := transport.ServerSettings{
		CompressionActive:   true,
		CompressionConfig:   false,
		InterfaceActive:     "eth0",
		InterfaceConfig:     "eth0",
		InterfacesAvailable: []string{"eth0", "lo"},
	}
	msg := transport.ServerSettingsMessage(settings)

	for _, enc := range []transport.Encoding{transport.EncodingJSON, transport.EncodingCompact} {
		b, err := transport.Marshal(msg, enc)
		require.NoError(t, err)

		var got transport.ServerMessage
		require.NoError(t, transport.Unmarshal(b, enc, &got))
		require.NotNil(t, got.Settings)
		assert.Equal(t, settings, *got.Settings)
	}
}

func TestServerMessageErrorRoundTrip(t *testing.T) {
	msg := transport.ErrorMessage(transport.ErrInvalidInterface)

	b, err := transport.Marshal(msg, transport.EncodingCompact)
	require.NoError(t, err)

	var got transport.ServerMessage
	require.NoError(t, transport.Unmarshal(b, transport.EncodingCompact, &got))
	require.NotNil(t, got.Err)
	assert.Equal(t, transport.ErrInvalidInterface, *got.Err)
}

func TestServerMessageHeaderAndRawFrames(t *testing.T) {
	header := dpi.FrameHeader{TvSec: 5, Caplen: 10, Len: 10}

	cases := []dpi.FrameType{
		dpi.HeaderFrame{Header: header},
		dpi.RawFrame{Header: header, Data: []byte{1, 2, 3, 4}},
	}
	for _, frame := range cases {
		msg := transport.DataMessage(frame)
		b, err := transport.Marshal(msg, transport.EncodingJSON)
		require.NoError(t, err)

		var got transport.ServerMessage
		require.NoError(t, transport.Unmarshal(b, transport.EncodingJSON, &got))
		assert.Equal(t, frame, got.Data)
	}
}
