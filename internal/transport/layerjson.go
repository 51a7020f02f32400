package transport

import (
	"encoding/json"
	"fmt"

	"github.com/sipcapture/xailyser/internal/dpi"
)

// layerKindNames names every Identifier for the wire, the transport-layer
// counterpart of dpi/registry.go's static Identifier->behavior map: there
// the key drives decode dispatch, here it drives JSON (de)serialization
// dispatch for the same closed protocol set.
var layerKindNames = map[dpi.Identifier]string{
	dpi.IdentEthernet: "ethernet",
	dpi.IdentArp:      "arp",
	dpi.IdentIPv4:     "ipv4",
	dpi.IdentIPv6:     "ipv6",
	dpi.IdentICMPv4:   "icmpv4",
	dpi.IdentICMPv6:   "icmpv6",
	dpi.IdentTCP:      "tcp",
	dpi.IdentUDP:      "udp",
	dpi.IdentDNS:      "dns",
	dpi.IdentDHCPv4:   "dhcpv4",
	dpi.IdentDHCPv6:   "dhcpv6",
	dpi.IdentHTTP:     "http",
}

var layerKindByName = func() map[string]dpi.Identifier {
	m := make(map[string]dpi.Identifier, len(layerKindNames))
	for id, name := range layerKindNames {
		m[name] = id
	}
	return m
}()

type layerEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func marshalLayer(l dpi.Layer) (layerEnvelope, error) {
	name, ok := layerKindNames[l.Identifier()]
	if !ok {
		return layerEnvelope{}, fmt.Errorf("transport: unknown layer identifier %v", l.Identifier())
	}
	data, err := json.Marshal(l)
	if err != nil {
		return layerEnvelope{}, err
	}
	return layerEnvelope{Kind: name, Data: data}, nil
}

func unmarshalLayer(env layerEnvelope) (dpi.Layer, error) {
	id, ok := layerKindByName[env.Kind]
	if !ok {
		return nil, fmt.Errorf("transport: unknown layer kind %q", env.Kind)
	}
	layer := newLayer(id)
	if layer == nil {
		return nil, fmt.Errorf("transport: no layer registered for identifier %v", id)
	}
	if err := json.Unmarshal(env.Data, layer); err != nil {
		return nil, err
	}
	return layer, nil
}

func newLayer(id dpi.Identifier) dpi.Layer {
	switch id {
	case dpi.IdentEthernet:
		return &dpi.EthernetLayer{}
	case dpi.IdentArp:
		return &dpi.ArpLayer{}
	case dpi.IdentIPv4:
		return &dpi.Ipv4Layer{}
	case dpi.IdentIPv6:
		return &dpi.Ipv6Layer{}
	case dpi.IdentICMPv4:
		return &dpi.Icmpv4Layer{}
	case dpi.IdentICMPv6:
		return &dpi.Icmpv6Layer{}
	case dpi.IdentTCP:
		return &dpi.TcpLayer{}
	case dpi.IdentUDP:
		return &dpi.UdpLayer{}
	case dpi.IdentDNS:
		return &dpi.DnsLayer{}
	case dpi.IdentDHCPv4:
		return &dpi.Dhcpv4Layer{}
	case dpi.IdentDHCPv6:
		return &dpi.Dhcpv6Layer{}
	case dpi.IdentHTTP:
		return &dpi.HttpLayer{}
	default:
		return nil
	}
}

type frameMetadataJSON struct {
	Header dpi.FrameHeader `json:"header"`
	Layers []layerEnvelope `json:"layers"`
}

func marshalFrameMetadata(m *dpi.FrameMetadata) (frameMetadataJSON, error) {
	out := frameMetadataJSON{Header: m.Header, Layers: make([]layerEnvelope, 0, len(m.Layers))}
	for _, l := range m.Layers {
		env, err := marshalLayer(l)
		if err != nil {
			return frameMetadataJSON{}, err
		}
		out.Layers = append(out.Layers, env)
	}
	return out, nil
}

func unmarshalFrameMetadata(in frameMetadataJSON) (*dpi.FrameMetadata, error) {
	meta := &dpi.FrameMetadata{Header: in.Header, Layers: make([]dpi.Layer, 0, len(in.Layers))}
	for _, env := range in.Layers {
		l, err := unmarshalLayer(env)
		if err != nil {
			return nil, err
		}
		meta.Layers = append(meta.Layers, l)
	}
	return meta, nil
}

// frameTypeJSON is the wire shape of dpi.FrameType: exactly one of
// Metadata, Header+RawData(nil) or Header+RawData is populated, per Kind.
type frameTypeJSON struct {
	Kind     string             `json:"kind"`
	Metadata *frameMetadataJSON `json:"metadata,omitempty"`
	Header   *dpi.FrameHeader   `json:"header,omitempty"`
	RawData  []byte             `json:"raw_data,omitempty"`
}

func marshalFrameType(f dpi.FrameType) (frameTypeJSON, error) {
	switch v := f.(type) {
	case dpi.MetadataFrame:
		m, err := marshalFrameMetadata(v.Metadata)
		if err != nil {
			return frameTypeJSON{}, err
		}
		return frameTypeJSON{Kind: "metadata", Metadata: &m}, nil
	case dpi.HeaderFrame:
		h := v.Header
		return frameTypeJSON{Kind: "header", Header: &h}, nil
	case dpi.RawFrame:
		h := v.Header
		return frameTypeJSON{Kind: "raw", Header: &h, RawData: v.Data}, nil
	default:
		return frameTypeJSON{}, fmt.Errorf("transport: unknown frame type %T", f)
	}
}

func unmarshalFrameType(in frameTypeJSON) (dpi.FrameType, error) {
	switch in.Kind {
	case "metadata":
		if in.Metadata == nil {
			return nil, fmt.Errorf("transport: metadata frame missing metadata")
		}
		meta, err := unmarshalFrameMetadata(*in.Metadata)
		if err != nil {
			return nil, err
		}
		return dpi.MetadataFrame{Metadata: meta}, nil
	case "header":
		if in.Header == nil {
			return nil, fmt.Errorf("transport: header frame missing header")
		}
		return dpi.HeaderFrame{Header: *in.Header}, nil
	case "raw":
		if in.Header == nil {
			return nil, fmt.Errorf("transport: raw frame missing header")
		}
		return dpi.RawFrame{Header: *in.Header, Data: in.RawData}, nil
	default:
		return nil, fmt.Errorf("transport: unknown frame kind %q", in.Kind)
	}
}

// serverMessageJSON mirrors ServerMessage with Data replaced by its
// wire-safe envelope.
type serverMessageJSON struct {
	Kind            ServerMessageKind `json:"kind"`
	Data            *frameTypeJSON    `json:"data,omitempty"`
	Settings        *ServerSettings   `json:"settings,omitempty"`
	SaveConfigErr   *ServerError      `json:"save_config_err,omitempty"`
	SetCompression  *bool             `json:"set_compression,omitempty"`
	SetCompressErr  *ServerError      `json:"set_compress_err,omitempty"`
	SetInterface    *string           `json:"set_interface,omitempty"`
	SetInterfaceErr *ServerError      `json:"set_interface_err,omitempty"`
	Err             *ServerError      `json:"err,omitempty"`
}

// MarshalJSON implements json.Marshaler so segmentio/encoding/json (and
// stdlib encoding/json) both route Data through the Identifier-tagged
// envelope above instead of losing its concrete type.
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	out := serverMessageJSON{
		Kind:            m.Kind,
		Settings:        m.Settings,
		SaveConfigErr:   m.SaveConfigErr,
		SetCompression:  m.SetCompression,
		SetCompressErr:  m.SetCompressErr,
		SetInterface:    m.SetInterface,
		SetInterfaceErr: m.SetInterfaceErr,
		Err:             m.Err,
	}
	if m.Data != nil {
		ft, err := marshalFrameType(m.Data)
		if err != nil {
			return nil, err
		}
		out.Data = &ft
	}
	return json.Marshal(out)
}

// UnmarshalJSON is MarshalJSON's inverse.
func (m *ServerMessage) UnmarshalJSON(b []byte) error {
	var in serverMessageJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*m = ServerMessage{
		Kind:            in.Kind,
		Settings:        in.Settings,
		SaveConfigErr:   in.SaveConfigErr,
		SetCompression:  in.SetCompression,
		SetCompressErr:  in.SetCompressErr,
		SetInterface:    in.SetInterface,
		SetInterfaceErr: in.SetInterfaceErr,
		Err:             in.Err,
	}
	if in.Data != nil {
		ft, err := unmarshalFrameType(*in.Data)
		if err != nil {
			return err
		}
		m.Data = ft
	}
	return nil
}
