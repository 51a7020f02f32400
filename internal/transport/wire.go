package transport

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
	"github.com/segmentio/encoding/json"
)

// Encoding selects how ServerMessage/ClientRequest cross the wire. spec.md
// §6's COMPRESSION-VALUE header toggles between them per connection.
type Encoding int

const (
	// EncodingJSON is the default, human-inspectable encoding.
	EncodingJSON Encoding = iota
	// EncodingCompact is the "compression" variant: a protobuf envelope
	// whose scalar fields (Kind, flags, settings, errors) are tagged for
	// varint/length-delimited encoding, while the recursive Data/Settings
	// payloads ride inside as embedded JSON. The Layer tree nests too
	// deeply and too polymorphically to flatten into protobuf tags
	// directly, so this gets the compact format's benefit on the fields
	// that dominate message volume (heartbeats, results, settings)
	// without reimplementing layerjson.go's dispatch in protobuf.
	EncodingCompact
)

// Marshal encodes m using the requested wire encoding.
func Marshal(m ServerMessage, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingJSON:
		return json.Marshal(m)
	case EncodingCompact:
		env, err := toWireEnvelope(m)
		if err != nil {
			return nil, err
		}
		return proto.Marshal(env)
	default:
		return nil, fmt.Errorf("transport: unknown encoding %d", enc)
	}
}

// Unmarshal decodes b, previously produced by Marshal with the same enc,
// into m.
func Unmarshal(b []byte, enc Encoding, m *ServerMessage) error {
	switch enc {
	case EncodingJSON:
		return json.Unmarshal(b, m)
	case EncodingCompact:
		var env wireEnvelope
		if err := proto.Unmarshal(b, &env); err != nil {
			return err
		}
		return env.toServerMessage(m)
	default:
		return fmt.Errorf("transport: unknown encoding %d", enc)
	}
}

// wireEnvelope is the compact-encoding counterpart of serverMessageJSON,
// hand-tagged in heplify's style (a manually-tagged struct marshaled via
// gogo/protobuf's reflection-based proto.Marshal, no .proto file or
// generated code).
type wireEnvelope struct {
	Kind               int32  `protobuf:"varint,1,opt,name=kind"`
	DataJSON           []byte `protobuf:"bytes,2,opt,name=data_json"`
	SettingsJSON       []byte `protobuf:"bytes,3,opt,name=settings_json"`
	HasSaveConfigErr   bool   `protobuf:"varint,4,opt,name=has_save_config_err"`
	SaveConfigErr      int32  `protobuf:"varint,5,opt,name=save_config_err"`
	HasSetCompression  bool   `protobuf:"varint,6,opt,name=has_set_compression"`
	SetCompression     bool   `protobuf:"varint,7,opt,name=set_compression"`
	HasSetCompressErr  bool   `protobuf:"varint,8,opt,name=has_set_compress_err"`
	SetCompressErr     int32  `protobuf:"varint,9,opt,name=set_compress_err"`
	HasSetInterface    bool   `protobuf:"varint,10,opt,name=has_set_interface"`
	SetInterface       string `protobuf:"bytes,11,opt,name=set_interface"`
	HasSetInterfaceErr bool   `protobuf:"varint,12,opt,name=has_set_interface_err"`
	SetInterfaceErr    int32  `protobuf:"varint,13,opt,name=set_interface_err"`
	HasErr             bool   `protobuf:"varint,14,opt,name=has_err"`
	Err                int32  `protobuf:"varint,15,opt,name=err"`
}

func (*wireEnvelope) Reset()           {}
func (w *wireEnvelope) String() string { return fmt.Sprintf("%+v", *w) }
func (*wireEnvelope) ProtoMessage()    {}

func toWireEnvelope(m ServerMessage) (*wireEnvelope, error) {
	env := &wireEnvelope{Kind: int32(m.Kind)}

	if m.Data != nil {
		ft, err := marshalFrameType(m.Data)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(ft)
		if err != nil {
			return nil, err
		}
		env.DataJSON = b
	}
	if m.Settings != nil {
		b, err := json.Marshal(m.Settings)
		if err != nil {
			return nil, err
		}
		env.SettingsJSON = b
	}
	if m.SaveConfigErr != nil {
		env.HasSaveConfigErr = true
		env.SaveConfigErr = int32(*m.SaveConfigErr)
	}
	if m.SetCompression != nil {
		env.HasSetCompression = true
		env.SetCompression = *m.SetCompression
	}
	if m.SetCompressErr != nil {
		env.HasSetCompressErr = true
		env.SetCompressErr = int32(*m.SetCompressErr)
	}
	if m.SetInterface != nil {
		env.HasSetInterface = true
		env.SetInterface = *m.SetInterface
	}
	if m.SetInterfaceErr != nil {
		env.HasSetInterfaceErr = true
		env.SetInterfaceErr = int32(*m.SetInterfaceErr)
	}
	if m.Err != nil {
		env.HasErr = true
		env.Err = int32(*m.Err)
	}
	return env, nil
}

// clientRequestEnvelope is ClientRequest's compact-encoding wire shape.
// Unlike ServerMessage, none of its fields are interface-typed, so no
// discriminator envelope is needed for either encoding.
type clientRequestEnvelope struct {
	Kind               int32  `protobuf:"varint,1,opt,name=kind"`
	NewPassword        string `protobuf:"bytes,2,opt,name=new_password"`
	CompressionEnabled bool   `protobuf:"varint,3,opt,name=compression_enabled"`
	InterfaceName      string `protobuf:"bytes,4,opt,name=interface_name"`
}

func (*clientRequestEnvelope) Reset()           {}
func (w *clientRequestEnvelope) String() string { return fmt.Sprintf("%+v", *w) }
func (*clientRequestEnvelope) ProtoMessage()    {}

func marshalClientRequest(req ClientRequest, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingJSON:
		return json.Marshal(req)
	case EncodingCompact:
		env := &clientRequestEnvelope{
			Kind:               int32(req.Kind),
			NewPassword:        req.NewPassword,
			CompressionEnabled: req.CompressionEnabled,
			InterfaceName:      req.InterfaceName,
		}
		return proto.Marshal(env)
	default:
		return nil, fmt.Errorf("transport: unknown encoding %d", enc)
	}
}

func jsonUnmarshalClientRequest(b []byte, req *ClientRequest) error {
	return json.Unmarshal(b, req)
}

func protoUnmarshalClientRequest(b []byte, req *ClientRequest) error {
	var env clientRequestEnvelope
	if err := proto.Unmarshal(b, &env); err != nil {
		return err
	}
	*req = ClientRequest{
		Kind:               ClientRequestKind(env.Kind),
		NewPassword:        env.NewPassword,
		CompressionEnabled: env.CompressionEnabled,
		InterfaceName:      env.InterfaceName,
	}
	return nil
}

func (env *wireEnvelope) toServerMessage(m *ServerMessage) error {
	*m = ServerMessage{Kind: ServerMessageKind(env.Kind)}

	if len(env.DataJSON) > 0 {
		var ft frameTypeJSON
		if err := json.Unmarshal(env.DataJSON, &ft); err != nil {
			return err
		}
		frame, err := unmarshalFrameType(ft)
		if err != nil {
			return err
		}
		m.Data = frame
	}
	if len(env.SettingsJSON) > 0 {
		var s ServerSettings
		if err := json.Unmarshal(env.SettingsJSON, &s); err != nil {
			return err
		}
		m.Settings = &s
	}
	if env.HasSaveConfigErr {
		e := ServerError(env.SaveConfigErr)
		m.SaveConfigErr = &e
	}
	if env.HasSetCompression {
		v := env.SetCompression
		m.SetCompression = &v
	}
	if env.HasSetCompressErr {
		e := ServerError(env.SetCompressErr)
		m.SetCompressErr = &e
	}
	if env.HasSetInterface {
		v := env.SetInterface
		m.SetInterface = &v
	}
	if env.HasSetInterfaceErr {
		e := ServerError(env.SetInterfaceErr)
		m.SetInterfaceErr = &e
	}
	if env.HasErr {
		e := ServerError(env.Err)
		m.Err = &e
	}
	return nil
}
