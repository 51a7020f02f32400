// Package transport implements the control channel between the capture
// server and an inspection client: the ServerMessage/ClientRequest wire
// protocol, its two encodings, the AUTH-KEY/COMPRESSION-VALUE handshake,
// and heartbeat liveness.
package transport

import "github.com/sipcapture/xailyser/internal/dpi"

// ServerError is the closed set of failure reasons a ServerMessage can
// report.
type ServerError int

const (
	ErrFailedToChangePassword ServerError = iota
	ErrFailedToGetInterfaces
	ErrFailedToSaveConfig
	ErrInvalidMessageFormat
	ErrInvalidInterface
)

var serverErrorText = map[ServerError]string{
	ErrFailedToChangePassword: "failed to change password",
	ErrFailedToGetInterfaces:  "failed to get server network interfaces list",
	ErrFailedToSaveConfig:     "failed to save config file",
	ErrInvalidMessageFormat:   "invalid message format",
	ErrInvalidInterface:       "invalid interface",
}

func (e ServerError) Error() string {
	if s, ok := serverErrorText[e]; ok {
		return s
	}
	return "unknown server error"
}

// ServerSettings describes the server's current capture configuration, and
// backs the ServerSettings response.
type ServerSettings struct {
	CompressionActive   bool
	CompressionConfig   bool
	InterfaceActive     string
	InterfaceConfig     string
	InterfacesAvailable []string
}

// ServerMessage is the tagged union the server sends to a subscribed
// client (spec.md §6). Exactly one field is meaningful per Kind. Its JSON
// and compact encodings are hand-rolled in layerjson.go and wire.go, since
// Data's dpi.FrameType (and the Layer values nested inside it) are
// interfaces that the default encoders can marshal but never unmarshal
// back to the right concrete type without a discriminator.
type ServerMessage struct {
	Kind ServerMessageKind

	Data            dpi.FrameType
	Settings        *ServerSettings
	SaveConfigErr   *ServerError
	SetCompression  *bool
	SetCompressErr  *ServerError
	SetInterface    *string
	SetInterfaceErr *ServerError
	Err             *ServerError
}

// ServerMessageKind discriminates ServerMessage's variants.
type ServerMessageKind int

const (
	KindData ServerMessageKind = iota
	KindSyncSuccessful
	KindServerSettings
	KindChangePasswordConfirmation
	KindSaveConfigResult
	KindSetCompressionResult
	KindSetInterfaceResult
	KindError
)

// DataMessage wraps one frame's parse outcome.
func DataMessage(frame dpi.FrameType) ServerMessage {
	return ServerMessage{Kind: KindData, Data: frame}
}

// SyncSuccessfulMessage is the heartbeat pong reply.
func SyncSuccessfulMessage() ServerMessage {
	return ServerMessage{Kind: KindSyncSuccessful}
}

// ServerSettingsMessage reports the server's current settings.
func ServerSettingsMessage(s ServerSettings) ServerMessage {
	return ServerMessage{Kind: KindServerSettings, Settings: &s}
}

// ChangePasswordConfirmationMessage acknowledges a successful password
// change.
func ChangePasswordConfirmationMessage() ServerMessage {
	return ServerMessage{Kind: KindChangePasswordConfirmation}
}

// SaveConfigResultMessage reports the outcome of a SaveConfig request; err
// nil means success.
func SaveConfigResultMessage(err *ServerError) ServerMessage {
	return ServerMessage{Kind: KindSaveConfigResult, SaveConfigErr: err}
}

// SetCompressionResultMessage reports the outcome of a SetCompression
// request.
func SetCompressionResultMessage(active bool, err *ServerError) ServerMessage {
	return ServerMessage{Kind: KindSetCompressionResult, SetCompression: &active, SetCompressErr: err}
}

// SetInterfaceResultMessage reports the outcome of a SetInterface request.
func SetInterfaceResultMessage(name string, err *ServerError) ServerMessage {
	return ServerMessage{Kind: KindSetInterfaceResult, SetInterface: &name, SetInterfaceErr: err}
}

// ErrorMessage reports a standalone server error not tied to a specific
// request/result pair.
func ErrorMessage(err ServerError) ServerMessage {
	return ServerMessage{Kind: KindError, Err: &err}
}

// ClientRequestKind discriminates ClientRequest's variants.
type ClientRequestKind int

const (
	RequestChangePassword ClientRequestKind = iota
	RequestReboot
	RequestSaveConfig
	RequestServerSettings
	RequestSetCompression
	RequestSetInterface
)

// ClientRequest is the tagged union a client sends to the server over the
// control channel.
type ClientRequest struct {
	Kind ClientRequestKind

	NewPassword        string
	CompressionEnabled bool
	InterfaceName      string
}
