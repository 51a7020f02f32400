package transport

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/websocket"
)

// ServerSession wraps one accepted control-channel connection: the
// negotiated encoding, the underlying websocket, and heartbeat state.
type ServerSession struct {
	conn      *websocket.Conn
	enc       Encoding
	Heartbeat *Heartbeat
}

// Handler builds an http.Handler that performs the AUTH-KEY/
// COMPRESSION-VALUE handshake (modeled on
// original_source/server/src/ws.rs's check_authentication closure) before
// handing the upgraded connection to onConnect. A failed check responds
// with the matching HTTP status instead of upgrading. passwordDigest is
// called on every attempt rather than captured once, so a live
// ChangePassword takes effect on the very next connection instead of only
// after a restart.
func Handler(passwordDigest func() string, compressionActive bool, onConnect func(*ServerSession)) http.Handler {
	ws := &websocket.Server{
		Handshake: func(config *websocket.Config, req *http.Request) error {
			if err := CheckAuth(req.Header, passwordDigest()); err != nil {
				return err
			}
			if _, err := CheckCompression(req.Header, compressionActive); err != nil {
				return err
			}
			return nil
		},
	}
	ws.Handler = func(conn *websocket.Conn) {
		enc, _ := CheckCompression(conn.Request().Header, compressionActive)
		hb := NewHeartbeat(DefaultSyncDelay, DefaultPingTimeout)
		hb.Update(time.Now())
		sess := &ServerSession{conn: conn, enc: enc, Heartbeat: hb}
		onConnect(sess)
	}
	return authStatusWrapper{inner: ws, passwordDigest: passwordDigest, compressionActive: compressionActive}
}

// authStatusWrapper translates a Handshake failure into the HTTP status
// codes original_source/server/src/ws.rs returns: BAD_REQUEST when
// AUTH-KEY is missing, UNAUTHORIZED when it is present but wrong.
type authStatusWrapper struct {
	inner             http.Handler
	passwordDigest    func() string
	compressionActive bool
}

func (a authStatusWrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := CheckAuth(r.Header, a.passwordDigest()); err != nil {
		if err == ErrAuthHeaderMissing {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
		return
	}
	if _, err := CheckCompression(r.Header, a.compressionActive); err != nil {
		if err == ErrCompressionHeaderMissing {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
		return
	}
	a.inner.ServeHTTP(w, r)
}

// Send encodes and writes one ServerMessage on the session's negotiated
// encoding.
func (s *ServerSession) Send(m ServerMessage) error {
	b, err := Marshal(m, s.enc)
	if err != nil {
		return err
	}
	return websocket.Message.Send(s.conn, b)
}

// ReceiveRequest reads and decodes one ClientRequest; callers loop on it
// until it returns an error (connection closed or malformed payload).
func (s *ServerSession) ReceiveRequest() (ClientRequest, error) {
	var b []byte
	if err := websocket.Message.Receive(s.conn, &b); err != nil {
		return ClientRequest{}, err
	}
	var req ClientRequest
	if err := unmarshalClientRequest(b, s.enc, &req); err != nil {
		return ClientRequest{}, err
	}
	return req, nil
}

// Touch records a liveness signal (a SyncSuccessful heartbeat or any
// received request); Heartbeat.Unresponsive uses it to detect a dead peer.
func (s *ServerSession) Touch() {
	s.Heartbeat.Update(time.Now())
}

// Close closes the underlying connection.
func (s *ServerSession) Close() error { return s.conn.Close() }

// ClientSession wraps a dialed control-channel connection on the
// inspection-client side.
type ClientSession struct {
	conn *websocket.Conn
	enc  Encoding
}

// Dial connects to a capture server's control channel, performing the
// AUTH-KEY/COMPRESSION-VALUE handshake client-side (modeled on
// original_source/client/src/ws.rs's connect()).
func Dial(url, origin, password string, compressionEnabled bool) (*ClientSession, error) {
	config, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	config.Header = BuildRequestHeader(password, compressionEnabled)

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	enc := EncodingJSON
	if compressionEnabled {
		enc = EncodingCompact
	}
	return &ClientSession{conn: conn, enc: enc}, nil
}

// SendRequest encodes and writes one ClientRequest.
func (c *ClientSession) SendRequest(req ClientRequest) error {
	b, err := marshalClientRequest(req, c.enc)
	if err != nil {
		return err
	}
	return websocket.Message.Send(c.conn, b)
}

// ReceiveMessage reads and decodes one ServerMessage; callers loop on it
// (cmd/xailyser-client feeds each result into a Heartbeat).
func (c *ClientSession) ReceiveMessage() (ServerMessage, error) {
	var b []byte
	if err := websocket.Message.Receive(c.conn, &b); err != nil {
		return ServerMessage{}, err
	}
	var msg ServerMessage
	if err := Unmarshal(b, c.enc, &msg); err != nil {
		return ServerMessage{}, err
	}
	return msg, nil
}

// Close closes the underlying connection.
func (c *ClientSession) Close() error { return c.conn.Close() }

func unmarshalClientRequest(b []byte, enc Encoding, req *ClientRequest) error {
	// ClientRequest carries no interface-typed fields, so JSON decodes it
	// directly and the compact encoding uses the flat clientRequestEnvelope;
	// no kind-tagged discriminator envelope is needed.
	switch enc {
	case EncodingJSON:
		return jsonUnmarshalClientRequest(b, req)
	case EncodingCompact:
		return protoUnmarshalClientRequest(b, req)
	default:
		return fmt.Errorf("transport: unknown encoding %d", enc)
	}
}
