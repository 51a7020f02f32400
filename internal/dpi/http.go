package dpi

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
)

var crlf = []byte("\r\n")

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "HEAD": true,
	"OPTIONS": true, "TRACE": true, "PATCH": true, "CONNECT": true,
}

// HttpHeader is one name/value pair, in wire order.
type HttpHeader struct {
	Name  string
	Value string
}

// HttpLayer is either a request or a response; exactly one of Method or
// Status is meaningful, distinguished by IsResponse.
type HttpLayer struct {
	IsResponse bool

	// Request fields.
	Method string
	Target string

	// Response fields.
	Status int
	Reason string

	Version string
	Headers []HttpHeader
	Body    []byte
}

func (HttpLayer) Identifier() Identifier { return IdentHTTP }

func decodeHTTP(data []byte) (Layer, []byte, error) {
	line, rest, err := readCRLFLine(data)
	if err != nil {
		return nil, nil, shortErr(IdentHTTP)
	}

	layer := &HttpLayer{}
	if bytes.HasPrefix(line, []byte("HTTP/")) {
		parts := strings.SplitN(string(line), " ", 3)
		if len(parts) != 3 {
			return nil, nil, verifyErr(IdentHTTP)
		}
		status, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, nil, verifyErr(IdentHTTP)
		}
		layer.IsResponse = true
		layer.Version = parts[0]
		layer.Status = status
		layer.Reason = parts[2]
	} else {
		parts := strings.SplitN(string(line), " ", 3)
		if len(parts) != 3 || !httpMethods[parts[0]] {
			return nil, nil, verifyErr(IdentHTTP)
		}
		layer.Method = parts[0]
		layer.Target = parts[1]
		layer.Version = parts[2]
	}

	headers, rest, err := readHTTPHeaders(rest)
	if err != nil {
		return nil, nil, err
	}
	layer.Headers = headers

	body, rest, err := readHTTPBody(headers, rest)
	if err != nil {
		return nil, nil, err
	}
	layer.Body = body

	if len(rest) != 0 {
		return nil, nil, verifyErr(IdentHTTP)
	}

	return layer, nil, nil
}

func readCRLFLine(data []byte) (line, rest []byte, err error) {
	idx := bytes.Index(data, crlf)
	if idx < 0 {
		return nil, nil, ErrShortBuffer
	}
	return data[:idx], data[idx+2:], nil
}

func readHTTPHeaders(data []byte) ([]HttpHeader, []byte, error) {
	var headers []HttpHeader
	for {
		line, rest, err := readCRLFLine(data)
		if err != nil {
			return nil, nil, shortErr(IdentHTTP)
		}
		data = rest
		if len(line) == 0 {
			return headers, data, nil
		}
		idx := bytes.Index(line, []byte(": "))
		if idx < 0 {
			return nil, nil, verifyErr(IdentHTTP)
		}
		headers = append(headers, HttpHeader{
			Name:  string(line[:idx]),
			Value: string(line[idx+2:]),
		})
	}
}

func findHeader(headers []HttpHeader, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

func readHTTPBody(headers []HttpHeader, data []byte) ([]byte, []byte, error) {
	if cl, ok := findHeader(headers, "Content-Length"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return nil, nil, verifyErr(IdentHTTP)
		}
		body, rest, err := takeN(data, n)
		if err != nil {
			return nil, nil, shortErr(IdentHTTP)
		}
		return body, rest, nil
	}

	if te, ok := findHeader(headers, "Transfer-Encoding"); ok && strings.EqualFold(strings.TrimSpace(te), "chunked") {
		return readChunkedBody(data)
	}

	return nil, data, nil
}

func readChunkedBody(data []byte) ([]byte, []byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for {
		line, rest, err := readCRLFLine(data)
		if err != nil {
			return nil, nil, shortErr(IdentHTTP)
		}
		size, err := strconv.ParseInt(strings.TrimSpace(string(line)), 16, 64)
		if err != nil || size < 0 {
			return nil, nil, verifyErr(IdentHTTP)
		}
		if size == 0 {
			_, rest, err := readCRLFLine(rest)
			if err != nil {
				return nil, nil, shortErr(IdentHTTP)
			}
			body := append([]byte(nil), buf.Bytes()...)
			return body, rest, nil
		}
		chunk, rest, err := takeN(rest, int(size))
		if err != nil {
			return nil, nil, shortErr(IdentHTTP)
		}
		buf.Write(chunk)
		_, rest, err = readCRLFLine(rest)
		if err != nil {
			return nil, nil, shortErr(IdentHTTP)
		}
		data = rest
	}
}
