package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Request is one automation call.
type Request struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// Response is EVS's reply to a Request.
type Response struct {
	Success bool            `json:"Success"`
	Value   json.RawMessage `json:"Value"`
	Error   string          `json:"Error"`
}

// Decode unmarshals the returned value into v. A null or missing value
// leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Value) == 0 || string(r.Value) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Value, v); err != nil {
		return fmt.Errorf("decoding %s value: %w", string(r.Value), err)
	}
	return nil
}

// encoder writes newline-terminated requests, one Write per request so each
// request is a single pipe message.
type encoder struct {
	w io.Writer
}

func (e *encoder) Encode(req Request) error {
	if req.Args == nil {
		req.Args = []any{}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", req.Method, err)
	}
	_, err = e.w.Write(append(data, '\n'))
	return err
}

// decoder reads consecutive JSON objects. Objects are self-delimiting, so a
// reply split across reads or followed by a newline decodes the same.
type decoder struct {
	dec *json.Decoder
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{dec: json.NewDecoder(bufio.NewReaderSize(r, 64*1024))}
}

func (d *decoder) Decode() (*Response, error) {
	var resp Response
	if err := d.dec.Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServerCodec is the endpoint side of the protocol, used by test doubles and
// emulators.
type ServerCodec struct {
	dec *json.Decoder
	w   io.Writer
}

// NewServerCodec wraps a connection accepted by an endpoint.
func NewServerCodec(rw io.ReadWriter) *ServerCodec {
	return &ServerCodec{dec: json.NewDecoder(rw), w: rw}
}

// ReadRequest reads the next request.
func (c *ServerCodec) ReadRequest() (*Request, error) {
	var req Request
	if err := c.dec.Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// WriteResponse writes one reply.
func (c *ServerCodec) WriteResponse(success bool, value any, errText string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Response{Success: success, Value: raw, Error: errText})
	if err != nil {
		return err
	}
	_, err = c.w.Write(append(data, '\n'))
	return err
}
