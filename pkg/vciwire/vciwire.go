// Package vciwire implements the framing the console and the driver daemon
// speak over a stream transport. One envelope per command, response or
// notification:
//
//	kind     1 byte
//	seq      4 bytes big endian
//	name len 1 byte
//	name     n bytes
//	body len 2 bytes big endian
//	body     n bytes
//	checksum 1 byte, additive over name and body
//
// Responses echo the request's seq. Notifications carry seq 0 and the topic
// in the name field.
package vciwire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type Kind uint8

const (
	Request      Kind = 0x01
	Response     Kind = 0x02
	Notification Kind = 0x03
)

func (k Kind) String() string {
	switch k {
	case Request:
		return "request"
	case Response:
		return "response"
	case Notification:
		return "notification"
	default:
		return fmt.Sprintf("kind(0x%02X)", uint8(k))
	}
}

var (
	ErrChecksum    = errors.New("checksum validation failed")
	ErrNameTooLong = errors.New("name is too long")
	ErrBodyTooBig  = errors.New("body is too big")
)

type Envelope struct {
	Kind Kind
	Seq  uint32
	Name string
	Body []byte
}

func NewRequest(seq uint32, name string, body []byte) *Envelope {
	return &Envelope{Kind: Request, Seq: seq, Name: name, Body: body}
}

func NewResponse(seq uint32, name string, body []byte) *Envelope {
	return &Envelope{Kind: Response, Seq: seq, Name: name, Body: body}
}

func NewNotification(topic string, payload []byte) *Envelope {
	return &Envelope{Kind: Notification, Name: topic, Body: payload}
}

func (e *Envelope) MarshalBinary() ([]byte, error) {
	if len(e.Name) > 0xFF {
		return nil, ErrNameTooLong
	}
	if len(e.Body) > 0xFFFF {
		return nil, ErrBodyTooBig
	}
	data := make([]byte, 0, 9+len(e.Name)+len(e.Body))
	data = append(data, byte(e.Kind))
	data = binary.BigEndian.AppendUint32(data, e.Seq)
	data = append(data, byte(len(e.Name)))
	data = append(data, e.Name...)
	data = binary.BigEndian.AppendUint16(data, uint16(len(e.Body)))
	data = append(data, e.Body...)
	data = append(data, e.Checksum())
	return data, nil
}

func (e *Envelope) Checksum() byte {
	var checksum byte
	for _, b := range []byte(e.Name) {
		checksum += b
	}
	for _, b := range e.Body {
		checksum += b
	}
	return checksum
}

func (e *Envelope) String() string {
	return fmt.Sprintf("%s seq=%d name=%s body=%02X", e.Kind, e.Seq, e.Name, e.Body)
}

// Write marshals the envelope and puts it on the stream in a single write.
func Write(w io.Writer, e *Envelope) error {
	data, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Read consumes exactly one envelope from the stream.
func Read(r io.Reader) (*Envelope, error) {
	head := make([]byte, 6)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	e := &Envelope{
		Kind: Kind(head[0]),
		Seq:  binary.BigEndian.Uint32(head[1:5]),
	}
	name := make([]byte, head[5])
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}
	e.Name = string(name)

	var blen [2]byte
	if _, err := io.ReadFull(r, blen[:]); err != nil {
		return nil, err
	}
	body := make([]byte, binary.BigEndian.Uint16(blen[:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	e.Body = body

	var sum [1]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return nil, err
	}
	if sum[0] != e.Checksum() {
		return nil, ErrChecksum
	}
	return e, nil
}

// Result is the JSON body of every response envelope. Either Error or Data
// is set, never both.
type Result struct {
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OK builds a success response body around a JSON payload.
func OK(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Result{Data: raw})
}

// Fail builds a failure response body.
func Fail(msg string) []byte {
	body, _ := json.Marshal(Result{Error: msg})
	return body
}
