// Package transport defines the codec capabilities the server and client
// depend on, decoupling them from the concrete wire format.
package transport

import (
	"io"

	"github.com/tylerwon/go-chat-rooms/internal/frame"
	"github.com/tylerwon/go-chat-rooms/internal/proto"
)

// MessageEncoder serializes one message into a wire frame.
type MessageEncoder interface {
	Encode(proto.Message) ([]byte, error)
}

// MessageDecoder parses one whole wire frame.
type MessageDecoder interface {
	Decode([]byte) (proto.Message, error)
}

// Codec is what the dispatcher and client session require end to end.
type Codec interface {
	MessageEncoder
	MessageDecoder
}

// ReadMessage pulls one frame off the stream and decodes it.
func ReadMessage(r io.Reader, dec MessageDecoder) (proto.Message, error) {
	b, err := frame.Read(r)
	if err != nil {
		return nil, err
	}
	return dec.Decode(b)
}

// WriteMessage encodes m and sends it as one frame.
func WriteMessage(w io.Writer, enc MessageEncoder, m proto.Message) error {
	b, err := enc.Encode(m)
	if err != nil {
		return err
	}
	return frame.Write(w, b)
}

// Compile-time assertion that *proto.Codec satisfies the full capability set.
var _ Codec = (*proto.Codec)(nil)
