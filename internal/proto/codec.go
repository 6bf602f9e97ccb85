package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Codec encodes/decodes whole chat frames. Stateless and safe for concurrent use.
type Codec struct{}

// ErrTruncated is returned when a frame is shorter than its variant prescribes
// or declares a length that disagrees with the bytes actually present.
var ErrTruncated = errors.New("proto: truncated frame")

// ErrUnknownType is returned for a tag outside the four known variants.
var ErrUnknownType = errors.New("proto: unknown message type")

// ErrFieldTooLong is returned when a string field exceeds its size limit.
var ErrFieldTooLong = errors.New("proto: field exceeds size limit")

// Encode serializes m into one frame: total length (4 bytes, big-endian,
// counting itself), type tag (1 byte), then the variant payload. Strings are
// written NUL-terminated and their length fields include the NUL.
func (c *Codec) Encode(m Message) ([]byte, error) {
	var payload bytes.Buffer
	switch v := m.(type) {
	case *Chat:
		if len(v.Name)+1 > NameSizeLimit {
			return nil, fmt.Errorf("proto encode chat name: %w", ErrFieldTooLong)
		}
		if len(v.Text)+1 > TextSizeLimit {
			return nil, fmt.Errorf("proto encode chat text: %w", ErrFieldTooLong)
		}
		var ts [4]byte
		binary.BigEndian.PutUint32(ts[:], v.Timestamp)
		payload.Write(ts[:])
		writeString8(&payload, v.Name)
		writeString16(&payload, v.Text)
	case *Join:
		payload.WriteByte(v.RoomID)
	case *Name:
		if len(v.Name)+1 > NameSizeLimit {
			return nil, fmt.Errorf("proto encode name: %w", ErrFieldTooLong)
		}
		writeString8(&payload, v.Name)
	case *Reply:
		if len(v.Reply)+1 > ReplySizeLimit {
			return nil, fmt.Errorf("proto encode reply: %w", ErrFieldTooLong)
		}
		writeString8(&payload, v.Reply)
	default:
		return nil, fmt.Errorf("proto encode: %w (%T)", ErrUnknownType, m)
	}

	total := HeaderSize + payload.Len()
	frame := make([]byte, 0, total)
	var hdr [PrefixSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(total))
	frame = append(frame, hdr[:]...)
	frame = append(frame, byte(m.Type()))
	return append(frame, payload.Bytes()...), nil
}

// Decode parses one whole frame as produced by Encode. The variant decoder
// must consume exactly the bytes the declared lengths prescribe; leftover or
// missing bytes fail with ErrTruncated.
func (c *Codec) Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("proto decode header: %w", ErrTruncated)
	}
	total := binary.BigEndian.Uint32(frame[:PrefixSize])
	if int(total) != len(frame) {
		return nil, fmt.Errorf("proto decode: declared %d bytes, have %d: %w", total, len(frame), ErrTruncated)
	}
	d := decoder{buf: frame[HeaderSize:]}
	var m Message
	switch Type(frame[PrefixSize]) {
	case TypeChat:
		ts := d.uint32()
		name := d.string8(NameSizeLimit)
		text := d.string16(TextSizeLimit)
		m = &Chat{Timestamp: ts, Name: name, Text: text}
	case TypeJoin:
		m = &Join{RoomID: d.byte()}
	case TypeName:
		m = &Name{Name: d.string8(NameSizeLimit)}
	case TypeReply:
		m = &Reply{Reply: d.string8(ReplySizeLimit)}
	default:
		return nil, fmt.Errorf("proto decode: %w (%d)", ErrUnknownType, frame[PrefixSize])
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, fmt.Errorf("proto decode: %d trailing bytes: %w", len(d.buf), ErrTruncated)
	}
	return m, nil
}

func writeString8(buf *bytes.Buffer, s string) {
	buf.WriteByte(uint8(len(s) + 1))
	buf.WriteString(s)
	buf.WriteByte(0)
}

func writeString16(buf *bytes.Buffer, s string) {
	var ln [2]byte
	binary.BigEndian.PutUint16(ln[:], uint16(len(s)+1))
	buf.Write(ln[:])
	buf.WriteString(s)
	buf.WriteByte(0)
}

// decoder is a failure-latching cursor over a frame payload.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = fmt.Errorf("proto decode: need %d bytes, have %d: %w", n, len(d.buf), ErrTruncated)
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) byte() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) uint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// string8 reads a 1-byte length (which counts the trailing NUL) followed by
// the string bytes, enforcing limit.
func (d *decoder) string8(limit int) string {
	return d.str(int(d.byte()), limit)
}

// string16 is string8 with a 2-byte big-endian length.
func (d *decoder) string16(limit int) string {
	b := d.take(2)
	if b == nil {
		return ""
	}
	return d.str(int(binary.BigEndian.Uint16(b)), limit)
}

func (d *decoder) str(n, limit int) string {
	if d.err != nil {
		return ""
	}
	if n < 1 || n > limit {
		d.err = fmt.Errorf("proto decode: string length %d (limit %d): %w", n, limit, ErrFieldTooLong)
		return ""
	}
	b := d.take(n)
	if b == nil {
		return ""
	}
	if b[n-1] != 0 {
		d.err = fmt.Errorf("proto decode: string not NUL-terminated: %w", ErrTruncated)
		return ""
	}
	return string(b[:n-1])
}
