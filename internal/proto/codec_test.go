package proto

import (
	"encoding/binary"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec := Codec{}
	msgs := []Message{
		&Chat{Timestamp: 1700000000, Name: "alice", Text: "hello, world"},
		&Chat{Timestamp: 0, Name: "", Text: ""},
		&Chat{Timestamp: 0xFFFFFFFF, Name: strings.Repeat("n", NameSizeLimit-1), Text: strings.Repeat("t", TextSizeLimit-1)},
		&Join{RoomID: 1},
		&Join{RoomID: 255},
		&Name{Name: "bob"},
		&Reply{Reply: "you have joined room 2"},
	}
	for _, in := range msgs {
		wire, err := codec.Encode(in)
		if err != nil {
			t.Fatalf("Encode(%#v): %v", in, err)
		}
		out, err := codec.Decode(wire)
		if err != nil {
			t.Fatalf("Decode(%#v): %v", in, err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round trip mismatch\nin:  %#v\nout: %#v", in, out)
		}
	}
}

func TestCodec_LengthPrefixCountsItself(t *testing.T) {
	codec := Codec{}
	wire, err := codec.Encode(&Name{Name: "carol"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := binary.BigEndian.Uint32(wire[:4]); int(got) != len(wire) {
		t.Fatalf("prefix %d, frame is %d bytes", got, len(wire))
	}
}

func TestCodec_ChatLayout(t *testing.T) {
	codec := Codec{}
	wire, err := codec.Encode(&Chat{Timestamp: 0x01020304, Name: "ab", Text: "xyz"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// prefix(4) type(1) ts(4) name_len(1) name+NUL(3) text_len(2) text+NUL(4)
	want := []byte{
		0, 0, 0, 19,
		byte(TypeChat),
		1, 2, 3, 4,
		3, 'a', 'b', 0,
		0, 4, 'x', 'y', 'z', 0,
	}
	if len(wire) != len(want) {
		t.Fatalf("frame length %d, want %d", len(wire), len(want))
	}
	for i := range want {
		if wire[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, wire[i], want[i])
		}
	}
}

func TestCodec_EncodeOversizeFields(t *testing.T) {
	codec := Codec{}
	tests := []Message{
		&Name{Name: strings.Repeat("n", NameSizeLimit)},
		&Chat{Name: strings.Repeat("n", NameSizeLimit)},
		&Chat{Text: strings.Repeat("t", TextSizeLimit)},
		&Reply{Reply: strings.Repeat("r", ReplySizeLimit)},
	}
	for _, m := range tests {
		if _, err := codec.Encode(m); !errors.Is(err, ErrFieldTooLong) {
			t.Fatalf("Encode(%T): got %v, want ErrFieldTooLong", m, err)
		}
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	codec := Codec{}
	mustEncode := func(m Message) []byte {
		wire, err := codec.Encode(m)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		return wire
	}

	t.Run("unknown type", func(t *testing.T) {
		wire := mustEncode(&Join{RoomID: 1})
		wire[4] = 42
		if _, err := codec.Decode(wire); !errors.Is(err, ErrUnknownType) {
			t.Fatalf("got %v, want ErrUnknownType", err)
		}
	})

	t.Run("short header", func(t *testing.T) {
		if _, err := codec.Decode([]byte{0, 0, 0}); !errors.Is(err, ErrTruncated) {
			t.Fatalf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("prefix disagrees with frame size", func(t *testing.T) {
		wire := mustEncode(&Name{Name: "dave"})
		binary.BigEndian.PutUint32(wire[:4], uint32(len(wire)+1))
		if _, err := codec.Decode(wire); !errors.Is(err, ErrTruncated) {
			t.Fatalf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		wire := mustEncode(&Chat{Name: "a", Text: "b"})
		wire = wire[:len(wire)-2]
		binary.BigEndian.PutUint32(wire[:4], uint32(len(wire)))
		if _, err := codec.Decode(wire); !errors.Is(err, ErrTruncated) {
			t.Fatalf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("trailing garbage", func(t *testing.T) {
		wire := mustEncode(&Join{RoomID: 3})
		wire = append(wire, 0xFF)
		binary.BigEndian.PutUint32(wire[:4], uint32(len(wire)))
		if _, err := codec.Decode(wire); !errors.Is(err, ErrTruncated) {
			t.Fatalf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("declared name over limit", func(t *testing.T) {
		// NAME frame whose name_len claims more than NameSizeLimit.
		payload := append([]byte{byte(TypeName), NameSizeLimit + 1}, make([]byte, NameSizeLimit+1)...)
		wire := make([]byte, 4, 4+len(payload))
		wire = append(wire, payload...)
		binary.BigEndian.PutUint32(wire[:4], uint32(len(wire)))
		if _, err := codec.Decode(wire); !errors.Is(err, ErrFieldTooLong) {
			t.Fatalf("got %v, want ErrFieldTooLong", err)
		}
	})

	t.Run("missing NUL terminator", func(t *testing.T) {
		wire := mustEncode(&Name{Name: "eve"})
		wire[len(wire)-1] = 'x'
		if _, err := codec.Decode(wire); !errors.Is(err, ErrTruncated) {
			t.Fatalf("got %v, want ErrTruncated", err)
		}
	})
}
