package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/tylerwon/go-chat-rooms/internal/proto"
)

func TestReadWriteMessage(t *testing.T) {
	codec := &proto.Codec{}
	var stream bytes.Buffer
	msgs := []proto.Message{
		&proto.Name{Name: "alice"},
		&proto.Join{RoomID: 2},
		&proto.Chat{Timestamp: 12345, Name: "alice", Text: "hi"},
		&proto.Reply{Reply: "you have joined room 2"},
	}
	for _, m := range msgs {
		if err := WriteMessage(&stream, codec, m); err != nil {
			t.Fatalf("WriteMessage(%T): %v", m, err)
		}
	}
	for _, want := range msgs {
		got, err := ReadMessage(&stream, codec)
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		if got.Type() != want.Type() {
			t.Fatalf("got type %d, want %d", got.Type(), want.Type())
		}
	}
	if _, err := ReadMessage(&stream, codec); err != io.EOF {
		t.Fatalf("got %v at stream end, want io.EOF", err)
	}
}
