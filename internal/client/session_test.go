package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tylerwon/go-chat-rooms/internal/frame"
	"github.com/tylerwon/go-chat-rooms/internal/proto"
)

var testCodec = &proto.Codec{}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    proto.Message
		exit    bool
		wantErr bool
	}{
		{line: "/name alice", want: &proto.Name{Name: "alice"}},
		{line: "/name alice smith", want: &proto.Name{Name: "alice smith"}},
		{line: "/join 3", want: &proto.Join{RoomID: 3}},
		{line: "/exit", exit: true},
		{line: "/name", wantErr: true},
		{line: "/name " + strings.Repeat("x", proto.NameSizeLimit), wantErr: true},
		{line: "/join", wantErr: true},
		{line: "/join abc", wantErr: true},
		{line: "/join 300", wantErr: true},
		{line: "/quit", wantErr: true},
		{line: "/", wantErr: true},
	}
	for _, tc := range tests {
		msg, exit, err := parseCommand(tc.line)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.line)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.line, err)
		}
		if exit != tc.exit {
			t.Fatalf("%q: exit = %v, want %v", tc.line, exit, tc.exit)
		}
		if tc.want != nil && fmt.Sprintf("%#v", msg) != fmt.Sprintf("%#v", tc.want) {
			t.Fatalf("%q: got %#v, want %#v", tc.line, msg, tc.want)
		}
	}
}

func TestRenderChat(t *testing.T) {
	ts := time.Date(2024, 6, 1, 9, 5, 0, 0, time.Local)
	var buf bytes.Buffer
	renderChat(&buf, &proto.Chat{Timestamp: uint32(ts.Unix()), Name: "tyler", Text: "hello, world"})
	if got, want := buf.String(), "(09:05) tyler: hello, world\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderReply(t *testing.T) {
	var buf bytes.Buffer
	renderReply(&buf, &proto.Reply{Reply: "you have joined room 2"})
	if got, want := buf.String(), "** you have joined room 2 **\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// startSession runs a session over net.Pipe and returns the server end, the
// input feed, the output buffer and the Run result channel.
func startSession(t *testing.T) (net.Conn, *io.PipeWriter, *syncBuffer, chan error) {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	inR, inW := io.Pipe()
	out := &syncBuffer{}
	sess := New(clientEnd, WithInput(inR), WithOutput(out))
	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()
	t.Cleanup(func() {
		_ = serverEnd.Close()
		_ = inW.Close()
	})
	return serverEnd, inW, out, done
}

func readMessage(t *testing.T, conn net.Conn) proto.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	b, err := frame.Read(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, err := testCodec.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func writeMessage(t *testing.T, conn net.Conn, m proto.Message) {
	t.Helper()
	b, err := testCodec.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := frame.Write(conn, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSession_ChatAndCommands(t *testing.T) {
	serverEnd, inW, out, _ := startSession(t)

	fmt.Fprintln(inW, "/name alice")
	if m := readMessage(t, serverEnd); m.(*proto.Name).Name != "alice" {
		t.Fatalf("got %#v", m)
	}

	fmt.Fprintln(inW, "/join 2")
	if m := readMessage(t, serverEnd); m.(*proto.Join).RoomID != 2 {
		t.Fatalf("got %#v", m)
	}

	fmt.Fprintln(inW, "hello there")
	chat := readMessage(t, serverEnd).(*proto.Chat)
	if chat.Text != "hello there" || chat.Name != "" || chat.Timestamp != 0 {
		t.Fatalf("chat = %#v; only text should be set", chat)
	}

	writeMessage(t, serverEnd, &proto.Reply{Reply: "you have joined room 2"})
	waitOutput(t, out, "** you have joined room 2 **\n")
}

func TestSession_RendersIncomingChat(t *testing.T) {
	serverEnd, _, out, _ := startSession(t)
	ts := time.Date(2024, 6, 1, 17, 30, 0, 0, time.Local)
	writeMessage(t, serverEnd, &proto.Chat{Timestamp: uint32(ts.Unix()), Name: "bob", Text: "hi"})
	waitOutput(t, out, "(17:30) bob: hi\n")
}

func TestSession_UnknownCommandStaysLocal(t *testing.T) {
	serverEnd, inW, out, _ := startSession(t)

	fmt.Fprintln(inW, "/frobnicate")
	waitOutput(t, out, "unknown command /frobnicate\n")

	// Nothing was sent on the wire.
	_ = serverEnd.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := frame.Read(serverEnd); err == nil {
		t.Fatalf("unexpected frame after local-only command")
	}
}

func TestSession_ExitCommand(t *testing.T) {
	_, inW, _, done := startSession(t)
	fmt.Fprintln(inW, "/exit")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v, want nil on /exit", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not exit")
	}
}

func TestSession_InputEOFExitsCleanly(t *testing.T) {
	_, inW, _, done := startSession(t)
	_ = inW.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v, want nil on input EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not exit")
	}
}

func TestSession_ServerHangup(t *testing.T) {
	serverEnd, _, _, done := startSession(t)
	_ = serverEnd.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrServerClosed) {
			t.Fatalf("Run = %v, want ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not exit")
	}
}

func TestSession_UnexpectedTypeFromServer(t *testing.T) {
	serverEnd, _, _, done := startSession(t)
	writeMessage(t, serverEnd, &proto.Join{RoomID: 1})
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("Run = nil, want protocol error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not exit")
	}
}

func waitOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("output %q never contained %q", out.String(), want)
}

// syncBuffer is a bytes.Buffer safe for cross-goroutine use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
