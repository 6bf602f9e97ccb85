// Package client implements the terminal chat session: one TCP connection to
// the server plus line-oriented input, each pumped by its own goroutine into
// a single select loop.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/tylerwon/go-chat-rooms/internal/logging"
	"github.com/tylerwon/go-chat-rooms/internal/proto"
	"github.com/tylerwon/go-chat-rooms/internal/transport"
)

// ErrServerClosed is returned by Run when the server ends the connection.
var ErrServerClosed = errors.New("client: server closed the connection")

// Session owns one connection to a chat server.
type Session struct {
	conn        net.Conn
	codec       transport.Codec
	in          io.Reader
	out         io.Writer
	interactive bool
	logger      *slog.Logger
}

type Option func(*Session)

func WithInput(r io.Reader) Option       { return func(s *Session) { s.in = r } }
func WithOutput(w io.Writer) Option      { return func(s *Session) { s.out = w } }
func WithInteractive(on bool) Option     { return func(s *Session) { s.interactive = on } }
func WithCodec(c transport.Codec) Option { return func(s *Session) { s.codec = c } }
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Session {
	s := &Session{
		conn:   conn,
		codec:  &proto.Codec{},
		in:     os.Stdin,
		out:    os.Stdout,
		logger: logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dial connects to a chat server and wraps the connection.
func Dial(addr string, opts ...Option) (*Session, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client dial: %w", err)
	}
	return New(conn, opts...), nil
}

// Run pumps input lines and server frames until /exit, input EOF, server
// hangup, or ctx cancellation. A clean user exit returns nil.
func (s *Session) Run(ctx context.Context) error {
	defer func() { _ = s.conn.Close() }()
	s.logger.Debug("session_start", "remote", s.conn.RemoteAddr().String())

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(s.in)
		// Oversized lines are rejected in handleLine with a local message,
		// so give the scanner comfortable headroom past the wire limit.
		sc.Buffer(make([]byte, 4096), 64*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	msgs := make(chan proto.Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			m, err := transport.ReadMessage(s.conn, s.codec)
			if err != nil {
				readErr <- err
				return
			}
			msgs <- m
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				// Input closed; leave as if the user typed /exit.
				if err := <-scanErr; err != nil {
					return fmt.Errorf("client input: %w", err)
				}
				return nil
			}
			exit, err := s.handleLine(line)
			if err != nil {
				return err
			}
			if exit {
				return nil
			}
		case m := <-msgs:
			if err := s.render(m); err != nil {
				return err
			}
		case err := <-readErr:
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			return fmt.Errorf("client read: %w", err)
		}
	}
}

// handleLine erases the echoed input line, then either runs a /command or
// sends the line as a chat message.
func (s *Session) handleLine(line string) (exit bool, err error) {
	if s.interactive {
		fmt.Fprint(s.out, eraseInputLine)
	}
	if line == "" {
		return false, nil
	}
	if line[0] == '/' {
		msg, exit, cmdErr := parseCommand(line)
		if cmdErr != nil {
			fmt.Fprintf(s.out, "%s\n", cmdErr)
			return false, nil
		}
		if exit {
			return true, nil
		}
		return false, s.sendMessage(msg)
	}
	if len(line)+1 > proto.TextSizeLimit {
		fmt.Fprintf(s.out, "message too long (max %d bytes)\n", proto.TextSizeLimit-1)
		return false, nil
	}
	// Name and timestamp are stamped by the server; only text matters here.
	return false, s.sendMessage(&proto.Chat{Text: line})
}

func (s *Session) sendMessage(m proto.Message) error {
	if err := transport.WriteMessage(s.conn, s.codec, m); err != nil {
		return fmt.Errorf("client send: %w", err)
	}
	return nil
}

func (s *Session) render(m proto.Message) error {
	switch v := m.(type) {
	case *proto.Chat:
		renderChat(s.out, v)
	case *proto.Reply:
		renderReply(s.out, v)
	default:
		// JOIN/NAME never flow server to client.
		return fmt.Errorf("client: unexpected %T from server", m)
	}
	return nil
}
