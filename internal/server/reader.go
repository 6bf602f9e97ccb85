package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/tylerwon/go-chat-rooms/internal/frame"
	"github.com/tylerwon/go-chat-rooms/internal/metrics"
)

// startReader launches the goroutine pulling frames off one connection and
// feeding them to the dispatcher. Every exit path other than context
// cancellation reports a hangup so the dispatcher can retire the session.
func (s *Server) startReader(ctxDone <-chan struct{}, conn net.Conn, sess *session, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		hangup := func(err error) {
			select {
			case s.events <- event{kind: evHangup, sess: sess, err: err}:
			case <-ctxDone:
			}
		}
		for {
			if s.readDeadline > 0 {
				_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			}
			b, err := frame.Read(conn)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) {
					hangup(nil)
					return
				}
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					select {
					case <-ctxDone:
						return
					default:
					}
					continue
				}
				if errors.Is(err, frame.ErrFrameTooLarge) || errors.Is(err, frame.ErrFrameTooShort) {
					metrics.IncMalformed()
					metrics.IncError(metrics.ErrProtocol)
					hangup(fmt.Errorf("%w: %v", ErrProtocol, err))
					return
				}
				wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
				metrics.IncError(mapErrToMetric(wrap))
				s.setError(wrap)
				hangup(wrap)
				return
			}
			m, err := s.Codec.Decode(b)
			if err != nil {
				metrics.IncMalformed()
				metrics.IncError(metrics.ErrProtocol)
				logger.Warn("malformed_frame", "error", err)
				hangup(fmt.Errorf("%w: %v", ErrProtocol, err))
				return
			}
			metrics.IncFramesRx()
			select {
			case s.events <- event{kind: evFrame, sess: sess, msg: m}:
			case <-ctxDone:
				return
			}
		}
	}()
}
