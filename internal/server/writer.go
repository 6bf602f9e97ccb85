package server

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/tylerwon/go-chat-rooms/internal/frame"
	"github.com/tylerwon/go-chat-rooms/internal/hub"
	"github.com/tylerwon/go-chat-rooms/internal/metrics"
)

// startWriter launches the goroutine draining the client's outbound queue
// onto the socket. A write failure closes the connection; the reader then
// observes the close and the dispatcher retires the session.
func (s *Server) startWriter(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = conn.Close() }()
		for {
			select {
			case fr := <-cl.Out:
				if err := frame.Write(conn, fr); err != nil {
					wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
					metrics.IncError(mapErrToMetric(wrap))
					s.setError(wrap)
					logger.Debug("conn_write_error", "error", err)
					return
				}
				metrics.AddFramesTx(1)
			case <-cl.Closed:
				// Flush whatever is already queued before tearing down.
				for {
					select {
					case fr := <-cl.Out:
						if err := frame.Write(conn, fr); err != nil {
							return
						}
						metrics.AddFramesTx(1)
					default:
						return
					}
				}
			case <-ctxDone:
				return
			}
		}
	}()
}
