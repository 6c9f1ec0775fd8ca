// Package server accepts TCP connections, frames them as newline-delimited JSON messages, and drives them through
// a dispatch.Table. It owns every connection it accepts and is the only package that reaches into the connection
// layer; the router and registry only ever see a connection through the transport.Conn interface and a callback.
package server

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaychat-im/relaychat-server/internal/codec"
	"github.com/relaychat-im/relaychat-server/internal/dispatch"
)

// sendBufferSize bounds how many outbound frames can queue for a connection before it is considered unresponsive.
const sendBufferSize = 64

// CloseHandler is invoked exactly once, from the connection's goroutine, when its read loop ends for any reason
// (client disconnect, protocol error, or explicit Close). It is the server shell's half of the one-way-ownership
// design: the connection layer calls back into the router by connection id, rather than the router reaching back
// into the connection layer.
type CloseHandler func(connID string)

// Conn is one accepted TCP connection. It satisfies transport.Conn.
type Conn struct {
	id     string
	nc     net.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	log    zerolog.Logger
}

// ID returns the connection's stable identifier, independent of the underlying net.Conn.
func (c *Conn) ID() string { return c.id }

// Send queues frame for the write pump. If the connection's send buffer is full, the connection is assumed stalled
// and is closed rather than allowed to block the caller indefinitely.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return net.ErrClosed
	default:
		c.log.Warn().Str("conn_id", c.id).Msg("server: send buffer full, closing stalled connection")
		_ = c.Close()
		return net.ErrClosed
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.nc.Close()
	})
	return err
}

// Server accepts connections on a TCP listener and drives each through table until it closes.
type Server struct {
	listener net.Listener
	table    *dispatch.Table
	onClose  CloseHandler
	log      zerolog.Logger
}

// New wraps an already-open listener. The caller is responsible for closing it (via Shutdown).
func New(listener net.Listener, table *dispatch.Table, onClose CloseHandler, logger zerolog.Logger) *Server {
	return &Server{listener: listener, table: table, onClose: onClose, log: logger}
}

// Serve accepts connections until ctx is canceled or the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}
		go s.handle(ctx, nc)
	}
}

// Shutdown closes the listener, causing Serve to return.
func (s *Server) Shutdown() error {
	return s.listener.Close()
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	conn := &Conn{
		id:     uuid.NewString(),
		nc:     nc,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
		log:    s.log,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump(conn)
	}()

	s.readPump(ctx, conn)

	_ = conn.Close()
	wg.Wait()

	if s.onClose != nil {
		s.onClose(conn.id)
	}
}

func (s *Server) readPump(ctx context.Context, conn *Conn) {
	scanner := bufio.NewScanner(conn.nc)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame, err := codec.Decode(line)
		if err != nil {
			s.log.Warn().Err(err).Str("conn_id", conn.id).Msg("server: dropping malformed frame")
			continue
		}
		s.table.Dispatch(ctx, conn, frame)
	}
}

func (s *Server) writePump(conn *Conn) {
	for {
		select {
		case frame, ok := <-conn.send:
			if !ok {
				return
			}
			if _, err := conn.nc.Write(frame); err != nil {
				s.log.Warn().Err(err).Str("conn_id", conn.id).Msg("server: write failed, closing connection")
				_ = conn.Close()
				return
			}
		case <-conn.closed:
			return
		}
	}
}
