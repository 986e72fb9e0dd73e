// Package server provides the TCP front end of the key-value store. It
// accepts connections, dispatches each one to a worker pool, and speaks the
// JSON wire protocol against a pluggable storage engine.
package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/jassi-singh/aetherdb/internal/engine"
	"github.com/jassi-singh/aetherdb/internal/pool"
	"github.com/jassi-singh/aetherdb/internal/wire"
)

// Server accepts client connections and serves requests against its engine.
type Server struct {
	engine engine.Engine
	pool   pool.Pool
}

// New creates a server around the given engine and worker pool.
func New(e engine.Engine, p pool.Pool) *Server {
	return &Server{engine: e, pool: p}
}

// ListenAndServe binds a TCP listener on addr and serves until the listener
// fails. A malformed address or occupied port surfaces as the bind error.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve runs the accept loop on an existing listener. Each accepted
// connection is handled end-to-end by one worker pool job; connection
// failures never terminate the server.
func (s *Server) Serve(listener net.Listener) error {
	slog.Info("server: listening",
		"addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		eng := s.engine
		s.pool.Spawn(func() {
			handleConn(eng, conn)
		})
	}
}

// handleConn serves the stream of requests on one connection. Requests may
// be pipelined; each is answered in order with exactly one response. Any
// I/O or parse error tears down this connection only.
func handleConn(eng engine.Engine, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	slog.Debug("server: connection accepted",
		"remote", remote)

	dec := json.NewDecoder(bufio.NewReader(conn))
	w := bufio.NewWriter(conn)

	for {
		var req wire.Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("server: dropping connection",
					"remote", remote,
					"error", err)
			}
			return
		}

		var resp interface{}
		switch {
		case req.Set != nil:
			if err := eng.Set(req.Set.Key, req.Set.Value); err != nil {
				resp = wire.AckResponse{Err: err.Error()}
			} else {
				resp = wire.AckResponse{}
			}
		case req.Get != nil:
			value, err := eng.Get(*req.Get)
			switch {
			case err == nil:
				resp = wire.GetResponse{Value: &value}
			case errors.Is(err, engine.ErrKeyNotFound):
				resp = wire.GetResponse{}
			default:
				resp = wire.GetResponse{Err: err.Error()}
			}
		case req.Rm != nil:
			if err := eng.Remove(*req.Rm); err != nil {
				resp = wire.AckResponse{Err: err.Error()}
			} else {
				resp = wire.AckResponse{}
			}
		}

		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error("server: failed to encode response",
				"remote", remote,
				"error", err)
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}
