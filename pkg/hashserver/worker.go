package hashserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/getmockd/hashserver/pkg/dispatch"
)

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "port", s.port, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}

		if !s.trackConn(conn) {
			_ = conn.Close()
			continue
		}
		s.metrics.Connections.Inc()

		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

// serveConn reads one request from conn, answers it and closes conn.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(conn)

	id := int(s.nextWorker.Add(1))
	log := s.log.With("worker", id)

	defer func() {
		if p := recover(); p != nil {
			log.Error("worker panicked", "panic", p)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		switch {
		// port probes connect and hang up without sending anything
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
			log.Debug("connection closed before a request was read")
		case errors.Is(err, os.ErrDeadlineExceeded):
			log.Debug("timed out waiting for a request")
		default:
			log.Warn("bad request", "error", err)
			resp := dispatch.BadRequestResponse(err)
			_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
			if _, err := resp.WriteTo(conn); err != nil {
				log.Debug("writing response", "error", err)
			}
			s.metrics.ObserveResponse(resp.Kind, resp.Status, 0)
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	kill := func() {
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetLinger(0)
		}
		_ = conn.Close()
		cancel()
	}
	if err := s.registry.MarkActive(id, kill); err != nil {
		log.Debug("dropping request", "path", req.RequestURI, "error", err)
		return
	}
	s.metrics.ActiveWorkers.Inc()
	defer func() {
		s.registry.MarkInactive(id)
		s.metrics.ActiveWorkers.Dec()
	}()

	resp, err := s.dispatcher.Dispatch(wctx, req)
	if err != nil {
		if wctx.Err() != nil {
			log.Debug("worker killed", "path", req.RequestURI)
			return
		}
		log.Error("request failed", "path", req.RequestURI, "error", err)
		resp = dispatch.ErrorResponse(err)
	}

	if _, err := resp.WriteTo(conn); err != nil {
		log.Debug("writing response", "path", req.RequestURI, "error", err)
	}
}

// trackConn records conn so Stop can close it. It returns false once the
// server is stopping.
func (s *Server) trackConn(conn net.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connMu.Lock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
	s.connMu.Unlock()
	_ = conn.Close()
}

// closeConns closes every open connection, unblocking workers that still
// wait for a request, and refuses new ones.
func (s *Server) closeConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}
