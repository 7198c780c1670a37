package sse

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Server serves a Handler on /events.
type Server struct {
	handler  *Handler
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// Listen binds addr and starts serving in the background.
func Listen(addr string, h *Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	s := &Server{
		handler:  h,
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		done:     make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close ends open streams once their buffered events are written, then
// stops the server. Connections still open when ctx expires are dropped.
func (s *Server) Close(ctx context.Context) error {
	s.handler.CloseStreams()
	if err := s.srv.Shutdown(ctx); err != nil {
		_ = s.srv.Close()
	}
	return <-s.done
}
