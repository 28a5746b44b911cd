package main

import (
	"context"
	"net/http"
	"time"
)

// httpServer wraps net/http.Server so main can start it in a goroutine and
// shut it down gracefully once a termination signal arrives.
type httpServer struct {
	addr   string
	router http.Handler
	srv    *http.Server
}

func (s *httpServer) listenAndServe() error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.router}
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *httpServer) shutdown(timeout time.Duration) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
