package server

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewHTTPServer wraps handler in an http.Server whose request contexts are
// cancelled as soon as Shutdown starts. Shutdown does not interrupt hijacked
// or long-lived responses on its own, so event streams watch that context
// to end before the shutdown deadline.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}
