package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// StartHTTPServer serves handler on host:port. The returned shutdown func
// drains connections within its context deadline.
func StartHTTPServer(host string, port int, handler http.Handler) (shutdown func(context.Context) error) {
	srv := &http.Server{
		Addr:              net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv.Shutdown
}
