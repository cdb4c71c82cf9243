package logging

import (
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
)

// startPprof binds addr and serves the pprof handlers in the background. It
// returns the bound address, which differs from addr when addr uses port 0.
func startPprof(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		Logger().Error("pprof_listen_failed",
			slog.String("addr", addr),
			slog.String("error", err.Error()))
		return "", err
	}
	bound := ln.Addr().String()
	Logger().Info("pprof_server_start", slog.String("addr", bound))
	go func() {
		if err := http.Serve(ln, nil); err != nil {
			Logger().Error("pprof_server_error", slog.String("error", err.Error()))
		}
	}()
	return bound, nil
}
