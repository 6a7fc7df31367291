// Package main runs the subname registrar HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/namedock/registrar/internal/app/runtime"
)

func main() {
	addr := flag.String("addr", "", "listen address host:port, overrides SERVER_HOST/SERVER_PORT")
	flag.Parse()

	if *addr != "" {
		host, port, ok := splitAddr(*addr)
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid -addr %q\n", *addr)
			os.Exit(1)
		}
		os.Setenv("SERVER_HOST", host)
		os.Setenv("SERVER_PORT", port)
	}

	app, err := runtime.NewApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
}

func splitAddr(addr string) (host, port string, ok bool) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], addr[i+1:] != ""
		}
	}
	return "", "", false
}
