package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-up/internal/webui"
)

func main() {
	cfg, err := webui.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	client := webui.NewClient(cfg.APIURL, &http.Client{Timeout: cfg.RequestTimeout})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           webui.NewServer(client),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		slog.Error("error starting server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Running", slog.String("addr", srv.Addr), slog.String("api", cfg.APIURL))
	if err := webui.Serve(ctx, srv, ln, 10*time.Second); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
