package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/prashnly-client/internal/adapters/mcp"
	"github.com/kirillkom/prashnly-client/internal/bootstrap"
	"github.com/kirillkom/prashnly-client/internal/config"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "prashnly-mcp"})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	go func() {
		if err := app.ServeOps(ctx); err != nil {
			slog.Error("ops_server_failed", "error", err)
		}
	}()

	s := mcpadapter.NewServer("prashnly", version, &mcpadapter.Tools{
		Guard:     app.Guard,
		Documents: func() ports.DocumentLister { return app.Documents() },
		Asker:     app.Chat,
		Usage:     func() ports.UsageReader { return app.Usage() },
	})
	if err := mcpadapter.ServeStdio(s); err != nil {
		slog.Error("mcp_server_stopped", "error", err)
	}
}
