package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/prashnly-client/internal/adapters/cli"
	"github.com/kirillkom/prashnly-client/internal/bootstrap"
	"github.com/kirillkom/prashnly-client/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := cli.NewNotifier(os.Stderr)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "prashnly", Notifier: notifier})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		return 1
	}
	defer app.Close()

	runner := cli.New(cli.Deps{
		Guard:         app.Guard,
		Auth:          app.Auth,
		Share:         app.Share,
		Chat:          app.Chat,
		Billing:       app.Billing,
		Documents:     app.Documents,
		Upload:        app.Upload,
		Usage:         app.Usage,
		ChatHistory:   app.ChatHistory,
		WatchDebounce: cfg.WatchDebounce,
		Ops:           app.ServeOps,

		ShareUnlockPersists: cfg.ShareStore != config.ShareStoreMemory,
	}, notifier, os.Stdout, os.Stderr, os.Stdin)
	return runner.Run(ctx, os.Args[1:])
}
