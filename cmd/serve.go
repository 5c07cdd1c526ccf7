package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theirongolddev/agentlens/internal/daemon"
	"github.com/theirongolddev/agentlens/internal/server"

	"github.com/spf13/cobra"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (host:port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	svc, cfg, err := newService()
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if flagAddr != "" {
		addr = flagAddr
	}

	srv := server.NewServer(addr, svc)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	fmt.Printf("  Serving on http://%s\n", srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	maint := daemon.New(daemon.Config{
		Interval:      5 * time.Minute,
		WarmLimit:     cfg.Cache.WarmOnStartup,
		BackfillLimit: cfg.Cache.BackfillLimit,
	}, svc)
	go func() { _ = maint.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\n  Shutting down...")
	cancel()
	return srv.Stop()
}
