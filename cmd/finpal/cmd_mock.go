package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/finpal/internal/mockserver"
)

var (
	mockAddr            string
	mockInsightInterval time.Duration
)

// mockCmd runs the development backend
var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a local backend with canned advisors and data",
	Long: `Serves the REST and WebSocket API the dashboard talks to, backed by
in-memory sample data. Demo scenarios and periodic proactive insights are
broadcast to every connected client.`,
	Args: cobra.NoArgs,
	RunE: runMock,
}

func runMock(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := mockAddr
	if addr == "" {
		addr = cfg.Mock.Addr
	}
	interval := mockInsightInterval
	if interval <= 0 {
		interval = time.Duration(cfg.Mock.InsightIntervalSec) * time.Second
	}

	srv, err := mockserver.New(mockserver.Options{
		InsightInterval: interval,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	cmd.Printf("mock backend on %s (ctrl+c to stop)\n", addr)
	return srv.Run(ctx, addr)
}
