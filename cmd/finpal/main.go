package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/logging"
	"github.com/nhle/finpal/internal/model"
)

var (
	// Global flags
	verbose    bool
	configPath string
	serverURL  string

	cfg    *model.AppConfig
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "finpal",
	Short: "FinPal - your financial advisors in the terminal",
	Long: `FinPal is a terminal dashboard for three AI financial advisors:
Sofia (financial planning), Marcus (investments) and Luna (spending habits).

Advisors push insights over a live connection. They show up as toasts,
in the notification drawer and as previews on each advisor's card.

Run without arguments to open the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if serverURL != "" {
			cfg.Server.BaseURL = strings.TrimRight(serverURL, "/")
			cfg.Server.WSURL = websocketURL(cfg.Server.BaseURL)
		}

		logger, err = logging.New(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runDashboard,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Backend URL (overrides server.base_url and server.ws_url)")

	tailCmd.Flags().BoolVar(&tailJSON, "json", false, "Print one JSON object per notification")

	mockCmd.Flags().StringVar(&mockAddr, "addr", "", "Listen address (default: mock.addr)")
	mockCmd.Flags().DurationVar(&mockInsightInterval, "insight-interval", 0, "Proactive insight period, 0 uses mock.insight_interval_sec")

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	tokenCmd.AddCommand(tokenStatusCmd)

	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(contributeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// websocketURL maps an http(s) backend root to its ws(s) counterpart.
func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
