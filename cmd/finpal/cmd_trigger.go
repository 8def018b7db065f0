package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/finpal/internal/demo"
	"github.com/nhle/finpal/internal/notify"
)

// triggerCmd fires a demo scenario on the backend
var triggerCmd = &cobra.Command{
	Use:   "trigger [scenario]",
	Short: "Ask the backend to push a demo notification",
	Long: `Fires one demo scenario. Every connected dashboard receives the
resulting notification over its push channel.

Scenarios:
` + scenarioList(),
	Args:      cobra.ExactArgs(1),
	ValidArgs: scenarioNames(),
	RunE:      runTrigger,
}

func runTrigger(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	bridge := demo.NewBridge(newClient(), notify.NewStore(logger), logger)
	n, err := bridge.Trigger(ctx, args[0])
	if err != nil {
		return fmt.Errorf("triggering %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if n == nil {
		fmt.Fprintf(out, "%s accepted\n", args[0])
		return nil
	}
	fmt.Fprintf(out, "%s → [%s] %s: %s\n", args[0], n.AgentID, n.Title, n.Message)
	return nil
}

func scenarioNames() []string {
	names := make([]string, len(demo.Scenarios))
	for i, s := range demo.Scenarios {
		names[i] = s.Name
	}
	return names
}

func scenarioList() string {
	var b strings.Builder
	for _, s := range demo.Scenarios {
		fmt.Fprintf(&b, "  - %-24s %s\n", s.Name, s.Label)
	}
	return b.String()
}
