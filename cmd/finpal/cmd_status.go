package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// statusCmd reports whether the backend is reachable
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the backend health endpoint",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// contributeCmd adds money to a savings goal
var contributeCmd = &cobra.Command{
	Use:   "contribute [goal] [amount]",
	Short: "Add money to a savings goal",
	Args:  cobra.ExactArgs(2),
	RunE:  runContribute,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	client := newClient()
	h, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", client.BaseURL(), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s (%s %s)\n", client.BaseURL(), h.Status, h.Service, h.Version)
	if len(h.Agents) > 0 {
		fmt.Fprintf(out, "agents: %s\n", strings.Join(h.Agents, ", "))
	}
	return nil
}

func runContribute(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(strings.TrimPrefix(args[1], "$"), 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("invalid amount %q", args[1])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	resp, err := newClient().Contribute(ctx, args[0], amount)
	if err != nil {
		return err
	}

	g := resp.Goal
	fmt.Fprintf(cmd.OutOrStdout(), "%s: $%s of $%s (%.0f%%)\n",
		g.Name, humanize.CommafWithDigits(g.Current, 2), humanize.CommafWithDigits(g.Target, 2), g.Progress()*100)
	if g.Completed {
		fmt.Fprintln(cmd.OutOrStdout(), "Goal reached!")
	}
	return nil
}
