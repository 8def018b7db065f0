package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/finpal/internal/app"
	chatsvc "github.com/nhle/finpal/internal/chat"
	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/store"
	appsync "github.com/nhle/finpal/internal/sync"
)

// runDashboard opens the interactive dashboard.
func runDashboard(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	client := newClient()
	mail := app.NewMailbox()
	h := newHub(client, mail)
	defer h.Close()
	watchFlags(h)

	chat := chatsvc.NewService(chatsvc.Options{
		Client: client,
		Store:  s,
		Logger: logger,
	})
	poller := appsync.New(client, appsync.Options{
		Interval: time.Duration(cfg.Dashboard.RefreshIntervalSec) * time.Second,
		Logger:   logger,
	})
	defer poller.Stop()

	root := app.New(hub.NewContext(cmd.Context(), h), app.Options{
		Mailbox:      mail,
		Chat:         chat,
		Poller:       poller,
		Profiles:     s,
		Logger:       logger,
		GlamourStyle: glamourStyle(cfg.Display.Theme),
	})
	defer root.Close()

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}

// glamourStyle maps display.theme to a glamour standard style.
func glamourStyle(theme string) string {
	switch theme {
	case "light", "notty", "ascii", "dracula", "pink", "tokyo-night":
		return theme
	default:
		return "dark"
	}
}
