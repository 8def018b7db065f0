package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/model"
)

var tailJSON bool

// errGaveUp is returned once the push channel stops reconnecting.
var errGaveUp = errors.New("lost connection to server")

// tailCmd prints notifications as they arrive
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print notifications as they arrive",
	Long: `Connects to the push channel and prints every new notification.

Exits with an error once reconnection attempts are exhausted.`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := &tailPrinter{w: cmd.OutOrStdout(), json: tailJSON}
	h := newHub(newClient(), printer)
	defer h.Close()

	gaveUp := make(chan struct{})
	var once sync.Once
	unsub := h.Subscribe(func(c hub.Change) {
		if c == hub.ChangeGaveUp {
			once.Do(func() { close(gaveUp) })
		}
	})
	defer unsub()

	logger.Info("tailing notifications", zap.String("ws_url", cfg.Server.WSURL))
	h.Start()

	select {
	case <-ctx.Done():
		return nil
	case <-gaveUp:
		return errGaveUp
	}
}

// tailPrinter writes each dispatched notification as one line. It
// implements dispatch.Effects; everything but the toast is ignored.
type tailPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func (p *tailPrinter) Toast(n model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		_ = json.NewEncoder(p.w).Encode(n)
		return
	}

	name := string(n.AgentID)
	if a, ok := model.Agents[n.AgentID]; ok {
		name = a.Name
	}
	fmt.Fprintf(p.w, "%s  %-7s %-11s %-6s %s: %s\n",
		n.Timestamp.Format("2006-01-02 15:04:05"),
		name, n.Type, n.Priority, n.Title, n.Message)
}

func (p *tailPrinter) BumpBell(uint64)                            {}
func (p *tailPrinter) OpenDrawer()                                {}
func (p *tailPrinter) OpenChat(model.AgentID, string)             {}
func (p *tailPrinter) PreviewChanged(model.AgentID, string, bool) {}
