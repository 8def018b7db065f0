package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/finpal/internal/api"
	"github.com/nhle/finpal/internal/model"
)

// SyncState represents the current state of the dashboard refresh.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the refresh state.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// Dashboard is one consistent fetch of the financial overview.
type Dashboard struct {
	Metrics       []model.Metric
	Summary       api.Summary
	Goals         []model.Goal
	TotalProgress float64
	TotalTarget   float64
	Transactions  []model.Transaction
	FetchedAt     time.Time
}

// SyncResultMsg is a tea.Msg sent when a refresh completes.
type SyncResultMsg struct {
	Dashboard *Dashboard
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the backend rejects the API token.
type AuthErrorMsg struct {
	Message string
}

// Fetcher reads the dashboard endpoints. *api.Client implements it.
type Fetcher interface {
	Metrics(ctx context.Context) (*api.MetricsResponse, error)
	Goals(ctx context.Context) (*api.GoalsResponse, error)
	Transactions(ctx context.Context) (*api.TransactionsResponse, error)
}

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 30 * time.Second

// Options configures a Poller.
type Options struct {
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

// Poller refreshes the dashboard in the background and hands results to
// Bubble Tea through a channel.
type Poller struct {
	client    Fetcher
	interval  time.Duration
	clock     clockwork.Clock
	log       *zap.Logger
	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	wg        gosync.WaitGroup
	mu        gosync.Mutex
	running   bool
	stopped   bool
}

// New creates a new Poller reading from client.
func New(client Fetcher, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Poller{
		client:    client,
		interval:  opts.Interval,
		clock:     opts.Clock,
		log:       opts.Logger.Named("sync"),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and subscribes
// to results. Calling Start again returns nil.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	ticker := p.clock.NewTicker(p.interval)
	p.wg.Add(1)
	p.mu.Unlock()

	go p.loop(ticker)

	return p.waitForResult()
}

// Stop halts the polling goroutine and waits for it to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}

// Refresh triggers an immediate fetch. A trigger already queued absorbs
// this one.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
	return nil
}

// Status returns the current refresh state.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Fetch loads metrics, goals and transactions concurrently. Any failure
// cancels the others.
func (p *Poller) Fetch(ctx context.Context) (*Dashboard, error) {
	var (
		metrics *api.MetricsResponse
		goals   *api.GoalsResponse
		txns    *api.TransactionsResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		metrics, err = p.client.Metrics(gctx)
		return err
	})
	g.Go(func() (err error) {
		goals, err = p.client.Goals(gctx)
		return err
	})
	g.Go(func() (err error) {
		txns, err = p.client.Transactions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Dashboard{
		Metrics:       metrics.Metrics,
		Summary:       metrics.Summary,
		Goals:         goals.Goals,
		TotalProgress: goals.TotalProgress,
		TotalTarget:   goals.TotalTarget,
		Transactions:  txns.Transactions,
		FetchedAt:     p.clock.Now(),
	}, nil
}

func (p *Poller) loop(ticker clockwork.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.refresh()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.Chan():
			p.refresh()
		case <-p.triggerCh:
			p.refresh()
		}
	}
}

// refresh performs a single fetch and sends a SyncResultMsg on the result
// channel.
func (p *Poller) refresh() {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	dash, err := p.Fetch(ctx)
	if err != nil {
		p.setStatus(SyncError, err)
		p.log.Warn("dashboard refresh failed", zap.Error(err))

		if api.IsAuthError(err) {
			p.sendResult(SyncResultMsg{
				Error: err,
				AuthError: &AuthErrorMsg{
					Message: fmt.Sprintf("%v. Run 'finpal token set' to update it.", err),
				},
			})
			return
		}

		p.sendResult(SyncResultMsg{Error: err})
		return
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(SyncResultMsg{Dashboard: dash})
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle {
		p.status.LastSync = p.clock.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from the
// result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-p.stopCh:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
