package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/finpal/internal/api"
	"github.com/nhle/finpal/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFetcher struct {
	mu       gosync.Mutex
	calls    int
	goalsErr error
}

func (f *fakeFetcher) Metrics(ctx context.Context) (*api.MetricsResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return &api.MetricsResponse{
		Metrics: []model.Metric{{Title: "Net Worth", Value: 45230, Kind: model.MetricCurrency}},
		Summary: api.Summary{NetWorth: 45230},
	}, nil
}

func (f *fakeFetcher) Goals(ctx context.Context) (*api.GoalsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.goalsErr != nil {
		return nil, f.goalsErr
	}
	return &api.GoalsResponse{
		Goals:       []model.Goal{{Name: "Emergency Fund", Target: 5000, Current: 3200}},
		TotalTarget: 5000,
	}, nil
}

func (f *fakeFetcher) Transactions(ctx context.Context) (*api.TransactionsResponse, error) {
	return &api.TransactionsResponse{
		Transactions: []model.Transaction{{ID: "t1", Merchant: "Whole Foods", Amount: -87.32}},
		Count:        1,
	}, nil
}

func (f *fakeFetcher) metricCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func next(t *testing.T, p *Poller) SyncResultMsg {
	t.Helper()
	got := make(chan SyncResultMsg, 1)
	go func() {
		if msg, ok := p.WaitForNextResult()().(SyncResultMsg); ok {
			got <- msg
		}
	}()
	select {
	case msg := <-got:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no sync result")
		return SyncResultMsg{}
	}
}

func TestFetchCombinesEndpoints(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	p := New(&fakeFetcher{}, Options{Clock: clock})

	dash, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45230.0, dash.Summary.NetWorth)
	assert.Len(t, dash.Goals, 1)
	assert.Equal(t, "Whole Foods", dash.Transactions[0].Merchant)
	assert.Equal(t, clock.Now(), dash.FetchedAt)
}

func TestFetchFailsWhenAnyEndpointFails(t *testing.T) {
	p := New(&fakeFetcher{goalsErr: errors.New("boom")}, Options{})

	_, err := p.Fetch(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestPollerRefreshesOnTickAndTrigger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := &fakeFetcher{}
	p := New(fetcher, Options{Clock: clock, Interval: 30 * time.Second, Logger: zaptest.NewLogger(t)})
	defer p.Stop()

	require.NotNil(t, p.Start())
	assert.Nil(t, p.Start())

	first := next(t, p)
	require.NoError(t, first.Error)
	assert.Equal(t, SyncIdle, p.Status().State)

	clock.Advance(30 * time.Second)
	require.NoError(t, next(t, p).Error)

	p.Refresh()
	require.NoError(t, next(t, p).Error)

	assert.Equal(t, 3, fetcher.metricCalls())
}

func TestPollerReportsErrors(t *testing.T) {
	fetcher := &fakeFetcher{goalsErr: &api.AuthError{BaseURL: "http://advisor.test"}}
	p := New(fetcher, Options{Clock: clockwork.NewFakeClock(), Logger: zaptest.NewLogger(t)})
	defer p.Stop()

	p.Start()
	msg := next(t, p)

	require.Error(t, msg.Error)
	require.NotNil(t, msg.AuthError)
	assert.Contains(t, msg.AuthError.Message, "finpal token set")
	assert.Equal(t, SyncError, p.Status().State)
}

func TestStopIsIdempotent(t *testing.T) {
	p := New(&fakeFetcher{}, Options{Clock: clockwork.NewFakeClock()})
	p.Stop()
	p.Start()
	p.Stop()
	p.Stop()
	assert.Nil(t, p.Start())
}
