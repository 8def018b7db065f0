// Package demo asks the backend to synthesize scenario notifications and
// reflects them in the local store without waiting for the push channel.
package demo

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/api"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/notify"
)

// ErrRejected is returned when the backend answers without success.
var ErrRejected = errors.New("demo trigger rejected")

// Scenario is a demo the backend knows how to synthesize.
type Scenario struct {
	Name  string
	Label string
	Agent model.AgentID
}

// Scenarios lists the demos offered by the dev panel.
var Scenarios = []Scenario{
	{Name: "overspending", Label: "Overspending alert", Agent: model.AgentLuna},
	{Name: "investment_opportunity", Label: "Investment opportunity", Agent: model.AgentMarcus},
	{Name: "credit_alert", Label: "Credit alert", Agent: model.AgentSofia},
	{Name: "goal_achieved", Label: "Goal achieved", Agent: model.AgentLuna},
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Requester issues the one-shot trigger request.
type Requester interface {
	TriggerDemo(ctx context.Context, scenario string) (*api.DemoResponse, error)
}

// Injector receives the optimistic local copy.
type Injector interface {
	Inject(n model.Notification) bool
}

// Bridge triggers demos and injects the returned notification.
type Bridge struct {
	client Requester
	sink   Injector
	log    *zap.Logger
}

// NewBridge creates a Bridge.
func NewBridge(client Requester, sink Injector, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{client: client, sink: sink, log: log.Named("demo")}
}

// Trigger requests scenario once. On success the embedded notification is
// normalized and injected immediately; a later push of the same id is
// absorbed by the store. Failures leave local state untouched and are not
// retried. A nil notification with a nil error means the backend accepted
// the request but sent no payload.
func (b *Bridge) Trigger(ctx context.Context, scenario string) (*model.Notification, error) {
	resp, err := b.client.TriggerDemo(ctx, scenario)
	if err != nil {
		return nil, err
	}

	if resp.Status != "success" {
		reason := resp.Error
		if reason == "" {
			reason = fmt.Sprintf("status %q", resp.Status)
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, reason)
	}

	if len(resp.Notification) == 0 || string(resp.Notification) == "null" {
		b.log.Debug("demo accepted without payload", zap.String("scenario", scenario))
		return nil, nil
	}

	n, err := notify.Normalize(resp.Notification)
	if err != nil {
		return nil, fmt.Errorf("demo %q: %w", scenario, err)
	}

	if !b.sink.Inject(n) {
		b.log.Debug("push channel delivered demo first", zap.String("id", n.ID))
	}
	return &n, nil
}
