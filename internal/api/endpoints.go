package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/finpal/internal/model"
)

// Health is the backend's root status document.
type Health struct {
	Status  string   `json:"status"`
	Service string   `json:"service"`
	Version string   `json:"version"`
	Agents  []string `json:"agents"`
}

// Summary is the balance breakdown returned next to the metrics.
type Summary struct {
	Checking    float64 `json:"checking"`
	Savings     float64 `json:"savings"`
	Investments float64 `json:"investments"`
	Debt        float64 `json:"debt"`
	NetWorth    float64 `json:"net_worth"`
}

// MetricsResponse is returned by GET /api/financial/metrics.
type MetricsResponse struct {
	Metrics []model.Metric `json:"metrics"`
	Summary Summary        `json:"summary"`
}

// GoalsResponse is returned by GET /api/financial/goals.
type GoalsResponse struct {
	Goals         []model.Goal `json:"goals"`
	TotalProgress float64      `json:"total_progress"`
	TotalTarget   float64      `json:"total_target"`
}

// TransactionsResponse is returned by GET /api/financial/transactions.
type TransactionsResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Count        int                 `json:"count"`
}

// ContributeResponse is returned after adding money to a goal.
type ContributeResponse struct {
	Status  string     `json:"status"`
	Goal    model.Goal `json:"goal"`
	Message string     `json:"message"`
}

// ChatRequest is the body of POST /api/chat/.
type ChatRequest struct {
	AgentID             model.AgentID       `json:"agent_id"`
	Message             string              `json:"message"`
	ConversationHistory []map[string]string `json:"conversation_history,omitempty"`
}

// ChatReply is an advisor's answer.
type ChatReply struct {
	AgentID   model.AgentID `json:"agent_id"`
	AgentName string        `json:"agent_name"`
	Response  string        `json:"response"`
	Timestamp string        `json:"timestamp"`
}

// DemoResponse is returned by POST /api/demo/trigger/{scenario}. The
// notification is kept raw so it goes through the same normalizer as
// pushed frames.
type DemoResponse struct {
	Status       string          `json:"status"`
	Scenario     string          `json:"scenario,omitempty"`
	Notification json.RawMessage `json:"notification,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Health fetches the backend status document.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.Get(ctx, "/", &h); err != nil {
		return nil, fmt.Errorf("fetching health: %w", err)
	}
	return &h, nil
}

// Metrics fetches the dashboard metrics.
func (c *Client) Metrics(ctx context.Context) (*MetricsResponse, error) {
	var resp MetricsResponse
	if err := c.Get(ctx, "/api/financial/metrics", &resp); err != nil {
		return nil, fmt.Errorf("fetching metrics: %w", err)
	}
	return &resp, nil
}

// Goals fetches savings goals and their progress.
func (c *Client) Goals(ctx context.Context) (*GoalsResponse, error) {
	var resp GoalsResponse
	if err := c.Get(ctx, "/api/financial/goals", &resp); err != nil {
		return nil, fmt.Errorf("fetching goals: %w", err)
	}
	return &resp, nil
}

// Transactions fetches recent account movements.
func (c *Client) Transactions(ctx context.Context) (*TransactionsResponse, error) {
	var resp TransactionsResponse
	if err := c.Get(ctx, "/api/financial/transactions", &resp); err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}
	return &resp, nil
}

// Contribute adds amount to the goal called name.
func (c *Client) Contribute(ctx context.Context, name string, amount float64) (*ContributeResponse, error) {
	q := url.Values{"amount": {strconv.FormatFloat(amount, 'f', 2, 64)}}
	path := "/api/financial/goals/" + pathEscape(name) + "/contribute?" + q.Encode()

	var resp ContributeResponse
	if err := c.Post(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("contributing to %q: %w", name, err)
	}
	return &resp, nil
}

// Chat sends message to agent along with the prior conversation.
func (c *Client) Chat(ctx context.Context, agent model.AgentID, message string, history []model.ChatMessage) (*ChatReply, error) {
	req := ChatRequest{AgentID: agent, Message: message}
	for _, m := range history {
		req.ConversationHistory = append(req.ConversationHistory, map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	var reply ChatReply
	if err := c.Post(ctx, "/api/chat/", req, &reply); err != nil {
		return nil, fmt.Errorf("chatting with %s: %w", agent, err)
	}
	return &reply, nil
}

// TriggerDemo asks the backend to synthesize the named scenario.
func (c *Client) TriggerDemo(ctx context.Context, scenario string) (*DemoResponse, error) {
	var resp DemoResponse
	if err := c.Post(ctx, "/api/demo/trigger/"+pathEscape(scenario), nil, &resp); err != nil {
		return nil, fmt.Errorf("triggering demo %q: %w", scenario, err)
	}
	return &resp, nil
}
