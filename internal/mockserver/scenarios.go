package mockserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/finpal/internal/model"
)

// wireTime matches the backend's zone-less microsecond timestamps.
const wireTime = "2006-01-02T15:04:05.000000"

type template struct {
	Agent    model.AgentID
	Type     model.NotificationType
	Title    string
	Message  string
	Priority model.Priority
	Action   bool
}

// ScenarioNames lists the demo scenarios in the order the backend reports
// them.
var ScenarioNames = []string{"overspending", "investment_opportunity", "credit_alert", "goal_achieved"}

var scenarios = map[string]template{
	"overspending": {
		Agent:    model.AgentLuna,
		Type:     model.TypeAlert,
		Title:    "Overspending Alert!",
		Message:  "You've exceeded your monthly budget by 20%. I noticed several large shopping purchases. Let's review your spending triggers together.",
		Priority: model.PriorityHigh,
		Action:   true,
	},
	"investment_opportunity": {
		Agent:    model.AgentMarcus,
		Type:     model.TypeProactive,
		Title:    "Investment Opportunity",
		Message:  "You have $13,000 in savings earning minimal interest. Based on your risk profile, I found 3 conservative investment options that could grow your wealth.",
		Priority: model.PriorityMedium,
		Action:   true,
	},
	"credit_alert": {
		Agent:    model.AgentSofia,
		Type:     model.TypeAlert,
		Title:    "Credit Score Improvement",
		Message:  "Your credit utilization is high at 45%. Paying down $500 on your cards could boost your score by 15-20 points.",
		Priority: model.PriorityMedium,
		Action:   true,
	},
	"goal_achieved": {
		Agent:    model.AgentLuna,
		Type:     model.TypeAchievement,
		Title:    "Goal Achieved! 🎉",
		Message:  "Congratulations! You've completed your Emergency Fund goal of $5,000. This is a huge milestone for your financial security!",
		Priority: model.PriorityLow,
	},
}

// insights rotate through the proactive analyzer job.
var insights = []template{
	{
		Agent:    model.AgentLuna,
		Type:     model.TypeProactive,
		Title:    "Weekend spending pattern",
		Message:  "Your dining spend jumps on weekends. Planning one home-cooked Saturday could save about $120 a month.",
		Priority: model.PriorityMedium,
	},
	{
		Agent:    model.AgentSofia,
		Type:     model.TypeProactive,
		Title:    "Credit utilization check",
		Message:  "You're using 18% of your available credit. Keeping it under 30% helps your score; you're doing great.",
		Priority: model.PriorityLow,
	},
	{
		Agent:    model.AgentMarcus,
		Type:     model.TypeProactive,
		Title:    "Idle cash in checking",
		Message:  "About $2,000 in checking has not moved in 60 days. A high-yield savings account could earn roughly 4% on it.",
		Priority: model.PriorityMedium,
		Action:   true,
	},
	{
		Agent:    model.AgentLuna,
		Type:     model.TypeAchievement,
		Title:    "Savings streak",
		Message:  "Four weeks in a row of hitting your savings target. Small wins like this build lasting habits!",
		Priority: model.PriorityLow,
	},
}

// snakePayload renders t the way the demo endpoint does.
func snakePayload(t template, id string, at time.Time) gin.H {
	return gin.H{
		"id":              id,
		"agent_id":        t.Agent,
		"type":            t.Type,
		"title":           t.Title,
		"message":         t.Message,
		"timestamp":       at.Format(wireTime),
		"is_read":         false,
		"priority":        t.Priority,
		"action_required": t.Action,
	}
}

// camelPayload renders t the way the proactive analyzer does.
func camelPayload(t template, id string, at time.Time) gin.H {
	return gin.H{
		"id":             id,
		"agentId":        t.Agent,
		"type":           t.Type,
		"title":          t.Title,
		"message":        t.Message,
		"timestamp":      at.Format(wireTime),
		"isRead":         false,
		"priority":       t.Priority,
		"actionRequired": t.Action,
	}
}

func notificationFrame(data gin.H) gin.H {
	return gin.H{"type": "notification", "data": data}
}

func newID() string {
	return uuid.New().String()
}
