package mockserver

import (
	"strings"

	"github.com/nhle/finpal/internal/model"
)

type cannedReply struct {
	keywords []string
	text     string
}

// personaReplies are keyword-matched answers; the last entry per agent is
// the fallback.
var personaReplies = map[model.AgentID][]cannedReply{
	model.AgentSofia: {
		{[]string{"credit"}, "Building credit is about steady habits. Start with a secured card, use it for one small purchase a month and pay it off right away. Keep utilization under 30%, ideally under 10%, and set up autopay so you never miss a payment."},
		{[]string{"budget"}, "Try the **50/30/20** rule as a starting point:\n\n- 50% needs\n- 30% wants\n- 20% savings\n\nTrack every expense for one week first so the numbers reflect your real life."},
		{[]string{"debt"}, "List your debts from smallest to largest. Pay minimums on all of them and put every extra dollar on the smallest one. Each payoff frees cash for the next."},
		{nil, "Financial stability starts with small, consistent steps. Pick one goal this month: save $20, read your credit report, or write a simple budget. Small wins build momentum."},
	},
	model.AgentMarcus: {
		{[]string{"invest", "portfolio"}, "Start with any employer 401(k) match; it's free money. After that a Roth IRA with a low-cost index fund is a solid core. Time in the market beats timing the market."},
		{[]string{"retire"}, "Contribute to your 401(k) up to the match, then open a Roth IRA. If money is tight, start with 1% of income and raise it 1% every year. Target-date funds keep diversification simple."},
		{[]string{"save", "emergency"}, "Automate it. A high-yield savings account plus a weekly transfer, even $10, adds up to $520 a year. Aim for $1,000 first, then one month of expenses, then three to six."},
		{nil, "Wealth comes from growing income, controlling expenses and investing the gap early. Even small amounts compound meaningfully over decades."},
	},
	model.AgentLuna: {
		{[]string{"spend", "impulse"}, "Impulse spending usually follows a feeling. Try the 24-hour rule before any non-essential purchase and ask yourself: am I buying the thing or the feeling?"},
		{[]string{"stress", "anxiety", "worried"}, "Money stress is common and valid. Pick one small action you control today, like paying one bill or moving $5 to savings, and celebrate it. Progress over perfection."},
		{[]string{"habit", "change"}, "Stack a new habit onto an existing one: review spending with your morning coffee. Make the good choice easy and the bad one a little harder."},
		{nil, "Your relationship with money reflects your values and experiences. Let's find one small, kind step you can take this week."},
	},
}

// personaReply picks the canned answer for message.
func personaReply(agent model.AgentID, message string) string {
	replies := personaReplies[agent]
	lower := strings.ToLower(message)
	for _, r := range replies {
		if r.keywords == nil {
			return r.text
		}
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.text
			}
		}
	}
	return "Focus on the fundamentals: budget, save a little every month and keep learning."
}
