package mockserver

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/finpal/internal/model"
)

var transactionTemplates = []model.Transaction{
	{Merchant: "Direct Deposit", Amount: 2750, Category: "Income"},
	{Merchant: "Starbucks", Amount: -6.45, Category: "Dining"},
	{Merchant: "Whole Foods", Amount: -127.89, Category: "Groceries"},
	{Merchant: "Netflix", Amount: -15.99, Category: "Entertainment"},
	{Merchant: "Gas Station", Amount: -45.00, Category: "Transportation"},
	{Merchant: "Amazon", Amount: -67.23, Category: "Shopping"},
	{Merchant: "Restaurant", Amount: -45.67, Category: "Dining"},
	{Merchant: "Electric Bill", Amount: -120.00, Category: "Bills"},
	{Merchant: "Freelance Payment", Amount: 500, Category: "Income"},
	{Merchant: "Gym", Amount: -35.00, Category: "Health"},
}

const maxTransactions = 20

// ledger is the demo user's financial state.
type ledger struct {
	mu sync.Mutex

	checking     float64
	savings      float64
	investments  float64
	debt         float64
	creditScore  float64
	savingsRate  float64
	goals        []model.Goal
	transactions []model.Transaction
	nextTxn      int
}

func newLedger(now time.Time) *ledger {
	l := &ledger{
		checking:    3200,
		savings:     12943,
		investments: 8420,
		debt:        1850,
		creditScore: 742,
		savingsRate: 23.6,
		goals: []model.Goal{
			{Name: "Emergency Fund", Target: 10000, Current: 8500},
			{Name: "Vacation", Target: 3000, Current: 1200},
			{Name: "New Car Down Payment", Target: 5000, Current: 2100},
		},
	}
	for i := 0; i < 8; i++ {
		l.simulate(now.Add(-time.Duration(8-i) * 24 * time.Hour))
	}
	return l
}

func (l *ledger) total() float64 {
	return l.checking + l.savings + l.investments
}

func (l *ledger) metrics() gin.H {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := l.total()
	return gin.H{
		"metrics": []model.Metric{
			{Title: "Total Balance", Value: total, Kind: model.MetricCurrency, Currency: "USD",
				Change: &model.MetricChange{Value: 12.5, IsPositive: true}},
			{Title: "Credit Score", Value: l.creditScore, Kind: model.MetricNumber,
				Change: &model.MetricChange{Value: -8}},
			{Title: "Savings Rate", Value: l.savingsRate / 100, Kind: model.MetricPercent,
				Change: &model.MetricChange{Value: 15, IsPositive: true}},
			{Title: "Investment Portfolio", Value: l.investments, Kind: model.MetricCurrency, Currency: "USD",
				Change: &model.MetricChange{Value: 3.2, IsPositive: true}},
		},
		"summary": gin.H{
			"checking":    l.checking,
			"savings":     l.savings,
			"investments": l.investments,
			"debt":        l.debt,
			"net_worth":   total - l.debt,
		},
	}
}

func (l *ledger) goalsView() gin.H {
	l.mu.Lock()
	defer l.mu.Unlock()

	var progress, target float64
	goals := make([]model.Goal, len(l.goals))
	copy(goals, l.goals)
	for _, g := range goals {
		progress += g.Current
		target += g.Target
	}
	return gin.H{"goals": goals, "total_progress": progress, "total_target": target}
}

func (l *ledger) transactionsView() gin.H {
	l.mu.Lock()
	defer l.mu.Unlock()

	txns := make([]model.Transaction, len(l.transactions))
	copy(txns, l.transactions)
	return gin.H{"transactions": txns, "count": len(txns)}
}

// contribute adds amount to the goal called name (case-insensitive).
func (l *ledger) contribute(name string, amount float64) (model.Goal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.goals {
		g := &l.goals[i]
		if !strings.EqualFold(g.Name, name) {
			continue
		}
		g.Current = math.Round((g.Current+amount)*100) / 100
		g.Completed = g.Current >= g.Target
		if amount <= l.savings {
			l.savings -= amount
		}
		return *g, true
	}
	return model.Goal{}, false
}

// Simulate books the next templated transaction at now.
func (l *ledger) Simulate(now time.Time) model.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.simulate(now)
}

func (l *ledger) simulate(now time.Time) model.Transaction {
	t := transactionTemplates[l.nextTxn%len(transactionTemplates)]
	l.nextTxn++
	t.ID = fmt.Sprintf("txn_%04d", 1000+l.nextTxn)
	t.Date = now.Format(wireTime)
	l.checking += t.Amount

	l.transactions = append([]model.Transaction{t}, l.transactions...)
	if len(l.transactions) > maxTransactions {
		l.transactions = l.transactions[:maxTransactions]
	}
	return t
}
