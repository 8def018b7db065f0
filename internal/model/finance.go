package model

// MetricKind controls how a metric value is formatted.
type MetricKind string

const (
	MetricCurrency MetricKind = "currency"
	MetricNumber   MetricKind = "number"
	MetricPercent  MetricKind = "percent"
)

// MetricChange is the period-over-period delta shown next to a metric.
type MetricChange struct {
	Value      float64 `json:"value"`
	IsPositive bool    `json:"isPositive"`
}

// Metric is a single dashboard figure.
type Metric struct {
	Title    string        `json:"title"`
	Value    float64       `json:"value"`
	Kind     MetricKind    `json:"kind"`
	Currency string        `json:"currency,omitempty"`
	Change   *MetricChange `json:"change,omitempty"`
}

// Goal is a savings goal and its progress.
type Goal struct {
	Name      string  `json:"name"`
	Target    float64 `json:"target"`
	Current   float64 `json:"current"`
	Completed bool    `json:"completed"`
}

// Progress returns the completion ratio clamped to [0, 1].
func (g Goal) Progress() float64 {
	if g.Target <= 0 {
		return 0
	}
	p := g.Current / g.Target
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// Transaction is a recent account movement.
type Transaction struct {
	ID       string  `json:"id"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
}
