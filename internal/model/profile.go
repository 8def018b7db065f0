package model

import "time"

// QuizAnswers holds the raw onboarding quiz responses.
type QuizAnswers struct {
	Age                  string   `json:"age"`
	Income               string   `json:"income"`
	EmploymentStatus     string   `json:"employmentStatus"`
	Dependents           string   `json:"dependents"`
	Savings              string   `json:"savings"`
	Debt                 string   `json:"debt"`
	MonthlyExpenses      string   `json:"monthlyExpenses"`
	PrimaryGoal          string   `json:"primaryGoal"`
	TimeHorizon          string   `json:"timeHorizon"`
	RiskTolerance        string   `json:"riskTolerance"`
	InvestmentExperience string   `json:"investmentExperience"`
	EmergencyFund        string   `json:"emergencyFund"`
	MajorPurchases       []string `json:"majorPurchases"`
}

// Profile is the summary derived from the quiz and used to personalize
// the dashboard.
type Profile struct {
	RiskProfile     string `json:"riskProfile"`
	ExperienceLevel string `json:"experienceLevel"`
	PrimaryFocus    string `json:"primaryFocus"`
	Timeframe       string `json:"timeframe"`
}

// StoredProfile is a completed quiz as persisted.
type StoredProfile struct {
	Answers     QuizAnswers
	CompletedAt time.Time
}

// DeriveProfile maps quiz answers to the dashboard profile.
func (q QuizAnswers) DeriveProfile() Profile {
	p := Profile{
		RiskProfile:     q.RiskTolerance,
		ExperienceLevel: q.InvestmentExperience,
		PrimaryFocus:    "balanced",
		Timeframe:       "medium-term",
	}
	if p.RiskProfile == "" {
		p.RiskProfile = "moderate"
	}
	if p.ExperienceLevel == "" {
		p.ExperienceLevel = "beginner"
	}

	switch q.PrimaryGoal {
	case "emergency-fund", "pay-debt":
		p.PrimaryFocus = "stability"
	case "invest", "retirement":
		p.PrimaryFocus = "growth"
	case "save-home", "education":
		p.PrimaryFocus = "saving"
	}

	switch q.TimeHorizon {
	case "less-1", "1-3":
		p.Timeframe = "short-term"
	case "over-10":
		p.Timeframe = "long-term"
	}

	return p
}
