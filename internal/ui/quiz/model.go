package quiz

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"

	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/store"
	"github.com/nhle/finpal/internal/theme"
)

// CompletedMsg is dispatched once the quiz answers were saved.
type CompletedMsg struct {
	Answers model.QuizAnswers
	Profile model.Profile
	Err     error
}

// CancelMsg is dispatched when the user leaves the quiz.
type CancelMsg struct{}

// formBindings holds field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	age        string
	income     string
	employment string
	savings    string
	debt       string
	goal       string
	horizon    string
	risk       string
	experience string
	emergency  string
}

// Model is the onboarding quiz.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	profiles store.ProfileStore
	clock    clockwork.Clock
	width    int
	height   int
}

// New creates the quiz. Answers are saved to profiles on completion.
func New(profiles store.ProfileStore, clock clockwork.Clock, width, height int) Model {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return Model{
		fb:       &formBindings{},
		profiles: profiles,
		clock:    clock,
		width:    width,
		height:   height,
	}
}

// Start resets the form, prefilled with previous answers when present.
func (m *Model) Start(prev *model.QuizAnswers) tea.Cmd {
	*m.fb = formBindings{risk: "moderate", experience: "beginner"}
	if prev != nil {
		m.fb.age = prev.Age
		m.fb.income = prev.Income
		m.fb.employment = prev.EmploymentStatus
		m.fb.savings = prev.Savings
		m.fb.debt = prev.Debt
		m.fb.goal = prev.PrimaryGoal
		m.fb.horizon = prev.TimeHorizon
		m.fb.risk = prev.RiskTolerance
		m.fb.experience = prev.InvestmentExperience
		m.fb.emergency = prev.EmergencyFund
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Active reports whether a form is in progress.
func (m Model) Active() bool {
	return m.form != nil
}

// Update handles messages for the quiz.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		return m, m.submit()
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// Answers returns the current form values.
func (m Model) Answers() model.QuizAnswers {
	return model.QuizAnswers{
		Age:                  strings.TrimSpace(m.fb.age),
		Income:               m.fb.income,
		EmploymentStatus:     m.fb.employment,
		Savings:              m.fb.savings,
		Debt:                 m.fb.debt,
		PrimaryGoal:          m.fb.goal,
		TimeHorizon:          m.fb.horizon,
		RiskTolerance:        m.fb.risk,
		InvestmentExperience: m.fb.experience,
		EmergencyFund:        m.fb.emergency,
	}
}

func (m Model) submit() tea.Cmd {
	answers := m.Answers()
	profiles, now := m.profiles, m.clock.Now()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := profiles.SaveProfile(ctx, model.StoredProfile{Answers: answers, CompletedAt: now})
		return CompletedMsg{Answers: answers, Profile: answers.DeriveProfile(), Err: err}
	}
}

// View renders the quiz.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite)

	content := titleStyle.Render("Let's get to know you") + "\n" +
		theme.DimmedStyle.Render("Your advisors use this to tailor their insights.") + "\n\n" +
		m.form.View()

	return theme.PanelStyle.
		Width(m.formWidth() + 4).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth()).WithHeight(m.formHeight())
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("What's your age?").
				Value(&m.fb.age).
				Validate(validateAge),
			huh.NewSelect[string]().
				Title("Annual income").
				Options(
					huh.NewOption("Under $30,000", "under-30k"),
					huh.NewOption("$30,000 - $50,000", "30k-50k"),
					huh.NewOption("$50,000 - $75,000", "50k-75k"),
					huh.NewOption("$75,000 - $100,000", "75k-100k"),
					huh.NewOption("$100,000 - $150,000", "100k-150k"),
					huh.NewOption("Over $150,000", "over-150k"),
				).
				Value(&m.fb.income),
			huh.NewSelect[string]().
				Title("Employment").
				Options(
					huh.NewOption("Employed full-time", "employed"),
					huh.NewOption("Self-employed", "self-employed"),
					huh.NewOption("Part-time", "part-time"),
					huh.NewOption("Student", "student"),
					huh.NewOption("Retired", "retired"),
					huh.NewOption("Not working", "unemployed"),
				).
				Value(&m.fb.employment),
		).Title("About you"),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Current savings").
				Options(
					huh.NewOption("Under $1,000", "under-1k"),
					huh.NewOption("$1,000 - $5,000", "1k-5k"),
					huh.NewOption("$5,000 - $10,000", "5k-10k"),
					huh.NewOption("$10,000 - $25,000", "10k-25k"),
					huh.NewOption("$25,000 - $50,000", "25k-50k"),
					huh.NewOption("Over $50,000", "over-50k"),
				).
				Value(&m.fb.savings),
			huh.NewSelect[string]().
				Title("Debt, excluding mortgage").
				Options(
					huh.NewOption("None", "none"),
					huh.NewOption("Under $5,000", "under-5k"),
					huh.NewOption("$5,000 - $10,000", "5k-10k"),
					huh.NewOption("$10,000 - $25,000", "10k-25k"),
					huh.NewOption("$25,000 - $50,000", "25k-50k"),
					huh.NewOption("Over $50,000", "over-50k"),
				).
				Value(&m.fb.debt),
			huh.NewSelect[string]().
				Title("Emergency fund").
				Options(
					huh.NewOption("None yet", "none"),
					huh.NewOption("Less than a month", "less-1month"),
					huh.NewOption("1-3 months", "1-3months"),
					huh.NewOption("3-6 months", "3-6months"),
					huh.NewOption("More than 6 months", "over-6months"),
				).
				Value(&m.fb.emergency),
		).Title("Your finances"),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Primary goal").
				Options(
					huh.NewOption("Build an emergency fund", "emergency-fund"),
					huh.NewOption("Pay off debt", "pay-debt"),
					huh.NewOption("Save for a home", "save-home"),
					huh.NewOption("Plan for retirement", "retirement"),
					huh.NewOption("Grow investments", "invest"),
					huh.NewOption("Fund education", "education"),
				).
				Value(&m.fb.goal),
			huh.NewSelect[string]().
				Title("Time horizon").
				Options(
					huh.NewOption("Less than a year", "less-1"),
					huh.NewOption("1-3 years", "1-3"),
					huh.NewOption("3-5 years", "3-5"),
					huh.NewOption("5-10 years", "5-10"),
					huh.NewOption("More than 10 years", "over-10"),
				).
				Value(&m.fb.horizon),
			huh.NewSelect[string]().
				Title("Risk tolerance").
				Options(
					huh.NewOption("Conservative", "conservative"),
					huh.NewOption("Moderately conservative", "moderate-conservative"),
					huh.NewOption("Moderate", "moderate"),
					huh.NewOption("Moderately aggressive", "moderate-aggressive"),
					huh.NewOption("Aggressive", "aggressive"),
				).
				Value(&m.fb.risk),
			huh.NewSelect[string]().
				Title("Investing experience").
				Options(
					huh.NewOption("None", "none"),
					huh.NewOption("Beginner", "beginner"),
					huh.NewOption("Intermediate", "intermediate"),
					huh.NewOption("Experienced", "experienced"),
					huh.NewOption("Expert", "expert"),
				).
				Value(&m.fb.experience),
		).Title("Your goals"),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight()).WithShowHelp(true)
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 8
	if h < 12 {
		h = 12
	}
	return h
}

func validateAge(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("age is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 16 || n > 120 {
		return fmt.Errorf("enter an age between 16 and 120")
	}
	return nil
}
