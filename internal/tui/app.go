// Package tui provides the SSH-facing terminal dashboard: a scored
// leaderboard of the universe plus the portfolio status.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

// Ranker scores the configured universe.
type Ranker interface {
	ScoreUniverse(ctx context.Context, method domain.ScoreMethod) ([]domain.ScoredCandidate, error)
}

// PortfolioReader marks positions to market and reports portfolio state.
type PortfolioReader interface {
	PortfolioStatus(ctx context.Context) (domain.PortfolioStatus, error)
}

// Services bundles everything a session needs.
type Services struct {
	Ranker    Ranker
	Portfolio PortfolioReader
	Username  string
}

type view int

const (
	viewLeaderboard view = iota
	viewPortfolio
)

const loadTimeout = 20 * time.Second

// Messages delivered by async loads.
type (
	candidatesMsg []domain.ScoredCandidate
	portfolioMsg  domain.PortfolioStatus
	errMsg        struct{ err error }
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Padding(0, 1)

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	signalColors = map[domain.Signal]lipgloss.Style{
		domain.SignalStrongBuy:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		domain.SignalBuy:        lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
		domain.SignalHold:       lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		domain.SignalSell:       lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		domain.SignalStrongSell: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// AppModel is the bubbletea model for one SSH session.
type AppModel struct {
	svc    Services
	view   view
	table  table.Model
	board  []domain.ScoredCandidate
	status *domain.PortfolioStatus

	loading bool
	err     error
	width   int
	height  int
}

func NewAppModel(svc Services) *AppModel {
	t := table.New(
		table.WithColumns(leaderboardColumns()),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true).Foreground(lipgloss.Color("212"))
	st.Selected = st.Selected.Background(lipgloss.Color("236"))
	t.SetStyles(st)

	return &AppModel{svc: svc, table: t, loading: true}
}

func leaderboardColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Symbol", Width: 8},
		{Title: "Score", Width: 7},
		{Title: "Price", Width: 9},
		{Title: "Chg%", Width: 7},
		{Title: "Signal", Width: 12},
		{Title: "Flags", Width: 6},
	}
}

// SetSize is called by the wish middleware with the pty dimensions.
func (m *AppModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if height > 10 {
		m.table.SetHeight(height - 8)
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadLeaderboard(), m.loadPortfolio())
}

func (m *AppModel) loadLeaderboard() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		candidates, err := m.svc.Ranker.ScoreUniverse(ctx, domain.MethodComprehensive)
		if err != nil {
			return errMsg{err}
		}
		return candidatesMsg(candidates)
	}
}

func (m *AppModel) loadPortfolio() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		status, err := m.svc.Portfolio.PortfolioStatus(ctx)
		if err != nil {
			return errMsg{err}
		}
		return portfolioMsg(status)
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "p":
			if m.view == viewLeaderboard {
				m.view = viewPortfolio
			} else {
				m.view = viewLeaderboard
			}
			return m, nil
		case "r":
			m.loading = true
			m.err = nil
			return m, tea.Batch(m.loadLeaderboard(), m.loadPortfolio())
		}

	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case candidatesMsg:
		m.board = msg
		m.loading = false
		m.table.SetRows(leaderboardRows(msg))
		return m, nil

	case portfolioMsg:
		status := domain.PortfolioStatus(msg)
		m.status = &status
		return m, nil

	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func leaderboardRows(candidates []domain.ScoredCandidate) []table.Row {
	rows := make([]table.Row, 0, len(candidates))
	for i, c := range candidates {
		flags := ""
		if c.Anomalous {
			flags = "⚠"
		}
		if c.UpProb != nil {
			flags += fmt.Sprintf(" %.0f%%", *c.UpProb*100)
		}
		signal := signalColors[c.Signal].Render(string(c.Signal))
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			c.Symbol,
			fmt.Sprintf("%.1f", c.Score),
			fmt.Sprintf("%.2f", c.Price),
			fmt.Sprintf("%+.2f", c.ChangePct),
			signal,
			strings.TrimSpace(flags),
		})
	}
	return rows
}

func (m *AppModel) View() string {
	var b strings.Builder

	user := m.svc.Username
	if user == "" {
		user = "guest"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("Quant Dashboard · %s", user)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	}

	switch m.view {
	case viewLeaderboard:
		if m.loading && len(m.board) == 0 {
			b.WriteString(statusStyle.Render("Scoring universe..."))
		} else {
			b.WriteString(tableStyle.Render(m.table.View()))
		}
	case viewPortfolio:
		b.WriteString(m.portfolioView())
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render("tab: switch view · r: refresh · q: quit"))
	return b.String()
}

func (m *AppModel) portfolioView() string {
	if m.status == nil {
		return statusStyle.Render("Loading portfolio...")
	}
	s := m.status

	var b strings.Builder
	fmt.Fprintf(&b, "Value:     %.2f (initial %.2f)\n", s.CurrentValue, s.InitialCapital)
	fmt.Fprintf(&b, "Return:    %+.2f%%\n", s.Metrics.TotalReturnPct)
	fmt.Fprintf(&b, "Drawdown:  %.2f%%\n", s.Metrics.MaxDrawdownPct)
	fmt.Fprintf(&b, "Risk:      %s\n", s.Metrics.RiskLevel)
	fmt.Fprintf(&b, "Trades:    %d (win rate %.1f%%)\n", s.TradeCount, s.WinRatePct)
	b.WriteString("\n")

	if len(s.Positions) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%-8s %8s %10s %10s %7s\n", "Symbol", "Shares", "Cost", "Value", "Wt%")
	for _, p := range s.Positions {
		fmt.Fprintf(&b, "%-8s %8d %10.2f %10.2f %6.1f%%\n",
			p.Symbol, p.Shares, p.CostBasis, p.MarketValue, p.WeightPct)
	}
	return b.String()
}
