package overlay

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

// Blend weights. Technical carries the most, the policy table next,
// and the quote-derived fundamentals heuristic the rest.
const (
	weightTechnical    = 0.40
	weightPolicy       = 0.35
	weightFundamentals = 0.25

	neutralPolicyScore = 50.0
)

// Theme maps a policy theme to the symbols it covers. Themes are
// configuration data loaded from YAML, not logic.
type Theme struct {
	Label       string   `yaml:"label"`
	Score       float64  `yaml:"score"`
	Description string   `yaml:"description"`
	Symbols     []string `yaml:"symbols"`
}

type policyFile struct {
	Themes []Theme `yaml:"themes"`
}

// Overlay blends technical scores with the policy table and a
// fundamentals heuristic. Read-only after construction.
type Overlay struct {
	bySymbol map[string]Theme
}

// Load reads the policy theme table from a YAML file.
func Load(path string) (*Overlay, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy table: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse policy table: %w", err)
	}
	return New(file.Themes), nil
}

// New builds an overlay from an in-memory theme list. Later themes win
// on symbol collisions.
func New(themes []Theme) *Overlay {
	bySymbol := make(map[string]Theme)
	for _, theme := range themes {
		for _, symbol := range theme.Symbols {
			bySymbol[symbol] = theme
		}
	}
	return &Overlay{bySymbol: bySymbol}
}

// PolicyScore looks the symbol up in the theme table. A covered symbol
// gets the theme's base score plus a small momentum adjustment, capped
// at 100. Unknown symbols are neutral at 50.
func (o *Overlay) PolicyScore(symbol string, changePct float64) (score float64, label, reason string) {
	theme, ok := o.bySymbol[symbol]
	if !ok {
		return neutralPolicyScore, "", "no active policy theme"
	}

	var adjust float64
	switch {
	case changePct > 3:
		adjust = changePct * 2
		if adjust > 10 {
			adjust = 10
		}
	case changePct > 0:
		adjust = 5
	}
	score = theme.Score + adjust
	if score > 100 {
		score = 100
	}
	return score, theme.Label, fmt.Sprintf("%s: %s", theme.Label, theme.Description)
}

// FundamentalsScore is a pure heuristic over the live quote: a base of
// 50 plus a day-change ladder, a bonus for a mid-range price, and a
// bonus for any positive day.
func FundamentalsScore(quote domain.Quote) float64 {
	score := 50.0
	changePct := quote.ChangePct()

	switch {
	case changePct > 5:
		score += 30
	case changePct > 3:
		score += 25
	case changePct > 1:
		score += 20
	case changePct > 0:
		score += 15
	default:
		score += 5
	}

	if quote.Close >= 10 && quote.Close <= 100 {
		score += 10
	}
	if changePct > 0 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// Blend combines a scored candidate with the policy table and the
// fundamentals heuristic into one recommendation.
func (o *Overlay) Blend(candidate domain.ScoredCandidate, quote domain.Quote) domain.Recommendation {
	policyScore, label, reason := o.PolicyScore(candidate.Symbol, quote.ChangePct())
	fundamentals := FundamentalsScore(quote)

	final := weightTechnical*candidate.Score +
		weightPolicy*policyScore +
		weightFundamentals*fundamentals
	if final > 100 {
		final = 100
	} else if final < 0 {
		final = 0
	}

	return domain.Recommendation{
		Candidate:    candidate,
		PolicyLabel:  label,
		PolicyScore:  policyScore,
		PolicyReason: reason,
		FinalScore:   final,
	}
}

// Rank sorts recommendations by final score, best first. Stable so
// equal scores keep their input order.
func Rank(recommendations []domain.Recommendation) {
	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].FinalScore > recommendations[j].FinalScore
	})
}
