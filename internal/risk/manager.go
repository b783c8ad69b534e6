package risk

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

// Config holds the risk limits a Manager enforces.
type Config struct {
	InitialCapital    float64
	MaxPositionWeight float64
	StopLossRatio     float64
	TakeProfitRatio   float64
	MaxDrawdownLimit  float64
	MaxPositionCount  int
	RiskPerTrade      float64
	LotSize           int64
}

// DefaultConfig returns the stock limits: 30% per position, 10% stop,
// 20% take-profit, 15% portfolio drawdown breaker, 5 positions,
// 2% risk per trade, lots of 100 shares.
func DefaultConfig(initialCapital float64) Config {
	return Config{
		InitialCapital:    initialCapital,
		MaxPositionWeight: 0.30,
		StopLossRatio:     0.10,
		TakeProfitRatio:   0.20,
		MaxDrawdownLimit:  0.15,
		MaxPositionCount:  5,
		RiskPerTrade:      0.02,
		LotSize:           100,
	}
}

// Manager owns the portfolio for one trading session. Every operation
// takes the lock for its full duration: sizing reads available capital
// and a concurrent half-committed buy would mis-size the next trade.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	cash      float64
	positions map[string]domain.Position
	trades    []domain.TradeRecord
	equity    []domain.EquityPoint

	now func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.LotSize <= 0 {
		cfg.LotSize = 100
	}
	if cfg.RiskPerTrade <= 0 {
		cfg.RiskPerTrade = 0.02
	}
	return &Manager{
		cfg:       cfg,
		cash:      cfg.InitialCapital,
		positions: make(map[string]domain.Position),
		now:       time.Now,
	}
}

// PositionSize computes a bounded share count for a new trade. The
// count is a non-negative multiple of the lot size, risk-budgeted by
// RiskPerTrade against the stop-loss distance and capped so the
// position never exceeds MaxPositionWeight of the available capital.
// Invalid input yields 0, never an error.
func (m *Manager) PositionSize(symbol string, price, availableCapital float64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionSizeLocked(symbol, price, availableCapital)
}

func (m *Manager) positionSizeLocked(symbol string, price, availableCapital float64) int64 {
	if price <= 0 || availableCapital <= 0 {
		return 0
	}
	riskPerShare := price - price*(1-m.cfg.StopLossRatio)
	if riskPerShare <= 0 {
		log.Printf("%s: degenerate stop-loss distance, sizing 0", symbol)
		return 0
	}
	lot := m.cfg.LotSize
	riskAmount := availableCapital * m.cfg.RiskPerTrade
	shares := int64(riskAmount/riskPerShare/float64(lot)) * lot
	maxShares := int64(availableCapital*m.cfg.MaxPositionWeight/price/float64(lot)) * lot
	if shares > maxShares {
		shares = maxShares
	}
	if shares < 0 {
		shares = 0
	}
	return shares
}

// CanOpen checks admission for a new position of the proposed weight.
func (m *Manager) CanOpen(symbol string, proposedWeight float64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.positions[symbol]; held {
		return false, "already holding " + symbol
	}
	if len(m.positions) >= m.cfg.MaxPositionCount {
		return false, fmt.Sprintf("position count at limit (%d)", m.cfg.MaxPositionCount)
	}
	var total float64
	for _, p := range m.positions {
		total += p.TargetWeight
	}
	if total+proposedWeight > m.cfg.MaxPositionWeight*float64(m.cfg.MaxPositionCount) {
		return false, "aggregate target weight too high"
	}
	return true, "ok"
}

// AddPosition opens or enlarges a holding. Repeat buys recompute the
// cost basis as the volume-weighted average of the old and new lots.
// Cash can never go negative: an unaffordable buy is rejected, not
// partially applied.
func (m *Manager) AddPosition(symbol string, shares int64, price, targetWeight float64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if shares <= 0 || price <= 0 {
		return false, "invalid shares or price"
	}
	cost := float64(shares) * price
	if cost > m.cash {
		return false, fmt.Sprintf("insufficient cash: need %.2f, have %.2f", cost, m.cash)
	}

	if existing, held := m.positions[symbol]; held {
		totalShares := existing.Shares + shares
		vwap := (float64(existing.Shares)*existing.CostBasis + cost) / float64(totalShares)
		existing.Shares = totalShares
		existing.CostBasis = vwap
		if targetWeight > 0 {
			existing.TargetWeight = targetWeight
		}
		m.positions[symbol] = existing
	} else {
		m.positions[symbol] = domain.Position{
			Symbol:       symbol,
			Shares:       shares,
			CostBasis:    price,
			TargetWeight: targetWeight,
			OpenedAt:     m.now(),
		}
	}
	m.cash -= cost
	return true, "ok"
}

// RemovePosition liquidates a holding at the given price, records the
// trade and returns the realized record. Unknown symbols no-op.
func (m *Manager) RemovePosition(symbol string, sellPrice float64) (domain.TradeRecord, bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, held := m.positions[symbol]
	if !held {
		return domain.TradeRecord{}, false, "not holding " + symbol
	}
	if sellPrice <= 0 {
		return domain.TradeRecord{}, false, "invalid sell price"
	}

	profitPct := (sellPrice - position.CostBasis) / position.CostBasis * 100
	record := domain.TradeRecord{
		Symbol:    symbol,
		Shares:    position.Shares,
		BuyPrice:  position.CostBasis,
		SellPrice: sellPrice,
		ProfitPct: profitPct,
		ClosedAt:  m.now(),
	}
	m.trades = append(m.trades, record)
	m.cash += float64(position.Shares) * sellPrice
	delete(m.positions, symbol)
	return record, true, "ok"
}

// CheckStopLoss reports whether the holding has fallen to or through
// its stop price.
func (m *Manager) CheckStopLoss(symbol string, currentPrice float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, held := m.positions[symbol]
	if !held {
		return false
	}
	return currentPrice <= position.CostBasis*(1-m.cfg.StopLossRatio)
}

// CheckTakeProfit reports whether the holding has reached its target.
func (m *Manager) CheckTakeProfit(symbol string, currentPrice float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, held := m.positions[symbol]
	if !held {
		return false
	}
	return currentPrice >= position.CostBasis*(1+m.cfg.TakeProfitRatio)
}

// ShouldStopTrading is the circuit breaker: it trips on a drawdown from
// initial capital beyond the limit, or on three straight losing trades.
func (m *Manager) ShouldStopTrading(currentValue float64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.InitialCapital > 0 {
		drawdown := (m.cfg.InitialCapital - currentValue) / m.cfg.InitialCapital
		if drawdown >= m.cfg.MaxDrawdownLimit {
			return true, fmt.Sprintf("drawdown limit hit (%.1f%%)", drawdown*100)
		}
	}
	if len(m.trades) >= 3 {
		losing := true
		for _, tr := range m.trades[len(m.trades)-3:] {
			if tr.ProfitPct >= 0 {
				losing = false
				break
			}
		}
		if losing {
			return true, "three consecutive losing trades"
		}
	}
	return false, ""
}

// RecordEquity appends one sample to the equity curve.
func (m *Manager) RecordEquity(value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, domain.EquityPoint{Timestamp: m.now(), Value: value})
}

// Valuation marks the portfolio to market: cash plus every holding at
// its current price, falling back to cost basis for missing quotes.
func (m *Manager) Valuation(prices map[string]float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	value := m.cash
	for symbol, p := range m.positions {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			price = p.CostBasis
		}
		value += float64(p.Shares) * price
	}
	return value
}

// Metrics derives the portfolio risk metrics for a given valuation.
// Calling it twice without a mutation in between yields identical
// results.
func (m *Manager) Metrics(currentValue float64) domain.RiskMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metricsLocked(currentValue)
}

func (m *Manager) metricsLocked(currentValue float64) domain.RiskMetrics {
	metrics := domain.RiskMetrics{PositionCount: len(m.positions)}

	if m.cfg.InitialCapital > 0 {
		metrics.TotalReturnPct = (currentValue - m.cfg.InitialCapital) / m.cfg.InitialCapital * 100
	}

	if len(m.positions) > 0 {
		if currentValue > 0 {
			var invested float64
			for _, p := range m.positions {
				invested += float64(p.Shares) * p.CostBasis
			}
			metrics.CashRatio = (currentValue - invested) / currentValue
			for _, p := range m.positions {
				if p.TargetWeight > metrics.Concentration {
					metrics.Concentration = p.TargetWeight
				}
			}
		}
	} else {
		metrics.CashRatio = 1.0
	}

	if len(m.equity) > 1 {
		peak := 0.0
		for _, e := range m.equity {
			peak = math.Max(peak, e.Value)
		}
		latest := m.equity[len(m.equity)-1].Value
		if peak > 0 {
			metrics.MaxDrawdownPct = (peak - latest) / peak * 100
		}
	}

	metrics.RiskLevel = assessRiskLevel(metrics)
	return metrics
}

func assessRiskLevel(metrics domain.RiskMetrics) domain.RiskLevel {
	switch {
	case metrics.MaxDrawdownPct > 20:
		return domain.RiskExtreme
	case metrics.MaxDrawdownPct > 10 || metrics.Concentration > 0.4:
		return domain.RiskHigh
	case metrics.MaxDrawdownPct > 5 || metrics.Concentration > 0.3:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// PortfolioStatus reports metrics plus the per-position breakdown.
func (m *Manager) PortfolioStatus(currentValue float64) domain.PortfolioStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := domain.PortfolioStatus{
		InitialCapital: m.cfg.InitialCapital,
		CurrentValue:   currentValue,
		Metrics:        m.metricsLocked(currentValue),
		TradeCount:     len(m.trades),
		WinRatePct:     m.winRateLocked(),
	}

	for _, p := range m.positions {
		marketValue := float64(p.Shares) * p.CostBasis
		row := domain.PositionStatus{
			Symbol:       p.Symbol,
			Shares:       p.Shares,
			CostBasis:    p.CostBasis,
			MarketValue:  marketValue,
			TargetWeight: p.TargetWeight,
		}
		if currentValue > 0 {
			row.WeightPct = marketValue / currentValue * 100
		}
		status.Positions = append(status.Positions, row)
	}
	return status
}

func (m *Manager) winRateLocked() float64 {
	if len(m.trades) == 0 {
		return 0
	}
	wins := 0
	for _, tr := range m.trades {
		if tr.ProfitPct > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(m.trades)) * 100
}

// Allocate spreads capital across the top-scored symbols, weighting
// each allocation by its share of the total score and sizing it through
// the normal risk budget.
func (m *Manager) Allocate(symbols []string, scores map[string]float64, prices map[string]float64) map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ranked := make([]string, len(symbols))
	copy(ranked, symbols)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && scores[ranked[j]] > scores[ranked[j-1]]; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if len(ranked) > m.cfg.MaxPositionCount {
		ranked = ranked[:m.cfg.MaxPositionCount]
	}

	var totalScore float64
	for _, s := range ranked {
		totalScore += scores[s]
	}

	allocations := make(map[string]int64, len(ranked))
	for _, symbol := range ranked {
		weight := 1.0 / float64(len(ranked))
		if totalScore > 0 {
			weight = scores[symbol] / totalScore
		}
		shares := m.positionSizeLocked(symbol, prices[symbol], m.cash*weight)
		if shares > 0 {
			allocations[symbol] = shares
		}
	}
	return allocations
}

// Cash returns the current free cash balance.
func (m *Manager) Cash() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cash
}

// Positions returns a copy of the open positions.
func (m *Manager) Positions() map[string]domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Position, len(m.positions))
	for k, v := range m.positions {
		out[k] = v
	}
	return out
}

// TradeHistory returns a copy of the append-only trade log.
func (m *Manager) TradeHistory() []domain.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

// Config returns the manager's limits.
func (m *Manager) Config() Config {
	return m.cfg
}
