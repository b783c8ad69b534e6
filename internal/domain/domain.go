package domain

import "time"

type Asset struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Trend classifies the moving-average structure of a series.
type Trend string

const (
	TrendUp       Trend = "uptrend"
	TrendDown     Trend = "downtrend"
	TrendSideways Trend = "sideways"
	TrendUnknown  Trend = "unknown"
)

// Signal is the discrete trading action derived from a score.
type Signal string

const (
	SignalStrongBuy  Signal = "strong_buy"
	SignalBuy        Signal = "buy"
	SignalHold       Signal = "hold"
	SignalSell       Signal = "sell"
	SignalStrongSell Signal = "strong_sell"
)

// ScoreMethod selects how the composite score is blended.
type ScoreMethod string

const (
	MethodComprehensive ScoreMethod = "comprehensive"
	MethodMomentum      ScoreMethod = "momentum"
	MethodTrend         ScoreMethod = "trend"
)

func (m ScoreMethod) IsValid() bool {
	switch m {
	case MethodComprehensive, MethodMomentum, MethodTrend:
		return true
	}
	return false
}

// IndicatorSet is an immutable snapshot of technical measures for one
// (symbol, asOf) pair. Pointer fields are nil when the series was too
// short for that indicator.
type IndicatorSet struct {
	MA5   *float64 `json:"ma5,omitempty"`
	MA10  *float64 `json:"ma10,omitempty"`
	MA20  *float64 `json:"ma20,omitempty"`
	MA60  *float64 `json:"ma60,omitempty"`
	MA120 *float64 `json:"ma120,omitempty"`

	EMA5  *float64 `json:"ema5,omitempty"`
	EMA10 *float64 `json:"ema10,omitempty"`
	EMA20 *float64 `json:"ema20,omitempty"`

	MACD      *float64 `json:"macd,omitempty"`
	MACDSig   *float64 `json:"macd_signal,omitempty"`
	Histogram *float64 `json:"macd_histogram,omitempty"`

	RSI6  *float64 `json:"rsi6,omitempty"`
	RSI12 *float64 `json:"rsi12,omitempty"`
	RSI24 *float64 `json:"rsi24,omitempty"`

	BollUpper  *float64 `json:"bollinger_upper,omitempty"`
	BollMiddle *float64 `json:"bollinger_middle,omitempty"`
	BollLower  *float64 `json:"bollinger_lower,omitempty"`
	BollWidth  *float64 `json:"bollinger_width,omitempty"`

	ATR10 *float64 `json:"atr10,omitempty"`
	ATR14 *float64 `json:"atr14,omitempty"`

	VolumeMA5   *float64 `json:"volume_ma5,omitempty"`
	VolumeMA10  *float64 `json:"volume_ma10,omitempty"`
	VolumeMA20  *float64 `json:"volume_ma20,omitempty"`
	VolumeRatio *float64 `json:"volume_ratio,omitempty"`

	Trend Trend `json:"trend"`
	Score int   `json:"score"`
}

// Ready reports whether the set was computed from enough history.
func (s *IndicatorSet) Ready() bool {
	return s.MA5 != nil && s.MA20 != nil
}

// FactorScores holds the four independent 0-100 factor scores. Each
// factor is computed in isolation from the same bar series and never
// reads another factor's value.
type FactorScores struct {
	Momentum   float64 `json:"momentum"`
	Trend      float64 `json:"trend"`
	Volume     float64 `json:"volume"`
	Volatility float64 `json:"volatility"`
}

// ScoredCandidate is one symbol's result from a scoring pass.
type ScoredCandidate struct {
	Symbol    string       `json:"symbol"`
	Score     float64      `json:"score"`
	Factors   FactorScores `json:"factors"`
	Price     float64      `json:"price"`
	ChangePct float64      `json:"change_pct"`
	Signal    Signal       `json:"signal"`
	UpProb    *float64     `json:"up_prob,omitempty"`
	Anomalous bool         `json:"anomalous,omitempty"`
}

// SignalReport is the full output of GenerateSignal for one symbol.
type SignalReport struct {
	Symbol     string        `json:"symbol"`
	Signal     Signal        `json:"signal"`
	Score      float64       `json:"score"`
	Reason     string        `json:"reason"`
	Details    []string      `json:"details,omitempty"`
	Indicators *IndicatorSet `json:"indicators,omitempty"`
}

// RiskLevel grades portfolio risk from drawdown and concentration.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// Position is one open holding. Owned exclusively by the risk manager.
type Position struct {
	Symbol       string    `json:"symbol"`
	Shares       int64     `json:"shares"`
	CostBasis    float64   `json:"cost_basis"`
	TargetWeight float64   `json:"target_weight"`
	OpenedAt     time.Time `json:"opened_at"`
}

// TradeRecord is one entry of the append-only trade history.
type TradeRecord struct {
	Symbol    string    `json:"symbol"`
	Shares    int64     `json:"shares"`
	BuyPrice  float64   `json:"buy_price"`
	SellPrice float64   `json:"sell_price"`
	ProfitPct float64   `json:"profit_pct"`
	ClosedAt  time.Time `json:"closed_at"`
}

// EquityPoint is one sample of the portfolio equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// RiskMetrics is derived on demand from portfolio state plus a current
// valuation. Two calls without an intervening mutation are identical.
type RiskMetrics struct {
	TotalReturnPct float64   `json:"total_return_pct"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	CashRatio      float64   `json:"cash_ratio"`
	Concentration  float64   `json:"concentration"`
	PositionCount  int       `json:"position_count"`
	RiskLevel      RiskLevel `json:"risk_level"`
}

// PositionStatus is one row of the portfolio status report.
type PositionStatus struct {
	Symbol       string  `json:"symbol"`
	Shares       int64   `json:"shares"`
	CostBasis    float64 `json:"cost_basis"`
	MarketValue  float64 `json:"market_value"`
	WeightPct    float64 `json:"weight_pct"`
	TargetWeight float64 `json:"target_weight"`
}

// PortfolioStatus is the stateful surface returned by PortfolioStatus.
type PortfolioStatus struct {
	InitialCapital float64          `json:"initial_capital"`
	CurrentValue   float64          `json:"current_value"`
	Metrics        RiskMetrics      `json:"metrics"`
	Positions      []PositionStatus `json:"positions"`
	TradeCount     int              `json:"trade_count"`
	WinRatePct     float64          `json:"win_rate_pct"`
}

// Recommendation is a ranked candidate after the context overlay blend.
type Recommendation struct {
	Candidate    ScoredCandidate `json:"candidate"`
	PolicyLabel  string          `json:"policy_label"`
	PolicyScore  float64         `json:"policy_score"`
	PolicyReason string          `json:"policy_reason,omitempty"`
	FinalScore   float64         `json:"final_score"`
}

// DefaultUniverse lists the symbols scored when no explicit universe is
// configured.
var DefaultUniverse = []string{
	"600519", "000001", "300750", "002594",
	"601398", "600036", "601988",
	"300015", "000651", "600276",
	"002475", "601012", "300059",
}
