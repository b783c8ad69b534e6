package anomaly

import (
	"github.com/narumiruna/go-iforest/pkg/iforest"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/ta"
)

// DefaultThreshold flags roughly the top few percent of isolation
// scores on typical universes.
const DefaultThreshold = 0.62

// Detector flags symbols whose recent return and volume behaviour is
// isolated from the rest of the universe. It fits a fresh forest per
// call: universes are small and the fit is cheap.
type Detector struct {
	threshold  float64
	minSymbols int
}

func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold, minSymbols: 8}
}

// Flag scores every symbol's feature vector against the universe and
// returns the set of anomalous symbols. With too few symbols to make
// isolation meaningful, nothing is flagged.
func (d *Detector) Flag(series map[string][]domain.PriceBar) map[string]bool {
	symbols := make([]string, 0, len(series))
	samples := make([][]float64, 0, len(series))
	for symbol, bars := range series {
		features, ok := featureVector(bars)
		if !ok {
			continue
		}
		symbols = append(symbols, symbol)
		samples = append(samples, features)
	}

	flagged := make(map[string]bool)
	if len(samples) < d.minSymbols {
		return flagged
	}

	forest := iforest.New()
	forest.Fit(samples)
	scores := forest.Score(samples)
	for i, score := range scores {
		if score >= d.threshold {
			flagged[symbols[i]] = true
		}
	}
	return flagged
}

// featureVector condenses one symbol's recent bars into four numbers:
// mean daily return, return volatility, last-day return and the latest
// volume relative to its 20-day mean.
func featureVector(bars []domain.PriceBar) ([]float64, bool) {
	if len(bars) < 21 {
		return nil, false
	}
	closes := domain.Closes(bars)
	returns := ta.PctChanges(closes, 1)
	if len(returns) == 0 {
		return nil, false
	}
	mean, std := ta.MeanStd(returns)
	last := returns[len(returns)-1]

	volumes := domain.Volumes(bars)
	window := volumes[len(volumes)-20:]
	var volMean float64
	for _, v := range window {
		volMean += v
	}
	volMean /= float64(len(window))
	volRatio := 1.0
	if volMean > 0 {
		volRatio = volumes[len(volumes)-1] / volMean
	}

	return []float64{mean, std, last, volRatio}, true
}
