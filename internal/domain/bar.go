package domain

import "time"

// PriceBar represents a single daily OHLCV bar for an equity.
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote represents the latest real-time snapshot for an equity.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Open      float64   `json:"open"`
	PrevClose float64   `json:"prev_close"`
	Close     float64   `json:"close"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    float64   `json:"volume"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Change returns the absolute price change against the previous close.
func (q *Quote) Change() float64 {
	return q.Close - q.PrevClose
}

// ChangePct returns the percentage change against the previous close,
// or 0 when the previous close is not positive.
func (q *Quote) ChangePct() float64 {
	if q.PrevClose <= 0 {
		return 0
	}
	return q.Change() / q.PrevClose * 100
}

// Closes extracts the close column from a chronological bar series.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume column from a chronological bar series.
func Volumes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
