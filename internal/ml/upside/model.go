// Package upside trains a gradient-boosted classifier that estimates
// the probability of the next daily bar closing up, using the four
// factor scores as features.
package upside

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"math"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/scoring"
)

var featureNames = []string{"momentum", "trend", "volume", "volatility"}

// minPrefix is the shortest bar prefix worth featurizing. Below it the
// factor scorer degrades to all-neutral vectors that teach nothing.
const minPrefix = 30

type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Rounds:       40,
		LearningRate: 0.08,
		MaxDepth:     3,
	}
}

// Model wraps the boosted ensemble. The zero value predicts 0.5.
type Model struct {
	boost *boo.MultiClass
}

type artifact struct {
	FeatureNames []string `json:"feature_names"`
	ModelText    string   `json:"model_text"`
}

// Features converts a bar series into one sample: the four factor
// scores computed over the whole series.
func Features(bars []domain.PriceBar) []float64 {
	f := scoring.Factors(bars)
	return []float64{f.Momentum, f.Trend, f.Volume, f.Volatility}
}

// BuildDataset walks a chronological series and emits one labeled
// sample per predictable bar: features over bars[:i+1], label 1 when
// bar i+1 closed above bar i. Series from several symbols can simply
// be concatenated.
func BuildDataset(bars []domain.PriceBar) (samples [][]float64, labels []int) {
	for i := minPrefix - 1; i < len(bars)-1; i++ {
		samples = append(samples, Features(bars[:i+1]))
		label := 0
		if bars[i+1].Close > bars[i].Close {
			label = 1
		}
		labels = append(labels, label)
	}
	return samples, labels
}

// Train fits the ensemble. It needs both classes present: a dataset of
// only up days or only down days cannot calibrate a probability.
func Train(samples [][]float64, labels []int, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	classes := make(map[int]struct{}, 2)
	for _, l := range labels {
		classes[l] = struct{}{}
	}
	if len(classes) < 2 {
		return nil, errors.New("training data needs both up and down days")
	}

	def := DefaultTrainOptions()
	if opts.Rounds <= 0 {
		opts.Rounds = def.Rounds
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}

	o := boo.DefaultXOptions()
	o.Rounds = opts.Rounds
	o.LearningRate = opts.LearningRate
	o.MaxDepth = opts.MaxDepth
	o.Verbose = false
	o.EarlyStop = 0

	data := &utils.DataBunch{
		Data:   samples,
		Labels: append([]int(nil), labels...),
		Keys:   append([]string(nil), featureNames...),
	}
	model := boo.NewMultiClass(data, o)
	if model == nil {
		return nil, errors.New("boosting failed to converge")
	}
	return &Model{boost: model}, nil
}

// TrainFromSeries builds one dataset from every symbol's history and
// trains on the concatenation.
func TrainFromSeries(series map[string][]domain.PriceBar, opts TrainOptions) (*Model, error) {
	var samples [][]float64
	var labels []int
	for _, bars := range series {
		s, l := BuildDataset(bars)
		samples = append(samples, s...)
		labels = append(labels, l...)
	}
	return Train(samples, labels, opts)
}

// PredictProb returns the probability of the next bar closing up.
// A nil or untrained model is neutral.
func (m *Model) PredictProb(sample []float64) float64 {
	if m == nil || m.boost == nil {
		return 0.5
	}
	probs := m.boost.PredictSingle(sample)
	for i, label := range m.boost.ClassLabels() {
		if label == 1 {
			return clampProb(probs[i])
		}
	}
	if len(probs) == 0 {
		return 0.5
	}
	return clampProb(probs[len(probs)-1])
}

// PredictSeries featurizes the full series and predicts on it.
func (m *Model) PredictSeries(bars []domain.PriceBar) float64 {
	if len(bars) < minPrefix {
		return 0.5
	}
	return m.PredictProb(Features(bars))
}

// MarshalBinary serializes the model for the registry.
func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || m.boost == nil {
		return nil, errors.New("nil model")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(m.boost, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(artifact{
		FeatureNames: featureNames,
		ModelText:    buf.String(),
	})
}

// UnmarshalBinary restores a model serialized by MarshalBinary.
func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	reader := bufio.NewReader(bytes.NewReader([]byte(a.ModelText)))
	model, err := boo.UnJSONMultiClass(reader)
	if err != nil {
		return nil, err
	}
	return &Model{boost: model}, nil
}

func clampProb(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
