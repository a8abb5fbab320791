// Package scorer ranks models by a weighted sum of complexity, importance
// and quality metrics, optionally normalized to z-scores.
package scorer

import (
	"log/slog"
	"math"
	"sort"

	"github.com/leapstack-labs/modaryn/internal/dag"
	"github.com/leapstack-labs/modaryn/pkg/core"
)

// Options configures a Scorer.
type Options struct {
	// Weights defaults to DefaultWeights().
	Weights     *Weights
	ApplyZScore bool
	Logger      *slog.Logger
}

// Breakdown is the weighted contribution of each metric group to a raw
// score: RawScore = Complexity + Importance - Quality.
type Breakdown struct {
	Complexity float64 `json:"complexity"`
	Importance float64 `json:"importance"`
	Quality    float64 `json:"quality"`
}

// Total returns the raw score.
func (b Breakdown) Total() float64 {
	return b.Complexity + b.Importance - b.Quality
}

// Scorer computes model scores.
type Scorer struct {
	weights     *Weights
	applyZScore bool
	logger      *slog.Logger
}

// New creates a Scorer.
func New(opts Options) *Scorer {
	w := opts.Weights
	if w == nil {
		w = DefaultWeights()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scorer{weights: w, applyZScore: opts.ApplyZScore, logger: logger}
}

// Weights returns the weights in use.
func (s *Scorer) Weights() *Weights {
	return s.weights
}

// ScoreProject sets RawScore, QualityScore and, with z-score normalization,
// Score on every model, and stores the statistics of the raw scores on the
// project. Without normalization Score is left untouched.
func (s *Scorer) ScoreProject(p *core.Project) *core.ScoreStatistics {
	g := dag.FromProject(p)
	ids := p.ModelIDs()
	raw := make([]float64, 0, len(ids))
	for _, id := range ids {
		m := p.Models[id]
		m.RawScore = s.Breakdown(m, len(g.Descendants(id))).Total()
		m.QualityScore = m.ColumnTestCoverage()
		raw = append(raw, m.RawScore)
	}

	mean, median, stddev := Statistics(raw)
	stats := &core.ScoreStatistics{Mean: mean, Median: median, StdDev: stddev, ZScoreApplied: s.applyZScore}
	if s.applyZScore {
		for _, id := range ids {
			p.Models[id].Score = ZScore(p.Models[id].RawScore, mean, stddev)
		}
	}
	p.Statistics = stats

	s.logger.Debug("scored project", "models", len(ids), "mean", mean, "stddev", stddev, "zscore", s.applyZScore)
	return stats
}

// Breakdown computes the weighted metric groups of m. transitive is the
// number of models downstream of m at any depth.
func (s *Scorer) Breakdown(m *core.Model, transitive int) Breakdown {
	var b Breakdown
	if c := m.Complexity; c != nil {
		w := s.weights.SQLComplexity
		b.Complexity = float64(c.JoinCount)*w.JoinCount +
			float64(c.CTECount)*w.CTECount +
			float64(c.ConditionalCount)*w.ConditionalCount +
			float64(c.WhereCount)*w.WhereCount +
			float64(c.SQLCharCount)*w.SQLCharCount
	}

	iw := s.weights.Importance
	b.Importance = float64(m.DownstreamModelCount())*iw.DownstreamModelCount +
		float64(m.DownstreamColumnCount())*iw.DownstreamColumnCount +
		float64(transitive)*iw.TransitiveDownstreamCount

	qw := s.weights.Quality
	b.Quality = m.ColumnTestCoverage()*qw.ColumnTestCoverage +
		float64(m.TestCount)*qw.TestCount
	return b
}

// Statistics returns the mean, median and population standard deviation of
// values. All are zero for an empty slice.
func Statistics(values []float64) (mean, median, stddev float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	stddev = math.Sqrt(variance / float64(n))

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return mean, median, stddev
}

// ZScore returns (value - mean) / stddev, or 0 when stddev is 0.
func ZScore(value, mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return (value - mean) / stddev
}
