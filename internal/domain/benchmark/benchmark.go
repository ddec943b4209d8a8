// Package benchmark ranks a municipality's figures against its peers.
package benchmark

import (
	"sort"

	"github.com/citymind/urbanlink/internal/model"
)

// Metric identifies a benchmarked figure
type Metric struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	LowerIsBetter bool   `json:"lower_is_better"`
}

// Metrics lists every benchmarked figure in display order
var Metrics = []Metric{
	{Key: "project_count", Label: "Projects"},
	{Key: "avg_progress", Label: "Average project progress (%)"},
	{Key: "budget_utilization", Label: "Budget utilization (%)", LowerIsBetter: true},
	{Key: "compliance_score", Label: "Compliance score (%)"},
	{Key: "active_rfps", Label: "Active RFPs"},
	{Key: "accepted_connections", Label: "Accepted connections"},
}

// PercentileRank returns the share of population below value, counting ties
// as half, as a percentage rounded to one decimal. An empty population ranks 0.
func PercentileRank(value float64, population []float64) float64 {
	if len(population) == 0 {
		return 0
	}
	var below, equal int
	for _, v := range population {
		switch {
		case v < value:
			below++
		case v == value:
			equal++
		}
	}
	return model.Round1((float64(below) + 0.5*float64(equal)) / float64(len(population)) * 100)
}

// Rank is PercentileRank adjusted so that higher is always better
func Rank(m Metric, value float64, population []float64) float64 {
	rank := PercentileRank(value, population)
	if m.LowerIsBetter && len(population) > 0 {
		return model.Round1(100 - rank)
	}
	return rank
}

// Comparison is one metric of the subject set against its peers
type Comparison struct {
	Metric
	Value      float64 `json:"value"`
	Average    float64 `json:"average"`
	Median     float64 `json:"median"`
	Percentile float64 `json:"percentile"`
}

// Result is the full benchmark of one municipality
type Result struct {
	Band        model.PopulationBand `json:"band"`
	PeerCount   int                  `json:"peer_count"`
	Comparisons []Comparison         `json:"comparisons"`
}

// Compare ranks subject against peers for every metric. Peers include the
// subject itself.
func Compare(band model.PopulationBand, subject map[string]float64, peers []map[string]float64) Result {
	res := Result{Band: band, PeerCount: len(peers), Comparisons: make([]Comparison, 0, len(Metrics))}
	for _, m := range Metrics {
		population := make([]float64, 0, len(peers))
		for _, p := range peers {
			population = append(population, p[m.Key])
		}
		value := subject[m.Key]
		res.Comparisons = append(res.Comparisons, Comparison{
			Metric:     m,
			Value:      model.Round1(value),
			Average:    model.Round1(mean(population)),
			Median:     model.Round1(median(population)),
			Percentile: Rank(m, value, population),
		})
	}
	return res
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
