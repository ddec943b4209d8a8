package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymind/urbanlink/internal/model"
)

func TestPercentileRank(t *testing.T) {
	tests := []struct {
		name       string
		value      float64
		population []float64
		want       float64
	}{
		{"empty", 10, nil, 0},
		{"single self", 5, []float64{5}, 50},
		{"top", 10, []float64{1, 2, 3, 10}, 87.5},
		{"bottom", 1, []float64{1, 2, 3, 10}, 12.5},
		{"ties", 2, []float64{1, 2, 2, 3}, 50},
		{"above all", 100, []float64{1, 2, 3}, 100},
		{"below all", 0, []float64{1, 2, 3}, 0},
		{"rounded", 2, []float64{1, 2, 3}, 50},
		{"thirds", 3, []float64{1, 2, 3}, 83.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentileRank(tt.value, tt.population))
		})
	}
}

func TestRank_LowerIsBetter(t *testing.T) {
	m := Metric{Key: "cost", LowerIsBetter: true}
	assert.Equal(t, 87.5, Rank(m, 1, []float64{1, 2, 3, 10}))
	assert.Equal(t, 0.0, Rank(m, 1, nil))
}

func TestCompare(t *testing.T) {
	subject := map[string]float64{"project_count": 4, "budget_utilization": 50}
	peers := []map[string]float64{
		subject,
		{"project_count": 1, "budget_utilization": 90},
		{"project_count": 2, "budget_utilization": 70},
	}

	res := Compare(model.BandMedium, subject, peers)
	assert.Equal(t, model.BandMedium, res.Band)
	assert.Equal(t, 3, res.PeerCount)
	require.Len(t, res.Comparisons, len(Metrics))

	byKey := make(map[string]Comparison)
	for _, c := range res.Comparisons {
		byKey[c.Key] = c
	}

	projects := byKey["project_count"]
	assert.Equal(t, 4.0, projects.Value)
	assert.Equal(t, 2.3, projects.Average)
	assert.Equal(t, 2.0, projects.Median)
	assert.Equal(t, 83.3, projects.Percentile)

	// lowest utilization ranks best
	util := byKey["budget_utilization"]
	assert.Equal(t, 83.3, util.Percentile)
	assert.Equal(t, 70.0, util.Median)

	// missing metrics tie everywhere
	assert.Equal(t, 50.0, byKey["active_rfps"].Percentile)
}

func TestMedianEven(t *testing.T) {
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 0.0, median(nil))
}
