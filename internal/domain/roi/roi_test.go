package roi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymind/urbanlink/internal/validation"
)

func TestCalculate_Basic(t *testing.T) {
	res, err := Calculate(Input{
		InitialInvestment:   100_000,
		AnnualOperatingCost: 10_000,
		AnnualBenefits: []Benefit{
			{Category: "energy", Amount: 30_000},
			{Category: "maintenance", Amount: 20_000},
		},
		Years: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 150_000.0, res.TotalCost)
	assert.Equal(t, 250_000.0, res.TotalBenefit)
	assert.Equal(t, 100_000.0, res.NetBenefit)
	assert.Equal(t, 66.67, res.ROIPercent)
	// no discounting: NPV is cumulative net at the horizon
	assert.Equal(t, 100_000.0, res.NPV)

	require.Len(t, res.Years, 5)
	assert.Equal(t, Year{Year: 1, Benefit: 50_000, OperatingCost: 10_000, Net: 40_000, CumulativeNet: -60_000, DiscountedNet: 40_000}, res.Years[0])
	assert.Equal(t, 100_000.0, res.Years[4].CumulativeNet)

	// 100k paid back at 40k a year: 2.5 years
	require.NotNil(t, res.PaybackMonths)
	assert.Equal(t, 30.0, *res.PaybackMonths)

	require.Len(t, res.Breakdown, 2)
	assert.Equal(t, Share{Category: "energy", Amount: 30_000, Percent: 60}, res.Breakdown[0])
	assert.Equal(t, Share{Category: "maintenance", Amount: 20_000, Percent: 40}, res.Breakdown[1])
}

func TestCalculate_Defaults(t *testing.T) {
	res, err := Calculate(Input{AnnualBenefits: []Benefit{{Category: "a", Amount: 1}}})
	require.NoError(t, err)
	assert.Equal(t, DefaultYears, res.Input.Years)
	assert.Len(t, res.Years, DefaultYears)
}

func TestCalculate_Growth(t *testing.T) {
	res, err := Calculate(Input{
		InitialInvestment: 1000,
		AnnualBenefits:    []Benefit{{Category: "a", Amount: 100}},
		Years:             3,
		BenefitGrowthRate: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Years[0].Benefit)
	assert.Equal(t, 110.0, res.Years[1].Benefit)
	assert.Equal(t, 121.0, res.Years[2].Benefit)
	assert.Equal(t, 331.0, res.TotalBenefit)
}

func TestCalculate_Discounting(t *testing.T) {
	res, err := Calculate(Input{
		InitialInvestment: 100,
		AnnualBenefits:    []Benefit{{Category: "a", Amount: 110}},
		Years:             1,
		DiscountRate:      0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Years[0].DiscountedNet)
	assert.Equal(t, 0.0, res.NPV)
}

func TestCalculate_NeverPaysBack(t *testing.T) {
	res, err := Calculate(Input{
		InitialInvestment:   1_000_000,
		AnnualOperatingCost: 5_000,
		AnnualBenefits:      []Benefit{{Category: "a", Amount: 10_000}},
		Years:               3,
	})
	require.NoError(t, err)
	assert.Nil(t, res.PaybackMonths)
	assert.Less(t, res.ROIPercent, 0.0)
}

func TestCalculate_NoInitialInvestment(t *testing.T) {
	res, err := Calculate(Input{
		AnnualBenefits: []Benefit{{Category: "a", Amount: 10}},
		Years:          2,
	})
	require.NoError(t, err)
	require.NotNil(t, res.PaybackMonths)
	assert.Equal(t, 0.0, *res.PaybackMonths)

	res, err = Calculate(Input{
		AnnualOperatingCost: 20,
		AnnualBenefits:      []Benefit{{Category: "a", Amount: 10}},
		Years:               2,
	})
	require.NoError(t, err)
	assert.Nil(t, res.PaybackMonths)
}

func TestCalculate_ZeroCost(t *testing.T) {
	res, err := Calculate(Input{Years: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.ROIPercent)
	assert.Empty(t, res.Breakdown)
}

func TestCalculate_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"negative investment", Input{InitialInvestment: -1}, "initial_investment"},
		{"negative operating", Input{AnnualOperatingCost: -1}, "annual_operating_cost"},
		{"negative benefit", Input{AnnualBenefits: []Benefit{{Amount: -5}}}, "annual_benefits"},
		{"too many years", Input{Years: 51}, "years"},
		{"negative years", Input{Years: -2}, "years"},
		{"discount above one", Input{DiscountRate: 1.5}, "discount_rate"},
		{"growth at minus one", Input{BenefitGrowthRate: -1}, "benefit_growth_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.in)
			var ve *validation.ValidationErrors
			require.ErrorAs(t, err, &ve)
			assert.True(t, ve.Has(tt.field))
		})
	}
}
