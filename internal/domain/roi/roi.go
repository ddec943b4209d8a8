// Package roi computes return-on-investment projections for smart-city
// projects.
package roi

import (
	"math"
	"sort"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/validation"
)

// Defaults applied when an input field is left at zero
const (
	DefaultYears = 5
	MaxYears     = 50
)

// Benefit is an annual benefit stream such as energy savings
type Benefit struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// Input describes an investment and its expected returns
type Input struct {
	InitialInvestment   float64   `json:"initial_investment"`
	AnnualOperatingCost float64   `json:"annual_operating_cost"`
	AnnualBenefits      []Benefit `json:"annual_benefits"`
	Years               int       `json:"years"`
	DiscountRate        float64   `json:"discount_rate"`
	BenefitGrowthRate   float64   `json:"benefit_growth_rate"`
}

// Year is one row of the projection
type Year struct {
	Year          int     `json:"year"`
	Benefit       float64 `json:"benefit"`
	OperatingCost float64 `json:"operating_cost"`
	Net           float64 `json:"net"`
	CumulativeNet float64 `json:"cumulative_net"`
	DiscountedNet float64 `json:"discounted_net"`
}

// Share is a benefit category's part of the total annual benefit
type Share struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Percent  float64 `json:"percent"`
}

// Result is the computed projection
type Result struct {
	Input         Input    `json:"input"`
	Years         []Year   `json:"years"`
	TotalCost     float64  `json:"total_cost"`
	TotalBenefit  float64  `json:"total_benefit"`
	NetBenefit    float64  `json:"net_benefit"`
	ROIPercent    float64  `json:"roi_percent"`
	NPV           float64  `json:"npv"`
	PaybackMonths *float64 `json:"payback_months"`
	Breakdown     []Share  `json:"breakdown"`
}

// WithDefaults fills unset optional fields
func (in Input) WithDefaults() Input {
	if in.Years == 0 {
		in.Years = DefaultYears
	}
	return in
}

// Validate checks money inputs and rates
func (in Input) Validate() error {
	ve := validation.NewValidationErrors()
	ve.NonNegative("initial_investment", in.InitialInvestment)
	ve.NonNegative("annual_operating_cost", in.AnnualOperatingCost)
	for _, b := range in.AnnualBenefits {
		if b.Amount < 0 {
			ve.Add("annual_benefits", "amounts must not be negative")
			break
		}
	}
	if in.Years < 1 || in.Years > MaxYears {
		ve.Addf("years", "must be between 1 and %d", MaxYears)
	}
	ve.Range("discount_rate", in.DiscountRate, 0, 1)
	if in.BenefitGrowthRate <= -1 || in.BenefitGrowthRate > 1 {
		ve.Add("benefit_growth_rate", "must be greater than -1 and at most 1")
	}
	return ve.ErrOrNil()
}

// Calculate validates the input and computes the projection
func Calculate(in Input) (*Result, error) {
	in = in.WithDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	annual := 0.0
	for _, b := range in.AnnualBenefits {
		annual += b.Amount
	}

	res := &Result{
		Input:     in,
		Years:     make([]Year, 0, in.Years),
		TotalCost: in.InitialInvestment + in.AnnualOperatingCost*float64(in.Years),
		NPV:       -in.InitialInvestment,
	}

	cumulative := -in.InitialInvestment
	for y := 1; y <= in.Years; y++ {
		benefit := annual * math.Pow(1+in.BenefitGrowthRate, float64(y-1))
		net := benefit - in.AnnualOperatingCost
		discounted := net / math.Pow(1+in.DiscountRate, float64(y))

		if res.PaybackMonths == nil {
			res.PaybackMonths = paybackWithin(y, cumulative, net)
		}
		cumulative += net

		res.TotalBenefit += benefit
		res.NPV += discounted
		res.Years = append(res.Years, Year{
			Year:          y,
			Benefit:       model.Round2(benefit),
			OperatingCost: model.Round2(in.AnnualOperatingCost),
			Net:           model.Round2(net),
			CumulativeNet: model.Round2(cumulative),
			DiscountedNet: model.Round2(discounted),
		})
	}

	res.NetBenefit = res.TotalBenefit - res.TotalCost
	if res.TotalCost != 0 {
		res.ROIPercent = model.Round2(res.NetBenefit / res.TotalCost * 100)
	}
	res.TotalBenefit = model.Round2(res.TotalBenefit)
	res.NetBenefit = model.Round2(res.NetBenefit)
	res.NPV = model.Round2(res.NPV)
	res.Breakdown = breakdown(in.AnnualBenefits, annual)

	return res, nil
}

// paybackWithin returns the payback point in months if cumulative net turns
// non-negative during year y, given the balance before the year and the
// year's net
func paybackWithin(y int, before, net float64) *float64 {
	if before >= 0 && net >= 0 {
		months := float64(y-1) * 12
		return &months
	}
	after := before + net
	if after < 0 || net <= 0 {
		return nil
	}
	fraction := -before / net
	months := model.Round1((float64(y-1) + fraction) * 12)
	return &months
}

func breakdown(benefits []Benefit, total float64) []Share {
	byCategory := make(map[string]float64)
	var order []string
	for _, b := range benefits {
		if _, ok := byCategory[b.Category]; !ok {
			order = append(order, b.Category)
		}
		byCategory[b.Category] += b.Amount
	}

	shares := make([]Share, 0, len(order))
	for _, c := range order {
		s := Share{Category: c, Amount: model.Round2(byCategory[c])}
		if total > 0 {
			s.Percent = model.Round1(byCategory[c] / total * 100)
		}
		shares = append(shares, s)
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].Amount > shares[j].Amount })
	return shares
}
