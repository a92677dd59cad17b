// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package belief

// MarketPrior describes observed market-level performance for a product
// category, used to seed benchmark pattern beliefs.
type MarketPrior struct {
	// CVR is the observed market conversion rate (0-1).
	CVR float64 `json:"cvr" koanf:"cvr" validate:"gte=0,lte=1"`

	// Days is how long the market creative ran.
	Days int `json:"days" koanf:"days" validate:"gte=0"`

	// ClicksPerDay is the observed click volume per day.
	ClicksPerDay int `json:"clicks_per_day" koanf:"clicks_per_day" validate:"gte=0"`
}

// BenchmarkPrior converts market performance into Beta prior parameters:
//
//	total_clicks    = days * clicks_per_day
//	conversions_est = total_clicks * cvr
//	alpha           = conversions_est + 1
//	beta            = (total_clicks - conversions_est) + 1
//
// The +1 on both sides keeps the prior proper even with zero volume.
func BenchmarkPrior(p MarketPrior) (alpha, beta float64) {
	totalClicks := float64(p.Days) * float64(p.ClicksPerDay)
	conversions := totalClicks * p.CVR
	return conversions + 1, (totalClicks - conversions) + 1
}

// MarketPriors maps product category to its market prior. Categories
// without an entry fall back to DefaultMarketPrior.
type MarketPriors map[string]MarketPrior

// DefaultMarketPrior is a weak market prior used when a category has no
// benchmark data: 2% CVR over a single nominal day of 100 clicks.
var DefaultMarketPrior = MarketPrior{CVR: 0.02, Days: 1, ClicksPerDay: 100}

// For returns the prior for a category, falling back to the default.
func (m MarketPriors) For(category string) MarketPrior {
	if p, ok := m[category]; ok {
		return p
	}
	return DefaultMarketPrior
}
