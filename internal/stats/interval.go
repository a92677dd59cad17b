// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package stats

import "math"

// Interval is a credible interval on a conversion rate, clamped to [0, 1].
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns Upper - Lower.
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}

// Contains reports whether p lies inside the interval.
func (i Interval) Contains(p float64) bool {
	return p >= i.Lower && p <= i.Upper
}

// IntervalStrategy computes a credible interval for a Beta belief.
// The strategy is injected by configuration: the exact Beta-quantile
// form is canonical, the normal approximation is a cheaper alternative
// for deployments that prefer speed over tail accuracy.
type IntervalStrategy interface {
	// Name returns the strategy identifier ("beta_quantile", "normal_approx").
	Name() string

	// Interval returns the equal-tailed interval at the given level.
	Interval(d Beta, level float64) Interval
}

// BetaQuantileInterval computes exact equal-tailed Beta quantile intervals.
type BetaQuantileInterval struct{}

// Name returns "beta_quantile".
func (BetaQuantileInterval) Name() string { return "beta_quantile" }

// Interval returns the exact equal-tailed credible interval.
func (BetaQuantileInterval) Interval(d Beta, level float64) Interval {
	lo, hi := d.CredibleInterval(level)
	return Interval{Lower: clamp01(lo), Upper: clamp01(hi)}
}

// NormalApproxInterval approximates the interval as mean +/- z * stddev.
// Adequate once alpha and beta are both reasonably large; poor in the
// tails for small samples, which is why it is opt-in.
type NormalApproxInterval struct{}

// Name returns "normal_approx".
func (NormalApproxInterval) Name() string { return "normal_approx" }

// Interval returns the normal-approximation interval at the given level.
func (NormalApproxInterval) Interval(d Beta, level float64) Interval {
	z := ZScore(level)
	m := d.Mean()
	s := d.StdDev()
	return Interval{Lower: clamp01(m - z*s), Upper: clamp01(m + z*s)}
}

// StrategyByName returns the interval strategy for a configuration name.
// Unknown names fall back to the canonical Beta quantile strategy.
func StrategyByName(name string) IntervalStrategy {
	if name == "normal_approx" {
		return NormalApproxInterval{}
	}
	return BetaQuantileInterval{}
}

// ZScore returns the two-sided standard normal critical value for a
// confidence level, e.g. 0.95 -> 1.96, 0.80 -> 1.28.
func ZScore(level float64) float64 {
	if level <= 0 || level >= 1 {
		return 0
	}
	return normQuantile(0.5 + level/2)
}

// normQuantile is the inverse standard normal CDF (Acklam's rational
// approximation, |relative error| < 1.15e-9 over the full domain).
func normQuantile(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}

	a := [6]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := [5]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := [6]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	e := [4]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	const (
		plow  = 0.02425
		phigh = 1 - plow
	)

	switch {
	case p < plow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((e[0]*q+e[1])*q+e[2])*q+e[3])*q + 1)
	case p > phigh:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((e[0]*q+e[1])*q+e[2])*q+e[3])*q + 1)
	default:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
}

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
