// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package stats implements the Beta-distribution math the belief engine
// runs on: posterior mean and variance, random variates for Thompson
// sampling, the regularized incomplete beta function for exact credible
// intervals, and a normal approximation alternative.
//
// Everything here is pure CPU with no allocation on the hot paths.
// Random sampling takes an explicit *rand.Rand so callers stay
// reproducible under test.
package stats

import (
	"math"
	"math/rand"
)

// Beta is a Beta(Alpha, Beta) distribution.
// Both parameters must be positive.
type Beta struct {
	Alpha float64
	Beta  float64
}

// Mean returns Alpha / (Alpha + Beta).
func (d Beta) Mean() float64 {
	return d.Alpha / (d.Alpha + d.Beta)
}

// Variance returns the distribution variance.
func (d Beta) Variance() float64 {
	s := d.Alpha + d.Beta
	return d.Alpha * d.Beta / (s * s * (s + 1))
}

// StdDev returns the distribution standard deviation.
func (d Beta) StdDev() float64 {
	return math.Sqrt(d.Variance())
}

// Sample draws one variate using two gamma draws (Marsaglia-Tsang).
func (d Beta) Sample(rng *rand.Rand) float64 {
	ga := sampleGamma(rng, d.Alpha)
	gb := sampleGamma(rng, d.Beta)
	if ga+gb == 0 {
		return d.Mean()
	}
	return ga / (ga + gb)
}

// CDF returns P(X <= x), the regularized incomplete beta function I_x(a, b).
func (d Beta) CDF(x float64) float64 {
	return regIncompleteBeta(d.Alpha, d.Beta, x)
}

// Quantile returns the x with CDF(x) = p, found by bisection.
// The CDF is strictly increasing on (0, 1) so bisection always converges.
func (d Beta) Quantile(p float64) float64 {
	switch {
	case p <= 0:
		return 0
	case p >= 1:
		return 1
	}

	lo, hi := 0.0, 1.0
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		if d.CDF(mid) < p {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < 1e-12 {
			break
		}
	}
	return (lo + hi) / 2
}

// CredibleInterval returns the equal-tailed credible interval at the given
// level (e.g. 0.95 for a 95% interval).
func (d Beta) CredibleInterval(level float64) (lower, upper float64) {
	tail := (1 - level) / 2
	return d.Quantile(tail), d.Quantile(1 - tail)
}

// sampleGamma draws from Gamma(shape, 1) using the Marsaglia-Tsang
// squeeze method. Shapes below 1 use the boost Gamma(a) = Gamma(a+1)*U^(1/a).
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// regIncompleteBeta computes I_x(a, b) via the continued fraction
// expansion, using the symmetry I_x(a,b) = 1 - I_{1-x}(b,a) to stay in
// the rapidly converging region.
func regIncompleteBeta(a, b, x float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	}

	lgab, _ := math.Lgamma(a + b)
	lga, _ := math.Lgamma(a)
	lgb, _ := math.Lgamma(b)
	front := math.Exp(lgab - lga - lgb + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(a, b, x) / a
	}
	return 1 - front*betaContinuedFraction(b, a, 1-x)/b
}

// betaContinuedFraction evaluates the incomplete beta continued fraction
// with the modified Lentz method.
func betaContinuedFraction(a, b, x float64) float64 {
	const (
		maxIterations = 300
		epsilon       = 3e-14
		tiny          = 1e-300
	)

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIterations; m++ {
		mf := float64(m)
		m2 := 2 * mf

		// Even step.
		aa := mf * (b - mf) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		// Odd step.
		aa = -(a + mf) * (qab + mf) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		h *= delta

		if math.Abs(delta-1) < epsilon {
			break
		}
	}

	return h
}
