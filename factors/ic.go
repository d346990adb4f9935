// Copyright 2023-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package factors

import (
	"math"
	"time"

	"github.com/quant-vault/qv-api/dataframe"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinObservations is the fewest paired (factor, forward return) values a
// date needs before a correlation or regression is attempted
const MinObservations = 5

// ICSeries holds the per-date Spearman rank correlation between a factor
// cross-section and the forward-return cross-section, with a two-sided
// p-value. Dates with too few paired observations are omitted
type ICSeries struct {
	Dates  []time.Time
	IC     []float64
	PValue []float64
}

// ICSummary aggregates an ICSeries into the headline statistics used for
// factor scoring
type ICSummary struct {
	Mean    float64
	Std     float64
	IR      float64
	TStat   float64
	HitRate float64
	N       int
}

// FactorReturnSeries holds the per-date no-intercept OLS coefficient of
// forward return on factor value, with its t-statistic
type FactorReturnSeries struct {
	Dates  []time.Time
	Return []float64
	TStat  []float64
}

// FactorReturnSummary aggregates a FactorReturnSeries: the mean per-date
// factor return, its sample deviation, and the t-statistic of the mean
type FactorReturnSummary struct {
	Mean  float64
	Std   float64
	TStat float64
	N     int
}

// ComputeIC computes the Spearman rank correlation between factor and
// forward-return cross-sections, one value per date. Both frames are
// restricted to their common assets; NaN pairs are dropped per date
func ComputeIC(factor, fwd *dataframe.DataFrame) (*ICSeries, error) {
	aligned, err := dataframe.Align(factor, fwd)
	if err != nil {
		return nil, err
	}
	factor, fwd = aligned[0], aligned[1]

	res := &ICSeries{}
	for rowIdx, date := range factor.Dates {
		xs, ys := pairedRows(factor, fwd, rowIdx)
		if len(xs) < MinObservations {
			log.Debug().Time("Date", date).Int("Pairs", len(xs)).Msg("too few paired observations for IC; date skipped")
			continue
		}

		ic := spearman(xs, ys)
		if math.IsNaN(ic) {
			log.Warn().Time("Date", date).Msg("rank correlation undefined; date skipped")
			continue
		}

		res.Dates = append(res.Dates, date)
		res.IC = append(res.IC, ic)
		res.PValue = append(res.PValue, corrPValue(ic, len(xs)))
	}

	return res, nil
}

// FactorReturns regresses forward return on factor value with no intercept,
// one regression per date. The single coefficient is the factor return for
// the date
func FactorReturns(factor, fwd *dataframe.DataFrame) (*FactorReturnSeries, error) {
	aligned, err := dataframe.Align(factor, fwd)
	if err != nil {
		return nil, err
	}
	factor, fwd = aligned[0], aligned[1]

	res := &FactorReturnSeries{}
	for rowIdx, date := range factor.Dates {
		xs, ys := pairedRows(factor, fwd, rowIdx)
		if len(xs) < MinObservations {
			log.Debug().Time("Date", date).Int("Pairs", len(xs)).Msg("too few paired observations for factor return; date skipped")
			continue
		}

		beta, tStat, ok := olsNoIntercept(xs, ys)
		if !ok {
			log.Warn().Time("Date", date).Msg("factor values have zero dispersion; date skipped")
			continue
		}

		res.Dates = append(res.Dates, date)
		res.Return = append(res.Return, beta)
		res.TStat = append(res.TStat, tStat)
	}

	return res, nil
}

// Summary reduces the series to its headline statistics. HitRate is the
// share of dates with a positive IC
func (ics *ICSeries) Summary() ICSummary {
	n := len(ics.IC)
	if n == 0 {
		return ICSummary{Mean: math.NaN(), Std: math.NaN(), IR: math.NaN(), TStat: math.NaN(), HitRate: math.NaN()}
	}

	mean := stat.Mean(ics.IC, nil)
	std := stat.StdDev(ics.IC, nil)

	hits := 0
	for _, ic := range ics.IC {
		if ic > 0 {
			hits++
		}
	}

	summary := ICSummary{
		Mean:    mean,
		Std:     std,
		IR:      mean / std,
		TStat:   mean / (std / math.Sqrt(float64(n))),
		HitRate: float64(hits) / float64(n),
		N:       n,
	}

	return summary
}

// Summary reduces the series to the mean factor return with its t-statistic
func (frs *FactorReturnSeries) Summary() FactorReturnSummary {
	n := len(frs.Return)
	if n == 0 {
		return FactorReturnSummary{Mean: math.NaN(), Std: math.NaN(), TStat: math.NaN()}
	}

	mean := stat.Mean(frs.Return, nil)
	std := stat.StdDev(frs.Return, nil)

	return FactorReturnSummary{
		Mean:  mean,
		Std:   std,
		TStat: mean / (std / math.Sqrt(float64(n))),
		N:     n,
	}
}

// At returns the IC value for the given date; NaN when the date was skipped
func (ics *ICSeries) At(date time.Time) float64 {
	for ii, dt := range ics.Dates {
		if dt.Equal(date) {
			return ics.IC[ii]
		}
	}
	return math.NaN()
}

// pairedRows extracts the values present in both cross-sections at rowIdx
func pairedRows(a, b *dataframe.DataFrame, rowIdx int) ([]float64, []float64) {
	xs := make([]float64, 0, len(a.Assets))
	ys := make([]float64, 0, len(a.Assets))
	for colIdx := range a.Assets {
		x := a.Vals[colIdx][rowIdx]
		y := b.Vals[colIdx][rowIdx]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

// spearman computes the rank correlation of two equal-length slices by
// Pearson-correlating their average ranks
func spearman(xs, ys []float64) float64 {
	return stat.Correlation(rankCrossSection(xs), rankCrossSection(ys), nil)
}

// corrPValue converts a correlation on n pairs into a two-sided p-value via
// the Student's t transform with n-2 degrees of freedom
func corrPValue(r float64, n int) float64 {
	if n <= 2 {
		return math.NaN()
	}

	denom := 1 - r*r
	if denom <= 0 {
		return 0
	}

	t := r * math.Sqrt(float64(n-2)/denom)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * dist.Survival(math.Abs(t))
}

// olsNoIntercept fits y = b*x and returns the coefficient with its
// t-statistic
func olsNoIntercept(xs, ys []float64) (beta, tStat float64, ok bool) {
	sxx := 0.0
	sxy := 0.0
	for ii := range xs {
		sxx += xs[ii] * xs[ii]
		sxy += xs[ii] * ys[ii]
	}

	if sxx == 0 {
		return 0, 0, false
	}

	beta = sxy / sxx

	rss := 0.0
	for ii := range xs {
		r := ys[ii] - beta*xs[ii]
		rss += r * r
	}

	dof := float64(len(xs) - 1)
	se := math.Sqrt(rss / dof / sxx)
	if se == 0 {
		return beta, math.Inf(1), true
	}

	return beta, beta / se, true
}
