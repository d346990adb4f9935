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
	"sort"

	"github.com/quant-vault/qv-api/dataframe"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// Standardization selects how a factor cross-section is rescaled before
// combination
type Standardization int

const (
	ZScore Standardization = iota
	Rank
)

const (
	// WinsorizeLower and WinsorizeUpper are the default clip quantiles
	WinsorizeLower = 0.025
	WinsorizeUpper = 0.975
)

// Preprocess cleans a factor one date at a time: missing values are replaced
// with the cross-section mean, outliers are clipped to the default
// quantiles, and the result is z-score standardized. The (date, asset) key
// set of the input is preserved; degenerate cross-sections degrade to NaN
func Preprocess(df *dataframe.DataFrame) *dataframe.DataFrame {
	return Standardize(Winsorize(FillMean(df), WinsorizeLower, WinsorizeUpper))
}

// FillMean replaces NaN values within each date's cross-section with the
// mean of that date's non-NaN values. Dates where every value is NaN are
// left untouched
func FillMean(df *dataframe.DataFrame) *dataframe.DataFrame {
	df = df.Copy()

	for rowIdx := range df.Dates {
		xs := df.Row(rowIdx)
		vals := compact(xs)
		if len(vals) == 0 {
			continue
		}

		mean := stat.Mean(vals, nil)
		for ii, v := range xs {
			if math.IsNaN(v) {
				xs[ii] = mean
			}
		}
		df.SetRow(rowIdx, xs)
	}

	return df
}

// Winsorize clips each date's cross-section to the order statistics closest
// to the [lower, upper] quantiles. Because the bounds are realized values,
// the transform is idempotent: re-applying the same bounds to an already
// clipped cross-section changes nothing
func Winsorize(df *dataframe.DataFrame, lower, upper float64) *dataframe.DataFrame {
	df = df.Copy()

	for rowIdx := range df.Dates {
		xs := df.Row(rowIdx)
		vals := compact(xs)
		if len(vals) < 2 {
			continue
		}

		sort.Float64s(vals)
		lo := orderStat(vals, lower, false)
		hi := orderStat(vals, upper, true)

		for ii, v := range xs {
			switch {
			case math.IsNaN(v):
			case v < lo:
				xs[ii] = lo
			case v > hi:
				xs[ii] = hi
			}
		}
		df.SetRow(rowIdx, xs)
	}

	return df
}

// Standardize rescales each date's cross-section to mean 0 and population
// standard deviation 1. Zero-variance cross-sections degrade to NaN
func Standardize(df *dataframe.DataFrame) *dataframe.DataFrame {
	df = df.Copy()

	for rowIdx := range df.Dates {
		xs := df.Row(rowIdx)
		vals := compact(xs)
		if len(vals) == 0 {
			continue
		}

		mean := stat.Mean(vals, nil)
		std := stat.PopStdDev(vals, nil)
		if std == 0 || math.IsNaN(std) {
			log.Warn().Time("Date", df.Dates[rowIdx]).Msg("cross-section has zero variance; standardized values are NaN")
			for ii := range xs {
				xs[ii] = math.NaN()
			}
			df.SetRow(rowIdx, xs)
			continue
		}

		for ii, v := range xs {
			if !math.IsNaN(v) {
				xs[ii] = (v - mean) / std
			}
		}
		df.SetRow(rowIdx, xs)
	}

	return df
}

// RankStandardize replaces each date's cross-section with its average ranks
// and then z-scores the ranks. Rank standardization is robust to heavy
// tails at the cost of discarding magnitude information
func RankStandardize(df *dataframe.DataFrame) *dataframe.DataFrame {
	df = df.Copy()

	for rowIdx := range df.Dates {
		xs := df.Row(rowIdx)
		ranked := rankCrossSection(xs)
		df.SetRow(rowIdx, ranked)
	}

	return Standardize(df)
}

// rankCrossSection assigns average ranks (1-based) to the non-NaN entries of
// xs, keeping NaN positions NaN
func rankCrossSection(xs []float64) []float64 {
	type obs struct {
		pos int
		val float64
	}

	observed := make([]obs, 0, len(xs))
	for ii, v := range xs {
		if !math.IsNaN(v) {
			observed = append(observed, obs{pos: ii, val: v})
		}
	}

	res := make([]float64, len(xs))
	for ii := range res {
		res[ii] = math.NaN()
	}

	sort.Slice(observed, func(i, j int) bool { return observed[i].val < observed[j].val })

	// assign average ranks across ties
	for ii := 0; ii < len(observed); {
		jj := ii
		for jj < len(observed) && observed[jj].val == observed[ii].val {
			jj++
		}
		avg := float64(ii+jj+1) / 2.0 // mean of 1-based ranks ii+1..jj
		for kk := ii; kk < jj; kk++ {
			res[observed[kk].pos] = avg
		}
		ii = jj
	}

	return res
}

// orderStat returns the sorted value at rank h = (n-1)p, rounded toward the
// interior of the distribution: up for a lower bound, down for an upper
// bound. Interpolating between ranks instead would shift the bounds inward
// on every re-application
func orderStat(vals []float64, p float64, upper bool) float64 {
	n := len(vals)
	if n == 0 {
		return math.NaN()
	}

	h := float64(n-1) * p
	var idx int
	if upper {
		idx = int(math.Floor(h))
	} else {
		idx = int(math.Ceil(h))
	}
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return vals[idx]
}

// compact returns the non-NaN values of xs in a new slice
func compact(xs []float64) []float64 {
	vals := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}
