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

package dataframe

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// AddScalar adds the scalar value to all assets in dataframe df and returns
// a new dataframe
func (df *DataFrame) AddScalar(scalar float64) *DataFrame {
	df = df.Copy()

	for colIdx := range df.Assets {
		for rowIdx := range df.Vals[colIdx] {
			df.Vals[colIdx][rowIdx] += scalar
		}
	}
	return df
}

// MulScalar multiplies all assets in dataframe df by the scalar and returns
// a new dataframe
func (df *DataFrame) MulScalar(scalar float64) *DataFrame {
	df = df.Copy()

	for colIdx := range df.Assets {
		for rowIdx := range df.Vals[colIdx] {
			df.Vals[colIdx][rowIdx] *= scalar
		}
	}
	return df
}

// Count creates a per-date tally of assets where the expression
// lambda func(float64) bool evaluates to true
func (df *DataFrame) Count(lambda func(x float64) bool) []int {
	res := make([]int, df.Len())

	for rowIdx := range df.Dates {
		cnt := 0
		for _, col := range df.Vals {
			if lambda(col[rowIdx]) {
				cnt++
			}
		}
		res[rowIdx] = cnt
	}

	return res
}

// Log replaces every value with its natural logarithm and returns a new
// dataframe. Non-positive values become NaN
func (df *DataFrame) Log() *DataFrame {
	df = df.Copy()
	for colIdx := range df.Vals {
		for rowIdx, val := range df.Vals[colIdx] {
			if val <= 0 {
				df.Vals[colIdx][rowIdx] = math.NaN()
			} else {
				df.Vals[colIdx][rowIdx] = math.Log(val)
			}
		}
	}
	return df
}

// ForwardReturns computes the return realized over the next `horizon` rows
// for every asset: r[t] = p[t+horizon]/p[t] - 1. The trailing `horizon` rows
// are NaN because their forward price is not yet known
func ForwardReturns(prices *DataFrame, horizon int) *DataFrame {
	if horizon < 1 {
		log.Error().Stack().Int("Horizon", horizon).Msg("forward return horizon must be >= 1")
		return New(prices.Dates, prices.Assets)
	}

	res := New(prices.Dates, prices.Assets)
	for colIdx := range prices.Vals {
		col := prices.Vals[colIdx]
		for rowIdx := range col {
			future := rowIdx + horizon
			if future >= len(col) {
				break
			}
			p0 := col[rowIdx]
			p1 := col[future]
			if p0 == 0 || math.IsNaN(p0) || math.IsNaN(p1) {
				continue
			}
			res.Vals[colIdx][rowIdx] = (p1 - p0) / p0
		}
	}

	return res
}

// Sum returns the per-date sum over all assets, skipping NaN values
func (df *DataFrame) Sum() []float64 {
	res := make([]float64, df.Len())
	for rowIdx := range df.Dates {
		vals := make([]float64, 0, len(df.Vals))
		for _, col := range df.Vals {
			if !math.IsNaN(col[rowIdx]) {
				vals = append(vals, col[rowIdx])
			}
		}
		res[rowIdx] = floats.Sum(vals)
	}
	return res
}
