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

	"github.com/quant-vault/qv-api/dataframe"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// OrthoMethod selects how correlated factors are decorrelated before
// combination
type OrthoMethod int

const (
	// OrthoNone leaves the factor set unchanged
	OrthoNone OrthoMethod = iota
	// OrthoSymmetric applies Löwdin symmetric orthogonalization, which
	// treats all factors equally
	OrthoSymmetric
	// OrthoGramSchmidt residualizes each factor against the ones before
	// it, so the result depends on factor order
	OrthoGramSchmidt
)

// Orthogonalize decorrelates a set of aligned factor frames one date at a
// time. Assets missing any factor value on a date are left untouched for
// that date
func Orthogonalize(frames []*dataframe.DataFrame, method OrthoMethod) []*dataframe.DataFrame {
	if method == OrthoNone || len(frames) < 2 {
		return frames
	}

	res := make([]*dataframe.DataFrame, len(frames))
	for ii, df := range frames {
		res[ii] = df.Copy()
	}

	nF := len(frames)
	for rowIdx, date := range frames[0].Dates {
		// assets with a complete factor vector this date
		complete := make([]int, 0, len(frames[0].Assets))
		for colIdx := range frames[0].Assets {
			ok := true
			for _, df := range frames {
				if math.IsNaN(df.Vals[colIdx][rowIdx]) {
					ok = false
					break
				}
			}
			if ok {
				complete = append(complete, colIdx)
			}
		}

		if len(complete) < nF {
			log.Debug().Time("Date", date).Int("Assets", len(complete)).Msg("too few complete assets to orthogonalize; date unchanged")
			continue
		}

		cols := make([][]float64, nF)
		for kk, df := range frames {
			cols[kk] = make([]float64, len(complete))
			for ii, colIdx := range complete {
				cols[kk][ii] = df.Vals[colIdx][rowIdx]
			}
		}

		var ok bool
		switch method {
		case OrthoSymmetric:
			ok = lowdin(cols)
		case OrthoGramSchmidt:
			ok = gramSchmidt(cols)
		}

		if !ok {
			log.Warn().Time("Date", date).Msg("factor set is numerically collinear; date unchanged")
			continue
		}

		for kk := range res {
			for ii, colIdx := range complete {
				res[kk].Vals[colIdx][rowIdx] = cols[kk][ii]
			}
		}
	}

	return res
}

// lowdin replaces cols with cols * (F'F/n)^(-1/2), the symmetric
// orthogonalization of the factor matrix
func lowdin(cols [][]float64) bool {
	nF := len(cols)
	nRows := len(cols[0])

	overlap := mat.NewSymDense(nF, nil)
	for ii := 0; ii < nF; ii++ {
		for jj := ii; jj < nF; jj++ {
			sum := 0.0
			for kk := 0; kk < nRows; kk++ {
				sum += cols[ii][kk] * cols[jj][kk]
			}
			overlap.SetSym(ii, jj, sum/float64(nRows))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(overlap, true) {
		return false
	}

	vals := eig.Values(nil)
	tol := 1e-12 * vals[len(vals)-1]
	for _, v := range vals {
		if v <= tol {
			return false
		}
	}

	var q mat.Dense
	eig.VectorsTo(&q)

	// invRoot = Q diag(1/sqrt(lambda)) Q'
	invRoot := mat.NewDense(nF, nF, nil)
	for ii := 0; ii < nF; ii++ {
		for jj := 0; jj < nF; jj++ {
			sum := 0.0
			for kk := 0; kk < nF; kk++ {
				sum += q.At(ii, kk) * q.At(jj, kk) / math.Sqrt(vals[kk])
			}
			invRoot.Set(ii, jj, sum)
		}
	}

	orig := make([][]float64, nF)
	for kk := range cols {
		orig[kk] = make([]float64, nRows)
		copy(orig[kk], cols[kk])
	}

	for kk := 0; kk < nF; kk++ {
		for ii := 0; ii < nRows; ii++ {
			sum := 0.0
			for jj := 0; jj < nF; jj++ {
				sum += orig[jj][ii] * invRoot.At(jj, kk)
			}
			cols[kk][ii] = sum
		}
	}

	return true
}

// gramSchmidt residualizes each column against the orthogonalized columns
// preceding it
func gramSchmidt(cols [][]float64) bool {
	for kk := 1; kk < len(cols); kk++ {
		for jj := 0; jj < kk; jj++ {
			uu := 0.0
			xu := 0.0
			for ii := range cols[jj] {
				uu += cols[jj][ii] * cols[jj][ii]
				xu += cols[kk][ii] * cols[jj][ii]
			}
			if uu == 0 {
				return false
			}
			scale := xu / uu
			for ii := range cols[kk] {
				cols[kk][ii] -= scale * cols[jj][ii]
			}
		}
	}
	return true
}
