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
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DegeneratePolicy controls what happens on a date whose regression design
// matrix is rank deficient
type DegeneratePolicy int

const (
	// DropDate outputs NaN for the entire date
	DropDate DegeneratePolicy = iota
	// DropCollinear solves with a rank-truncated pseudo-inverse, keeping
	// the date
	DropCollinear
)

// minIndustries is the fewest distinct industry codes a date must carry for
// the regression to be attempted
const minIndustries = 2

// Neutralize removes industry and size exposure from a factor one date at a
// time. Each date's cross-section is regressed on one-hot industry dummies
// plus, when mktCap is non-nil, a standardized log market cap column; the
// residuals become the neutralized factor. Assets missing the factor value
// or any covariate on a date get NaN residuals. The output key set equals
// the input key set
func Neutralize(factor *dataframe.DataFrame, industry *dataframe.CategoryFrame, mktCap *dataframe.DataFrame, policy DegeneratePolicy) *dataframe.DataFrame {
	res := dataframe.New(factor.Dates, factor.Assets)

	for rowIdx, date := range factor.Dates {
		indRow := industry.DateIndex(date)
		capRow := -1
		if mktCap != nil {
			capRow = mktCap.DateIndex(date)
		}

		// collect assets with a complete observation for this date
		included := make([]int, 0, len(factor.Assets))
		codes := make([]string, 0, len(factor.Assets))
		caps := make([]float64, 0, len(factor.Assets))
		for colIdx, asset := range factor.Assets {
			val := factor.Vals[colIdx][rowIdx]
			if math.IsNaN(val) {
				continue
			}

			code := ""
			if indRow != -1 {
				indCol := industry.AssetIndex(asset)
				if indCol != -1 {
					code = industry.Code(indCol, indRow)
				}
			}
			if code == "" {
				continue
			}

			capVal := math.NaN()
			if mktCap != nil {
				if capRow != -1 {
					capCol := mktCap.AssetIndex(asset)
					if capCol != -1 {
						capVal = mktCap.Vals[capCol][capRow]
					}
				}
				if math.IsNaN(capVal) || capVal <= 0 {
					continue
				}
			}

			included = append(included, colIdx)
			codes = append(codes, code)
			caps = append(caps, capVal)
		}

		distinct := distinctCodes(codes)
		if len(distinct) < minIndustries {
			log.Warn().Time("Date", date).Int("Industries", len(distinct)).Msg("too few industries to neutralize; date is NaN")
			continue
		}

		resid, ok := neutralizeDate(factor, rowIdx, included, codes, distinct, caps, mktCap != nil, policy)
		if !ok {
			continue
		}

		for ii, colIdx := range included {
			res.Vals[colIdx][rowIdx] = resid[ii]
		}
	}

	return res
}

// neutralizeDate runs the cross-sectional regression for one date and
// returns residuals aligned with the included asset list
func neutralizeDate(factor *dataframe.DataFrame, rowIdx int, included []int, codes, distinct []string, caps []float64, useCap bool, policy DegeneratePolicy) ([]float64, bool) {
	nRows := len(included)
	nCols := len(distinct)
	if useCap {
		nCols++
	}

	if nRows <= nCols {
		log.Warn().Time("Date", factor.Dates[rowIdx]).Int("Assets", nRows).Int("Covariates", nCols).Msg("not enough assets for neutralization regression; date is NaN")
		return nil, false
	}

	codeIdx := make(map[string]int, len(distinct))
	for ii, code := range distinct {
		codeIdx[code] = ii
	}

	design := mat.NewDense(nRows, nCols, nil)
	y := mat.NewVecDense(nRows, nil)
	for ii, colIdx := range included {
		design.Set(ii, codeIdx[codes[ii]], 1)
		y.SetVec(ii, factor.Vals[colIdx][rowIdx])
	}

	if useCap {
		logCaps := make([]float64, nRows)
		for ii := range caps {
			logCaps[ii] = math.Log(caps[ii])
		}
		mean := stat.Mean(logCaps, nil)
		std := stat.PopStdDev(logCaps, nil)
		if std == 0 {
			log.Warn().Time("Date", factor.Dates[rowIdx]).Msg("market cap has zero variance; date is NaN")
			return nil, false
		}
		for ii := range logCaps {
			design.Set(ii, nCols-1, (logCaps[ii]-mean)/std)
		}
	}

	resid, ok := olsResiduals(design, y, policy)
	if !ok {
		log.Warn().Time("Date", factor.Dates[rowIdx]).Msg("rank-deficient design matrix; date is NaN")
		return nil, false
	}

	return resid, true
}

// olsResiduals solves min ||y - X b|| via SVD and returns y - X b. A rank
// deficient X fails under DropDate and is solved with a rank-truncated
// pseudo-inverse under DropCollinear
func olsResiduals(x *mat.Dense, y *mat.VecDense, policy DegeneratePolicy) ([]float64, bool) {
	nRows, nCols := x.Dims()

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, false
	}

	sigma := svd.Values(nil)
	tol := float64(nRows) * 2.220446049250313e-16 * sigma[0]
	rank := 0
	for _, s := range sigma {
		if s > tol {
			rank++
		}
	}

	if rank < nCols && policy == DropDate {
		return nil, false
	}
	if rank == 0 {
		return nil, false
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// b = V diag(1/sigma_r) U_r' y, truncated to the numerical rank
	uty := mat.NewVecDense(rank, nil)
	for ii := 0; ii < rank; ii++ {
		col := mat.NewVecDense(nRows, mat.Col(nil, ii, &u))
		uty.SetVec(ii, mat.Dot(col, y)/sigma[ii])
	}

	beta := mat.NewVecDense(nCols, nil)
	for ii := 0; ii < nCols; ii++ {
		sum := 0.0
		for jj := 0; jj < rank; jj++ {
			sum += v.At(ii, jj) * uty.AtVec(jj)
		}
		beta.SetVec(ii, sum)
	}

	fitted := mat.NewVecDense(nRows, nil)
	fitted.MulVec(x, beta)

	resid := make([]float64, nRows)
	for ii := range resid {
		resid[ii] = y.AtVec(ii) - fitted.AtVec(ii)
	}

	return resid, true
}

func distinctCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	res := make([]string, 0, len(codes))
	for _, code := range codes {
		if !seen[code] {
			seen[code] = true
			res = append(res, code)
		}
	}
	sort.Strings(res)
	return res
}
