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
	"errors"
	"math"
	"time"

	"github.com/quant-vault/qv-api/dataframe"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// WeightScheme selects how per-factor weights are estimated
type WeightScheme string

const (
	SchemeEqual WeightScheme = "equal"
	SchemeIC    WeightScheme = "ic_weight"
	SchemeIR    WeightScheme = "ir_weight"
	SchemeMaxIC WeightScheme = "max_IC"
	SchemeMaxIR WeightScheme = "max_IR"
)

var (
	ErrNoFactors        = errors.New("at least one factor is required")
	ErrInvalidWindow    = errors.New("rollback and holding periods must be positive")
	ErrWindowNeverFills = errors.New("not enough dates for the rollback window to fill")
)

// Input names one factor frame handed to Combine. Order is significant for
// Gram-Schmidt orthogonalization and for the weight matrix columns
type Input struct {
	Name   string
	Factor *dataframe.DataFrame
}

// CombineOptions control factor combination
type CombineOptions struct {
	Scheme            WeightScheme
	RollbackPeriod    int
	HoldingPeriod     int
	Standardization   Standardization
	Orthogonalization OrthoMethod
}

// WeightMatrix records the per-date weight vector applied to each factor.
// Rows are NaN until the rolling window fills
type WeightMatrix struct {
	Dates   []time.Time
	Factors []string
	Weights [][]float64
}

// Combine merges several factors into a single composite series. All inputs
// and the forward-return frame are first restricted to their common dates
// and assets; each factor is standardized cross-sectionally; per-date weight
// vectors are estimated under the requested scheme from trailing IC windows
// and shifted forward by the holding period before application; the weighted
// sum is re-standardized. Dates without a defined weight vector are excluded
// from the composite but remain (as NaN rows) in the weight matrix
func Combine(inputs []Input, fwd *dataframe.DataFrame, opts CombineOptions) (*dataframe.DataFrame, *WeightMatrix, error) {
	if len(inputs) == 0 {
		return nil, nil, ErrNoFactors
	}
	if opts.Scheme != SchemeEqual && (opts.RollbackPeriod < 1 || opts.HoldingPeriod < 1) {
		return nil, nil, ErrInvalidWindow
	}

	names := make([]string, len(inputs))
	frames := make([]*dataframe.DataFrame, 0, len(inputs)+1)
	for ii, input := range inputs {
		names[ii] = input.Name
		frames = append(frames, input.Factor)
	}
	frames = append(frames, fwd)

	aligned, err := dataframe.Align(frames...)
	if err != nil {
		return nil, nil, err
	}
	factorFrames := aligned[:len(inputs)]
	fwd = aligned[len(inputs)]

	factorFrames = Orthogonalize(factorFrames, opts.Orthogonalization)

	for ii, df := range factorFrames {
		if opts.Standardization == Rank {
			factorFrames[ii] = RankStandardize(df)
		} else {
			factorFrames[ii] = Standardize(df)
		}
	}

	dates := factorFrames[0].Dates
	nD := len(dates)
	nF := len(inputs)

	wm := &WeightMatrix{
		Dates:   dates,
		Factors: names,
		Weights: nanMatrix(nD, nF),
	}

	raw, err := rawWeights(factorFrames, fwd, opts, names)
	if err != nil {
		return nil, nil, err
	}

	// a weight estimated with information through day t can only be acted
	// on holding_period days later
	shift := 0
	if opts.Scheme != SchemeEqual {
		shift = opts.HoldingPeriod
	}
	for rowIdx := shift; rowIdx < nD; rowIdx++ {
		copy(wm.Weights[rowIdx], raw[rowIdx-shift])
	}

	composite := dataframe.New(dates, factorFrames[0].Assets)
	firstDefined := -1
	for rowIdx := range dates {
		w := wm.Weights[rowIdx]
		if hasNaN(w) {
			continue
		}
		if firstDefined == -1 {
			firstDefined = rowIdx
		}

		for colIdx := range composite.Assets {
			sum := 0.0
			for kk, df := range factorFrames {
				sum += w[kk] * df.Vals[colIdx][rowIdx]
			}
			composite.Vals[colIdx][rowIdx] = sum
		}
	}

	if firstDefined == -1 {
		log.Error().Stack().Int("Dates", nD).Int("Rollback", opts.RollbackPeriod).Msg("rolling window never fills")
		return nil, nil, ErrWindowNeverFills
	}

	composite = Standardize(composite.Slice(firstDefined, nD))

	return composite, wm, nil
}

// rawWeights estimates the un-shifted weight vector for every date; rows
// are NaN where the scheme cannot produce a weight
func rawWeights(factorFrames []*dataframe.DataFrame, fwd *dataframe.DataFrame, opts CombineOptions, names []string) ([][]float64, error) {
	dates := factorFrames[0].Dates
	nD := len(dates)
	nF := len(factorFrames)

	raw := nanMatrix(nD, nF)

	if opts.Scheme == SchemeEqual {
		for rowIdx := range raw {
			for kk := range raw[rowIdx] {
				raw[rowIdx][kk] = 1.0 / float64(nF)
			}
		}
		return raw, nil
	}

	// per-factor IC aligned onto the combined date axis; NaN where skipped
	icMat := make([][]float64, nF)
	for kk, df := range factorFrames {
		ics, err := ComputeIC(df, fwd)
		if err != nil {
			return nil, err
		}

		icMat[kk] = nanVector(nD)
		for ii, dt := range ics.Dates {
			rowIdx := factorFrames[0].DateIndex(dt)
			if rowIdx != -1 {
				icMat[kk][rowIdx] = ics.IC[ii]
			}
		}
		log.Debug().Str("Factor", names[kk]).Int("Dates", len(ics.Dates)).Msg("computed IC series")
	}

	for rowIdx := opts.RollbackPeriod - 1; rowIdx < nD; rowIdx++ {
		var w []float64
		var ok bool

		switch opts.Scheme {
		case SchemeIC, SchemeIR:
			w, ok = windowedMeanWeights(icMat, rowIdx, opts.RollbackPeriod, opts.Scheme == SchemeIR, dates[rowIdx])
		case SchemeMaxIR:
			w, ok = maxIRWeights(icMat, rowIdx, opts.RollbackPeriod, dates[rowIdx])
		case SchemeMaxIC:
			w, ok = maxICWeights(factorFrames, icMat, rowIdx, dates[rowIdx])
		default:
			return nil, ErrNoFactors
		}

		if ok {
			copy(raw[rowIdx], w)
		}
	}

	return raw, nil
}

// windowedMeanWeights computes ic_weight / ir_weight vectors from the
// trailing IC window ending at rowIdx
func windowedMeanWeights(icMat [][]float64, rowIdx, rollback int, useIR bool, date time.Time) ([]float64, bool) {
	nF := len(icMat)
	w := make([]float64, nF)

	for kk := 0; kk < nF; kk++ {
		window := icMat[kk][rowIdx-rollback+1 : rowIdx+1]
		if hasNaN(window) {
			log.Debug().Time("Date", date).Msg("IC window incomplete; weight undefined")
			return nil, false
		}

		mean := stat.Mean(window, nil)
		if useIR {
			std := stat.StdDev(window, nil)
			if std == 0 {
				log.Warn().Time("Date", date).Msg("IC window has zero dispersion; weight undefined")
				return nil, false
			}
			w[kk] = mean / std
		} else {
			w[kk] = mean
		}
	}

	return normalizeL1(w, date)
}

// maxIRWeights solves w ∝ Σ⁻¹ μ over the trailing IC window, estimating Σ
// with Ledoit-Wolf shrinkage and degrading to sample covariance and then to
// equal weights when the estimate cannot be produced or inverted
func maxIRWeights(icMat [][]float64, rowIdx, rollback int, date time.Time) ([]float64, bool) {
	nF := len(icMat)

	obs := make([][]float64, rollback)
	mu := make([]float64, nF)
	for ii := 0; ii < rollback; ii++ {
		obs[ii] = make([]float64, nF)
		for kk := 0; kk < nF; kk++ {
			v := icMat[kk][rowIdx-rollback+1+ii]
			if math.IsNaN(v) {
				log.Debug().Time("Date", date).Msg("IC window incomplete; weight undefined")
				return nil, false
			}
			obs[ii][kk] = v
			mu[kk] += v / float64(rollback)
		}
	}

	cov, _, err := LedoitWolf(obs)
	if err != nil {
		log.Warn().Err(err).Time("Date", date).Msg("shrinkage estimator failed; falling back to sample covariance")
		cov, err = SampleCovariance(obs)
		if err != nil {
			return equalFallback(nF, date)
		}
	}

	w, ok := solveWeights(cov, mu)
	if !ok {
		log.Warn().Time("Date", date).Msg("IC covariance is singular; falling back to sample covariance")
		cov, err = SampleCovariance(obs)
		if err == nil {
			w, ok = solveWeights(cov, mu)
		}
	}
	if !ok {
		return equalFallback(nF, date)
	}

	return normalizeL1(w, date)
}

// maxICWeights solves w ∝ V⁻¹ ic where V is the cross-sectional covariance
// of factor values on this date alone
func maxICWeights(factorFrames []*dataframe.DataFrame, icMat [][]float64, rowIdx int, date time.Time) ([]float64, bool) {
	nF := len(factorFrames)

	ic := make([]float64, nF)
	for kk := 0; kk < nF; kk++ {
		ic[kk] = icMat[kk][rowIdx]
		if math.IsNaN(ic[kk]) {
			log.Debug().Time("Date", date).Msg("IC unavailable; weight undefined")
			return nil, false
		}
	}

	// assets with a complete factor vector this date
	obs := make([][]float64, 0, len(factorFrames[0].Assets))
	for colIdx := range factorFrames[0].Assets {
		row := make([]float64, nF)
		ok := true
		for kk, df := range factorFrames {
			row[kk] = df.Vals[colIdx][rowIdx]
			if math.IsNaN(row[kk]) {
				ok = false
				break
			}
		}
		if ok {
			obs = append(obs, row)
		}
	}

	if len(obs) <= nF {
		log.Warn().Time("Date", date).Int("Assets", len(obs)).Msg("too few assets for factor covariance; weight undefined")
		return nil, false
	}

	cov, err := SampleCovariance(obs)
	if err != nil {
		return nil, false
	}

	w, ok := solveWeights(cov, ic)
	if !ok {
		log.Warn().Time("Date", date).Msg("factor covariance is singular; falling back to equal weights")
		return equalFallback(nF, date)
	}

	return normalizeL1(w, date)
}

// solveWeights solves cov * w = target via Cholesky factorization
func solveWeights(cov *mat.SymDense, target []float64) ([]float64, bool) {
	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		return nil, false
	}

	res := mat.NewVecDense(len(target), nil)
	if err := chol.SolveVecTo(res, mat.NewVecDense(len(target), target)); err != nil {
		return nil, false
	}

	w := make([]float64, len(target))
	for ii := range w {
		w[ii] = res.AtVec(ii)
	}
	return w, true
}

// normalizeL1 rescales w so the absolute weights sum to 1
func normalizeL1(w []float64, date time.Time) ([]float64, bool) {
	sum := 0.0
	for _, v := range w {
		sum += math.Abs(v)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		log.Warn().Time("Date", date).Msg("degenerate weight vector; weight undefined")
		return nil, false
	}

	for ii := range w {
		w[ii] /= sum
	}
	return w, true
}

func equalFallback(nF int, date time.Time) ([]float64, bool) {
	log.Warn().Time("Date", date).Msg("falling back to equal weights")
	w := make([]float64, nF)
	for ii := range w {
		w[ii] = 1.0 / float64(nF)
	}
	return w, true
}

func nanMatrix(rows, cols int) [][]float64 {
	res := make([][]float64, rows)
	for ii := range res {
		res[ii] = nanVector(cols)
	}
	return res
}

func nanVector(n int) []float64 {
	res := make([]float64, n)
	for ii := range res {
		res[ii] = math.NaN()
	}
	return res
}

func hasNaN(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
