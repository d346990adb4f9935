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

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var ErrTooFewObservations = errors.New("need at least 2 observations for a covariance estimate")

// LedoitWolf estimates a covariance matrix from obs (one row per
// observation) shrunk toward the scaled identity, following Ledoit & Wolf
// (2004). Returns the estimate and the shrinkage intensity in [0, 1]
func LedoitWolf(obs [][]float64) (*mat.SymDense, float64, error) {
	n := len(obs)
	if n < 2 {
		return nil, 0, ErrTooFewObservations
	}
	p := len(obs[0])

	// demean columns
	means := make([]float64, p)
	for _, row := range obs {
		for jj, v := range row {
			means[jj] += v
		}
	}
	for jj := range means {
		means[jj] /= float64(n)
	}

	x := make([][]float64, n)
	for ii, row := range obs {
		x[ii] = make([]float64, p)
		for jj, v := range row {
			x[ii][jj] = v - means[jj]
		}
	}

	// sample covariance with 1/n scaling per the reference estimator
	s := mat.NewSymDense(p, nil)
	for ii := 0; ii < p; ii++ {
		for jj := ii; jj < p; jj++ {
			sum := 0.0
			for kk := 0; kk < n; kk++ {
				sum += x[kk][ii] * x[kk][jj]
			}
			s.SetSym(ii, jj, sum/float64(n))
		}
	}

	// m = <S, I>, d2 = ||S - m I||^2 under the normalized Frobenius inner
	// product <A, B> = tr(A B') / p
	m := 0.0
	for ii := 0; ii < p; ii++ {
		m += s.At(ii, ii)
	}
	m /= float64(p)

	d2 := 0.0
	for ii := 0; ii < p; ii++ {
		for jj := 0; jj < p; jj++ {
			v := s.At(ii, jj)
			if ii == jj {
				v -= m
			}
			d2 += v * v
		}
	}
	d2 /= float64(p)

	// b2 measures estimation error of S across observations
	bBar2 := 0.0
	for kk := 0; kk < n; kk++ {
		for ii := 0; ii < p; ii++ {
			for jj := 0; jj < p; jj++ {
				v := x[kk][ii]*x[kk][jj] - s.At(ii, jj)
				bBar2 += v * v
			}
		}
	}
	bBar2 /= float64(p) * float64(n) * float64(n)

	b2 := bBar2
	if b2 > d2 {
		b2 = d2
	}
	a2 := d2 - b2

	shrinkage := 0.0
	if d2 > 0 {
		shrinkage = b2 / d2
	}

	res := mat.NewSymDense(p, nil)
	for ii := 0; ii < p; ii++ {
		for jj := ii; jj < p; jj++ {
			v := (a2 / d2) * s.At(ii, jj)
			if d2 == 0 {
				v = s.At(ii, jj)
			}
			if ii == jj {
				v += shrinkage * m
			}
			res.SetSym(ii, jj, v)
		}
	}

	return res, shrinkage, nil
}

// SampleCovariance estimates a plain covariance matrix from obs (one row
// per observation)
func SampleCovariance(obs [][]float64) (*mat.SymDense, error) {
	n := len(obs)
	if n < 2 {
		return nil, ErrTooFewObservations
	}
	p := len(obs[0])

	flat := make([]float64, 0, n*p)
	for _, row := range obs {
		flat = append(flat, row...)
	}

	res := mat.NewSymDense(p, nil)
	stat.CovarianceMatrix(res, mat.NewDense(n, p, flat), nil)
	return res, nil
}
