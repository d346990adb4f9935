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

package factors_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quant-vault/qv-api/factors"
)

var _ = Describe("Covariance estimation", func() {
	obs := [][]float64{
		{0.10, 0.02, -0.05},
		{0.03, -0.01, 0.04},
		{-0.02, 0.05, 0.01},
		{0.07, 0.00, -0.02},
		{0.01, 0.03, 0.06},
		{-0.04, -0.02, 0.02},
	}

	Describe("LedoitWolf", func() {
		It("rejects fewer than two observations", func() {
			_, _, err := factors.LedoitWolf([][]float64{{1, 2}})
			Expect(err).To(MatchError(factors.ErrTooFewObservations))
		})

		It("produces a symmetric estimate with shrinkage in [0, 1]", func() {
			cov, shrinkage, err := factors.LedoitWolf(obs)
			Expect(err).To(BeNil())
			Expect(shrinkage).To(BeNumerically(">=", 0))
			Expect(shrinkage).To(BeNumerically("<=", 1))

			rows, cols := cov.Dims()
			Expect(rows).To(Equal(3))
			Expect(cols).To(Equal(3))
			for ii := 0; ii < 3; ii++ {
				for jj := 0; jj < 3; jj++ {
					Expect(cov.At(ii, jj)).To(BeNumerically("~", cov.At(jj, ii), 1e-12))
				}
			}
		})

		It("preserves the trace of the sample estimate", func() {
			cov, _, err := factors.LedoitWolf(obs)
			Expect(err).To(BeNil())

			// the shrinkage target is the scaled identity, so the total
			// variance is unchanged
			n := float64(len(obs))
			means := make([]float64, 3)
			for _, row := range obs {
				for jj, v := range row {
					means[jj] += v / n
				}
			}
			sampleTrace := 0.0
			for _, row := range obs {
				for jj, v := range row {
					sampleTrace += (v - means[jj]) * (v - means[jj]) / n
				}
			}

			trace := cov.At(0, 0) + cov.At(1, 1) + cov.At(2, 2)
			Expect(trace).To(BeNumerically("~", sampleTrace, 1e-12))
		})

		It("pulls off-diagonal entries toward zero", func() {
			cov, shrinkage, err := factors.LedoitWolf(obs)
			Expect(err).To(BeNil())

			sample, err := factors.SampleCovariance(obs)
			Expect(err).To(BeNil())

			if shrinkage > 0 {
				// SampleCovariance uses 1/(n-1); rescale for comparison
				n := float64(len(obs))
				raw := sample.At(0, 1) * (n - 1) / n
				Expect(cov.At(0, 1)).To(BeNumerically("~", raw*(1-shrinkage), 1e-12))
			}
		})
	})

	Describe("SampleCovariance", func() {
		It("rejects fewer than two observations", func() {
			_, err := factors.SampleCovariance([][]float64{{1, 2}})
			Expect(err).To(MatchError(factors.ErrTooFewObservations))
		})

		It("matches the hand-computed estimate", func() {
			cov, err := factors.SampleCovariance([][]float64{
				{1, 2},
				{2, 4},
				{3, 6},
			})
			Expect(err).To(BeNil())
			Expect(cov.At(0, 0)).To(BeNumerically("~", 1.0, 1e-12))
			Expect(cov.At(0, 1)).To(BeNumerically("~", 2.0, 1e-12))
			Expect(cov.At(1, 1)).To(BeNumerically("~", 4.0, 1e-12))
		})
	})
})
