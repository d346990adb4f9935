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
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quant-vault/qv-api/dataframe"
	"github.com/quant-vault/qv-api/factors"
)

var _ = Describe("Orthogonalize", func() {
	var (
		dates  []time.Time
		assets []string
		f1     *dataframe.DataFrame
		f2     *dataframe.DataFrame
	)

	dot := func(a, b *dataframe.DataFrame, rowIdx int) float64 {
		sum := 0.0
		for colIdx := range a.Vals {
			sum += a.Vals[colIdx][rowIdx] * b.Vals[colIdx][rowIdx]
		}
		return sum
	}

	BeforeEach(func() {
		dates = tradingDays(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), 2)
		assets = []string{"A", "B", "C", "D", "E"}
		f1 = dataframe.New(dates, assets)
		f2 = dataframe.New(dates, assets)

		// deliberately correlated
		f1.SetRow(0, []float64{1, 2, 3, 4, 5})
		f2.SetRow(0, []float64{2, 4, 6, 8, 11})
		f1.SetRow(1, []float64{5, 3, 8, 1, 9})
		f2.SetRow(1, []float64{4, 3, 9, 2, 7})
	})

	It("returns the input unchanged for OrthoNone", func() {
		res := factors.Orthogonalize([]*dataframe.DataFrame{f1, f2}, factors.OrthoNone)
		Expect(res[0]).To(BeIdenticalTo(f1))
	})

	It("returns the input unchanged for a single factor", func() {
		res := factors.Orthogonalize([]*dataframe.DataFrame{f1}, factors.OrthoSymmetric)
		Expect(res[0]).To(BeIdenticalTo(f1))
	})

	It("decorrelates per date under symmetric orthogonalization", func() {
		res := factors.Orthogonalize([]*dataframe.DataFrame{f1, f2}, factors.OrthoSymmetric)

		for rowIdx := range dates {
			Expect(dot(res[0], res[1], rowIdx)).To(BeNumerically("~", 0, 1e-9))
		}

		// inputs are not modified
		Expect(f1.Vals[0][0]).To(Equal(1.0))
	})

	It("treats factors symmetrically under symmetric orthogonalization", func() {
		fwdOrder := factors.Orthogonalize([]*dataframe.DataFrame{f1, f2}, factors.OrthoSymmetric)
		revOrder := factors.Orthogonalize([]*dataframe.DataFrame{f2, f1}, factors.OrthoSymmetric)

		for colIdx := range assets {
			Expect(fwdOrder[0].Vals[colIdx][0]).To(BeNumerically("~", revOrder[1].Vals[colIdx][0], 1e-9))
		}
	})

	It("leaves the first factor unchanged under Gram-Schmidt", func() {
		res := factors.Orthogonalize([]*dataframe.DataFrame{f1, f2}, factors.OrthoGramSchmidt)

		for colIdx := range assets {
			Expect(res[0].Vals[colIdx][0]).To(Equal(f1.Vals[colIdx][0]))
		}
		for rowIdx := range dates {
			Expect(dot(res[0], res[1], rowIdx)).To(BeNumerically("~", 0, 1e-9))
		}
	})

	It("leaves dates with incomplete factor vectors unchanged", func() {
		f2.Vals[0][1] = math.NaN()
		f2.Vals[1][1] = math.NaN()
		f2.Vals[2][1] = math.NaN()
		f2.Vals[3][1] = math.NaN()

		res := factors.Orthogonalize([]*dataframe.DataFrame{f1, f2}, factors.OrthoSymmetric)

		// date 0 still decorrelated, date 1 untouched
		Expect(dot(res[0], res[1], 0)).To(BeNumerically("~", 0, 1e-9))
		Expect(res[0].Vals[0][1]).To(Equal(5.0))
	})
})
