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

package dataframe_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quant-vault/qv-api/dataframe"
)

var _ = Describe("DataFrame math", func() {
	var df *dataframe.DataFrame

	BeforeEach(func() {
		dates := tradingDays(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 5)
		df = dataframe.New(dates, []string{"AAA", "BBB"})
		for rowIdx := 0; rowIdx < 5; rowIdx++ {
			df.Vals[0][rowIdx] = float64(rowIdx + 1)
			df.Vals[1][rowIdx] = float64(rowIdx+1) * 2
		}
	})

	It("adds a scalar to every value", func() {
		df2 := df.AddScalar(1)
		Expect(df2.Vals[0][0]).To(Equal(2.0))
		Expect(df2.Vals[1][4]).To(Equal(11.0))
		Expect(df.Vals[0][0]).To(Equal(1.0))
	})

	It("multiplies every value by a scalar", func() {
		df2 := df.MulScalar(10)
		Expect(df2.Vals[0][0]).To(Equal(10.0))
		Expect(df2.Vals[1][4]).To(Equal(100.0))
	})

	It("counts values matching a predicate per date", func() {
		counts := df.Count(func(x float64) bool { return x > 5 })
		Expect(counts).To(Equal([]int{0, 0, 1, 1, 2}))
	})

	It("sums values per date skipping NaN", func() {
		df.Vals[1][0] = math.NaN()
		sums := df.Sum()
		Expect(sums[0]).To(Equal(1.0))
		Expect(sums[4]).To(Equal(15.0))
	})

	It("takes natural logs and maps non-positive values to NaN", func() {
		df.Vals[0][0] = -3
		df.Vals[1][0] = 0
		df2 := df.Log()
		Expect(math.IsNaN(df2.Vals[0][0])).To(BeTrue())
		Expect(math.IsNaN(df2.Vals[1][0])).To(BeTrue())
		Expect(df2.Vals[0][1]).To(BeNumerically("~", math.Log(2), 1e-12))
	})

	Describe("ForwardReturns", func() {
		It("computes returns over the horizon", func() {
			fwd := dataframe.ForwardReturns(df, 1)
			// p goes 1,2,3,4,5 so the 1-day return at t=0 is 100%
			Expect(fwd.Vals[0][0]).To(BeNumerically("~", 1.0, 1e-12))
			Expect(fwd.Vals[0][3]).To(BeNumerically("~", 0.25, 1e-12))
			Expect(math.IsNaN(fwd.Vals[0][4])).To(BeTrue())
		})

		It("leaves the trailing rows undefined", func() {
			fwd := dataframe.ForwardReturns(df, 3)
			Expect(math.IsNaN(fwd.Vals[0][2])).To(BeFalse())
			Expect(math.IsNaN(fwd.Vals[0][3])).To(BeTrue())
			Expect(math.IsNaN(fwd.Vals[0][4])).To(BeTrue())
		})

		It("skips undefined and zero prices", func() {
			df.Vals[0][1] = math.NaN()
			df.Vals[1][2] = 0
			fwd := dataframe.ForwardReturns(df, 1)
			Expect(math.IsNaN(fwd.Vals[0][0])).To(BeTrue()) // future price missing
			Expect(math.IsNaN(fwd.Vals[0][1])).To(BeTrue()) // current price missing
			Expect(math.IsNaN(fwd.Vals[1][2])).To(BeTrue()) // zero price
		})
	})
})
