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

func tradingDays(start time.Time, n int) []time.Time {
	days := make([]time.Time, n)
	dt := start
	for idx := range days {
		days[idx] = dt
		dt = dt.AddDate(0, 0, 1)
	}
	return days
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var df *dataframe.DataFrame

		BeforeEach(func() {
			df = &dataframe.DataFrame{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
		})

		It("has zero assets", func() {
			Expect(df.AssetCount()).To(Equal(0))
		})

		It("does not error on trim", func() {
			df = df.Trim(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
			Expect(df.Len()).To(Equal(0))
		})

		It("returns the zero time for start and end", func() {
			Expect(df.Start().IsZero()).To(BeTrue())
			Expect(df.End().IsZero()).To(BeTrue())
		})
	})

	Context("with 10 days of values and two assets", func() {
		var df *dataframe.DataFrame

		BeforeEach(func() {
			dates := tradingDays(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 10)
			df = dataframe.New(dates, []string{"AAA", "BBB"})
			for rowIdx := 0; rowIdx < 10; rowIdx++ {
				df.Vals[0][rowIdx] = float64(rowIdx)
				df.Vals[1][rowIdx] = float64(rowIdx) * 10
			}
		})

		It("has length", func() {
			Expect(df.Len()).To(Equal(10))
		})

		It("finds asset indexes", func() {
			Expect(df.AssetIndex("BBB")).To(Equal(1))
			Expect(df.AssetIndex("CCC")).To(Equal(-1))
		})

		It("finds date indexes", func() {
			Expect(df.DateIndex(time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC))).To(Equal(2))
			Expect(df.DateIndex(time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC))).To(Equal(-1))
		})

		It("returns cross-sections by row", func() {
			row := df.Row(4)
			Expect(row).To(Equal([]float64{4, 40}))
		})

		It("sets cross-sections by row", func() {
			df.SetRow(4, []float64{-1, -2})
			Expect(df.Vals[0][4]).To(Equal(-1.0))
			Expect(df.Vals[1][4]).To(Equal(-2.0))
		})

		It("breaks out cross-sections as maps", func() {
			m := df.AsMap(3)
			Expect(m["AAA"]).To(Equal(3.0))
			Expect(m["BBB"]).To(Equal(30.0))
		})

		It("copies without aliasing", func() {
			df2 := df.Copy()
			df2.Vals[0][0] = 99
			Expect(df.Vals[0][0]).To(Equal(0.0))
		})

		It("lags values by n rows", func() {
			lagged := df.Lag(2)
			Expect(math.IsNaN(lagged.Vals[0][0])).To(BeTrue())
			Expect(math.IsNaN(lagged.Vals[0][1])).To(BeTrue())
			Expect(lagged.Vals[0][2]).To(Equal(0.0))
			Expect(lagged.Vals[1][9]).To(Equal(70.0))
			Expect(lagged.Len()).To(Equal(10))
		})

		It("inserts a new asset column", func() {
			col := make([]float64, 10)
			df = df.Insert("CCC", col)
			Expect(df.AssetCount()).To(Equal(3))
			Expect(df.AssetIndex("CCC")).To(Equal(2))
		})

		DescribeTable("trims values by date range",
			func(a, b time.Time, expectedLen int) {
				trimmed := df.Trim(a, b)
				Expect(trimmed.Len()).To(Equal(expectedLen))
				if expectedLen > 0 {
					Expect(trimmed.Start().Before(a)).To(BeFalse())
					Expect(trimmed.End().After(b)).To(BeFalse())
				}
			},
			Entry("whole range",
				time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC), 10),
			Entry("interior range",
				time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC),
				time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC), 3),
			Entry("range beyond the data",
				time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC), 0),
			Entry("inverted range",
				time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC),
				time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC), 0),
		)

		It("renders a table", func() {
			Expect(df.Table()).To(ContainSubstring("AAA"))
		})
	})

	Context("with missing observations", func() {
		var df *dataframe.DataFrame

		BeforeEach(func() {
			dates := tradingDays(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 5)
			df = dataframe.New(dates, []string{"AAA"})
			df.Vals[0][1] = 10
			df.Vals[0][3] = 20
		})

		It("forward fills prior values", func() {
			filled := df.ForwardFill()
			Expect(math.IsNaN(filled.Vals[0][0])).To(BeTrue())
			Expect(filled.Vals[0][1]).To(Equal(10.0))
			Expect(filled.Vals[0][2]).To(Equal(10.0))
			Expect(filled.Vals[0][3]).To(Equal(20.0))
			Expect(filled.Vals[0][4]).To(Equal(20.0))
		})

		It("does not modify the receiver when forward filling", func() {
			df.ForwardFill()
			Expect(math.IsNaN(df.Vals[0][2])).To(BeTrue())
		})

		It("reindexes onto a denser axis", func() {
			dense := tradingDays(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 7)
			df2 := df.Reindex(dense)
			Expect(df2.Len()).To(Equal(7))
			Expect(math.IsNaN(df2.Vals[0][0])).To(BeTrue())
			Expect(df2.Vals[0][2]).To(Equal(10.0))
			Expect(df2.Vals[0][6]).To(Equal(20.0))
		})
	})

	Describe("Align", func() {
		It("restricts frames to common dates and assets", func() {
			datesA := tradingDays(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 5)
			datesB := tradingDays(time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC), 5)

			a := dataframe.New(datesA, []string{"AAA", "BBB", "CCC"})
			b := dataframe.New(datesB, []string{"BBB", "CCC", "DDD"})
			for rowIdx := 0; rowIdx < 5; rowIdx++ {
				for colIdx := 0; colIdx < 3; colIdx++ {
					a.Vals[colIdx][rowIdx] = float64(rowIdx)
					b.Vals[colIdx][rowIdx] = float64(rowIdx) * 2
				}
			}

			aligned, err := dataframe.Align(a, b)
			Expect(err).To(BeNil())
			Expect(aligned).To(HaveLen(2))
			Expect(aligned[0].Assets).To(Equal([]string{"BBB", "CCC"}))
			Expect(aligned[0].Len()).To(Equal(3))
			Expect(aligned[0].Start()).To(Equal(time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)))
			// row 0 of the aligned frames is a's day 3 and b's day 1
			Expect(aligned[0].Vals[0][0]).To(Equal(2.0))
			Expect(aligned[1].Vals[0][0]).To(Equal(0.0))
		})

		It("errors when no dates overlap", func() {
			a := dataframe.New(tradingDays(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 3), []string{"AAA"})
			b := dataframe.New(tradingDays(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), 3), []string{"AAA"})
			_, err := dataframe.Align(a, b)
			Expect(err).To(MatchError(dataframe.ErrNoOverlap))
		})

		It("errors when no assets overlap", func() {
			dates := tradingDays(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 3)
			a := dataframe.New(dates, []string{"AAA"})
			b := dataframe.New(dates, []string{"BBB"})
			_, err := dataframe.Align(a, b)
			Expect(err).To(MatchError(dataframe.ErrNoOverlap))
		})
	})
})
