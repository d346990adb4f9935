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

var _ = Describe("ComputeIC", func() {
	var (
		dates  []time.Time
		assets []string
		factor *dataframe.DataFrame
		fwd    *dataframe.DataFrame
	)

	BeforeEach(func() {
		dates = tradingDays(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), 2)
		assets = []string{"A", "B", "C", "D", "E", "F"}
		factor = dataframe.New(dates, assets)
		fwd = dataframe.New(dates, assets)
	})

	It("is 1 for a perfectly monotone relationship", func() {
		factor.SetRow(0, []float64{1, 2, 3, 4, 5, 6})
		fwd.SetRow(0, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})
		factor.SetRow(1, []float64{1, 2, 3, 4, 5, 6})
		fwd.SetRow(1, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})

		ics, err := factors.ComputeIC(factor, fwd)
		Expect(err).To(BeNil())
		Expect(ics.IC).To(HaveLen(2))
		Expect(ics.IC[0]).To(BeNumerically("~", 1.0, 1e-9))
		Expect(ics.PValue[0]).To(BeNumerically("~", 0.0, 1e-9))
	})

	It("is -1 for a perfectly inverted relationship", func() {
		factor.SetRow(0, []float64{6, 5, 4, 3, 2, 1})
		fwd.SetRow(0, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})
		factor.SetRow(1, []float64{6, 5, 4, 3, 2, 1})
		fwd.SetRow(1, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})

		ics, err := factors.ComputeIC(factor, fwd)
		Expect(err).To(BeNil())
		Expect(ics.IC[0]).To(BeNumerically("~", -1.0, 1e-9))
	})

	It("ignores value magnitudes", func() {
		factor.SetRow(0, []float64{1, 2, 3, 4, 5, 6})
		fwd.SetRow(0, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})
		factor.SetRow(1, []float64{1, 20, 300, 4000, 50000, 600000})
		fwd.SetRow(1, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})

		ics, err := factors.ComputeIC(factor, fwd)
		Expect(err).To(BeNil())
		Expect(ics.IC[0]).To(BeNumerically("~", ics.IC[1], 1e-9))
	})

	It("omits dates with too few paired observations", func() {
		factor.SetRow(0, []float64{1, 2, 3, 4, math.NaN(), math.NaN()})
		fwd.SetRow(0, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})
		factor.SetRow(1, []float64{1, 2, 3, 4, 5, 6})
		fwd.SetRow(1, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})

		ics, err := factors.ComputeIC(factor, fwd)
		Expect(err).To(BeNil())
		Expect(ics.Dates).To(HaveLen(1))
		Expect(ics.Dates[0]).To(Equal(dates[1]))
	})

	It("omits dates where the correlation is undefined", func() {
		// constant factor: every rank ties so the correlation is undefined
		factor.SetRow(0, []float64{5, 5, 5, 5, 5, 5})
		fwd.SetRow(0, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})
		factor.SetRow(1, []float64{1, 2, 3, 4, 5, 6})
		fwd.SetRow(1, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})

		ics, err := factors.ComputeIC(factor, fwd)
		Expect(err).To(BeNil())
		Expect(ics.Dates).To(HaveLen(1))
	})

	It("looks up values by date", func() {
		factor.SetRow(0, []float64{1, 2, 3, 4, 5, 6})
		fwd.SetRow(0, []float64{0.01, 0.02, 0.05, 0.08, 0.2, 0.9})

		ics, err := factors.ComputeIC(factor, fwd)
		Expect(err).To(BeNil())
		Expect(ics.At(dates[0])).To(BeNumerically("~", 1.0, 1e-9))
		Expect(math.IsNaN(ics.At(dates[1]))).To(BeTrue())
	})

	It("errors when the frames share nothing", func() {
		other := dataframe.New(dates, []string{"ZZZ"})
		_, err := factors.ComputeIC(factor, other)
		Expect(err).To(MatchError(dataframe.ErrNoOverlap))
	})
})

var _ = Describe("ICSeries summary", func() {
	It("aggregates known values", func() {
		ics := &factors.ICSeries{
			Dates: tradingDays(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), 5),
			IC:    []float64{0.1, 0.2, -0.1, 0.3, 0.0},
		}

		s := ics.Summary()
		Expect(s.N).To(Equal(5))
		Expect(s.Mean).To(BeNumerically("~", 0.1, 1e-12))
		// sample standard deviation of the five values
		Expect(s.Std).To(BeNumerically("~", 0.158113883, 1e-6))
		Expect(s.IR).To(BeNumerically("~", 0.1/0.158113883, 1e-6))
		Expect(s.TStat).To(BeNumerically("~", 0.1/(0.158113883/math.Sqrt(5)), 1e-6))
		Expect(s.HitRate).To(BeNumerically("~", 0.6, 1e-12))
	})

	It("degrades to NaN statistics when empty", func() {
		s := (&factors.ICSeries{}).Summary()
		Expect(math.IsNaN(s.Mean)).To(BeTrue())
		Expect(s.N).To(Equal(0))
	})
})

var _ = Describe("FactorReturnSeries summary", func() {
	It("aggregates known values", func() {
		frs := &factors.FactorReturnSeries{
			Dates:  tradingDays(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), 5),
			Return: []float64{0.01, 0.02, -0.01, 0.03, 0.0},
		}

		s := frs.Summary()
		Expect(s.N).To(Equal(5))
		Expect(s.Mean).To(BeNumerically("~", 0.01, 1e-12))
		// sample standard deviation of the five values
		Expect(s.Std).To(BeNumerically("~", 0.0158113883, 1e-7))
		Expect(s.TStat).To(BeNumerically("~", 0.01/(0.0158113883/math.Sqrt(5)), 1e-6))
	})

	It("degrades to NaN statistics when empty", func() {
		s := (&factors.FactorReturnSeries{}).Summary()
		Expect(math.IsNaN(s.Mean)).To(BeTrue())
		Expect(math.IsNaN(s.TStat)).To(BeTrue())
		Expect(s.N).To(Equal(0))
	})
})

var _ = Describe("FactorReturns", func() {
	var (
		dates  []time.Time
		assets []string
		factor *dataframe.DataFrame
		fwd    *dataframe.DataFrame
	)

	BeforeEach(func() {
		dates = tradingDays(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), 1)
		assets = []string{"A", "B", "C", "D", "E", "F"}
		factor = dataframe.New(dates, assets)
		fwd = dataframe.New(dates, assets)
	})

	It("recovers an exact linear relationship", func() {
		factor.SetRow(0, []float64{1, 2, 3, 4, 5, 6})
		fwd.SetRow(0, []float64{0.02, 0.04, 0.06, 0.08, 0.10, 0.12})

		frs, err := factors.FactorReturns(factor, fwd)
		Expect(err).To(BeNil())
		Expect(frs.Return).To(HaveLen(1))
		Expect(frs.Return[0]).To(BeNumerically("~", 0.02, 1e-12))
		Expect(math.IsInf(frs.TStat[0], 1)).To(BeTrue())
	})

	It("skips dates with zero factor dispersion around zero", func() {
		factor.SetRow(0, []float64{0, 0, 0, 0, 0, 0})
		fwd.SetRow(0, []float64{0.02, 0.04, 0.06, 0.08, 0.10, 0.12})

		frs, err := factors.FactorReturns(factor, fwd)
		Expect(err).To(BeNil())
		Expect(frs.Dates).To(BeEmpty())
	})
})
