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

package data

import (
	"time"
)

// ReportingPeriod identifies which fiscal period a financial statement
// covers. Period ends always fall on a fiscal quarter boundary
type ReportingPeriod int

const (
	PeriodUnknown ReportingPeriod = iota
	PeriodQ1                      // period ending 03-31
	PeriodH1                      // period ending 06-30
	PeriodQ3                      // period ending 09-30
	PeriodAnnual                  // period ending 12-31
)

func (p ReportingPeriod) String() string {
	switch p {
	case PeriodQ1:
		return "Q1"
	case PeriodH1:
		return "H1"
	case PeriodQ3:
		return "Q3"
	case PeriodAnnual:
		return "FY"
	}
	return "UNKNOWN"
}

// PeriodFromDate maps a report period-end date onto its ReportingPeriod
func PeriodFromDate(periodEnd time.Time) ReportingPeriod {
	switch {
	case periodEnd.Month() == time.March && periodEnd.Day() == 31:
		return PeriodQ1
	case periodEnd.Month() == time.June && periodEnd.Day() == 30:
		return PeriodH1
	case periodEnd.Month() == time.September && periodEnd.Day() == 30:
		return PeriodQ3
	case periodEnd.Month() == time.December && periodEnd.Day() == 31:
		return PeriodAnnual
	}
	return PeriodUnknown
}

// FinancialStatementRecord is a single point-in-time financial statement
// line item. AnnounceDate is the day the statement became public knowledge;
// PeriodEnd is the fiscal period the value covers. For a fixed asset no two
// records share the same period end
type FinancialStatementRecord struct {
	Asset        string
	AnnounceDate time.Time
	PeriodEnd    time.Time
	Metric       string
	Value        float64
}

// FundamentalMetric names a column of the financial statement table
type FundamentalMetric string

const (
	MetricNetProfit        FundamentalMetric = "net_profit"
	MetricRevenue          FundamentalMetric = "revenue"
	MetricOperatingCash    FundamentalMetric = "operating_cashflow"
	MetricReturnOnEquity   FundamentalMetric = "roe"
	MetricGrossProfitRatio FundamentalMetric = "gross_profit_ratio"
)

// FactorSchema describes the set of factor columns a pipeline run produces.
// Built by an explicit factory instead of constructing record types on the
// fly
type FactorSchema struct {
	Names []string
}

// NewFactorSchema builds a FactorSchema from an enumerated list of factor
// names, dropping duplicates while preserving order
func NewFactorSchema(names ...string) FactorSchema {
	seen := make(map[string]bool, len(names))
	uniq := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			uniq = append(uniq, name)
		}
	}
	return FactorSchema{Names: uniq}
}
