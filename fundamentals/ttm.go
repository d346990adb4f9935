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

package fundamentals

import (
	"math"
	"sort"
	"time"

	"github.com/quant-vault/qv-api/data"
	"github.com/quant-vault/qv-api/dataframe"
	"github.com/rs/zerolog/log"
)

const periodKeyFormat = "2006-01-02"

// ReconstructTTM converts irregularly announced financial statement records
// into a continuous daily trailing-twelve-month series, one value per
// (asset, trading day).
//
// For each trading day the effective report is the most recently announced
// record whose announcement date is on or before that day. A full fiscal
// year report is already a twelve month value and is used directly. Any
// other period telescopes against the prior fiscal year:
//
//	ttm = current + priorFiscalYear - priorYearSamePeriod
//
// When either prior-year record has not been announced yet the period value
// is annualized with a fixed multiplier (Q1 x4, H1 x2, Q3 x4/3) and the
// asset-day is counted as an approximation.
//
// Records are released into the lookup state only once their announcement
// date has been reached, so output for a day can never depend on a record
// announced after it.
func ReconstructTTM(records []data.FinancialStatementRecord, cal *data.Calendar, metric string) (*dataframe.DataFrame, error) {
	byAsset := make(map[string][]data.FinancialStatementRecord)
	for _, rec := range records {
		if rec.Metric != metric {
			continue
		}
		if data.PeriodFromDate(rec.PeriodEnd) == data.PeriodUnknown {
			log.Warn().Str("Asset", rec.Asset).Time("PeriodEnd", rec.PeriodEnd).Msg("report period does not end on a fiscal quarter boundary; record skipped")
			continue
		}
		byAsset[rec.Asset] = append(byAsset[rec.Asset], rec)
	}

	if len(byAsset) == 0 {
		log.Error().Stack().Str("Metric", metric).Msg("no usable financial statement records")
		return nil, data.ErrNoFinancials
	}

	assets := make([]string, 0, len(byAsset))
	for asset := range byAsset {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	df := dataframe.New(cal.Days, assets)
	for colIdx, asset := range assets {
		reconstructAsset(df.Vals[colIdx], byAsset[asset], cal, asset)
	}

	return df, nil
}

// reconstructAsset fills one asset column, processing trading days in
// chronological order
func reconstructAsset(col []float64, recs []data.FinancialStatementRecord, cal *data.Calendar, asset string) {
	// order announcements chronologically; on a shared announcement day the
	// later fiscal period wins
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].AnnounceDate.Equal(recs[j].AnnounceDate) {
			return recs[i].PeriodEnd.Before(recs[j].PeriodEnd)
		}
		return recs[i].AnnounceDate.Before(recs[j].AnnounceDate)
	})

	released := make(map[string]float64, len(recs))
	var effective *data.FinancialStatementRecord

	current := math.NaN()
	approx := false
	approxDays := 0
	next := 0

	for rowIdx, day := range cal.Days {
		changed := false
		for next < len(recs) && !recs[next].AnnounceDate.After(day) {
			released[recs[next].PeriodEnd.Format(periodKeyFormat)] = recs[next].Value
			effective = &recs[next]
			next++
			changed = true
		}

		if changed {
			current, approx = ttmValue(effective, released)
		}

		col[rowIdx] = current
		if approx {
			approxDays++
		}
	}

	if approxDays > 0 {
		log.Debug().Str("Asset", asset).Int("ApproxDays", approxDays).Msg("ttm used annualization multiplier; prior-year records unavailable")
	}
}

// ttmValue computes the trailing-twelve-month value implied by the effective
// report given the set of records announced so far
func ttmValue(rec *data.FinancialStatementRecord, released map[string]float64) (val float64, approx bool) {
	period := data.PeriodFromDate(rec.PeriodEnd)
	if period == data.PeriodAnnual {
		return rec.Value, false
	}

	priorYearEnd := time.Date(rec.PeriodEnd.Year()-1, time.December, 31, 0, 0, 0, 0, rec.PeriodEnd.Location())
	priorSamePeriod := rec.PeriodEnd.AddDate(-1, 0, 0)

	fy, haveFY := released[priorYearEnd.Format(periodKeyFormat)]
	same, haveSame := released[priorSamePeriod.Format(periodKeyFormat)]
	if haveFY && haveSame {
		return rec.Value + fy - same, false
	}

	switch period {
	case data.PeriodQ1:
		return rec.Value * 4, true
	case data.PeriodH1:
		return rec.Value * 2, true
	default: // PeriodQ3
		return rec.Value * 4.0 / 3.0, true
	}
}
