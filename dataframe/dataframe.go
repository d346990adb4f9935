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

package dataframe

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

// New creates a DataFrame covering the given dates and assets with every
// value initialized to NaN
func New(dates []time.Time, assets []string) *DataFrame {
	vals := make([][]float64, len(assets))
	for colIdx := range vals {
		col := make([]float64, len(dates))
		for rowIdx := range col {
			col[rowIdx] = math.NaN()
		}
		vals[colIdx] = col
	}

	return &DataFrame{
		Dates:  dates,
		Assets: assets,
		Vals:   vals,
	}
}

// AssetIndex returns the column index of the specified asset; -1 if the asset
// doesn't exist
func (df *DataFrame) AssetIndex(asset string) int {
	for idx, val := range df.Assets {
		if asset == val {
			return idx
		}
	}

	return -1
}

// AssetCount returns the number of assets in the dataframe
func (df *DataFrame) AssetCount() int {
	return len(df.Assets)
}

// AsMap returns the cross-section at rowIdx as a map from asset to value
func (df *DataFrame) AsMap(rowIdx int) map[string]float64 {
	res := make(map[string]float64, len(df.Assets))
	for colIdx, asset := range df.Assets {
		res[asset] = df.Vals[colIdx][rowIdx]
	}

	return res
}

// Copy creates a copy of the dataframe
func (df *DataFrame) Copy() *DataFrame {
	df2 := &DataFrame{
		Assets: make([]string, len(df.Assets)),
		Dates:  make([]time.Time, len(df.Dates)),
		Vals:   make([][]float64, len(df.Vals)),
	}

	copy(df2.Assets, df.Assets)
	copy(df2.Dates, df.Dates)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// DateIndex returns the row index of the specified date; -1 if the date
// doesn't exist
func (df *DataFrame) DateIndex(date time.Time) int {
	idx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(date)
	})

	if idx < len(df.Dates) && df.Dates[idx].Equal(date) {
		return idx
	}

	return -1
}

// End returns the last date in the DataFrame
func (df *DataFrame) End() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}

	return df.Dates[len(df.Dates)-1]
}

// ForwardFill replaces NaN values with the most recent non-NaN value of the
// same asset and returns a new dataframe. Values before an asset's first
// observation remain NaN
func (df *DataFrame) ForwardFill() *DataFrame {
	df = df.Copy()
	for colIdx := range df.Vals {
		last := math.NaN()
		for rowIdx, val := range df.Vals[colIdx] {
			if math.IsNaN(val) {
				df.Vals[colIdx][rowIdx] = last
			} else {
				last = val
			}
		}
	}
	return df
}

// Insert a new asset column at the end of the dataframe; panics if the
// column length does not match the date index
func (df *DataFrame) Insert(asset string, col []float64) *DataFrame {
	if len(col) != len(df.Dates) {
		log.Panic().Int("NumVals", len(col)).Int("NumDates", len(df.Dates)).Msg("column length must equal number of dates")
	}
	df.Assets = append(df.Assets, asset)
	df.Vals = append(df.Vals, col)
	return df
}

// Lag shifts the dataframe down by the specified number of rows, replacing
// shifted values with math.NaN(), and returns a new dataframe
func (df *DataFrame) Lag(n int) *DataFrame {
	df = df.Copy()
	prepend := make([]float64, n)
	for idx := range prepend {
		prepend[idx] = math.NaN()
	}

	for idx := range df.Vals {
		l := len(df.Vals[idx])
		df.Vals[idx] = append(prepend, df.Vals[idx]...)[:l] //nolint:makezero
	}
	return df
}

// Len returns the number of rows in the dataframe
func (df *DataFrame) Len() int {
	return len(df.Dates)
}

// Reindex places the dataframe's values onto a new date index, carrying the
// most recent prior observation forward onto dates that are missing from the
// source. Dates before the first observation are NaN
func (df *DataFrame) Reindex(dates []time.Time) *DataFrame {
	df2 := New(dates, df.Assets)

	for colIdx := range df.Vals {
		srcIdx := 0
		last := math.NaN()
		for rowIdx, dt := range dates {
			for srcIdx < len(df.Dates) && !df.Dates[srcIdx].After(dt) {
				last = df.Vals[colIdx][srcIdx]
				srcIdx++
			}
			df2.Vals[colIdx][rowIdx] = last
		}
	}

	return df2
}

// Row returns a copy of the cross-section at the specified row index, one
// value per asset
func (df *DataFrame) Row(rowIdx int) []float64 {
	xs := make([]float64, len(df.Assets))
	for colIdx := range df.Assets {
		xs[colIdx] = df.Vals[colIdx][rowIdx]
	}
	return xs
}

// SetRow overwrites the cross-section at the specified row index
func (df *DataFrame) SetRow(rowIdx int, xs []float64) {
	if len(xs) != len(df.Assets) {
		log.Panic().Int("NumVals", len(xs)).Int("NumAssets", len(df.Assets)).Msg("cross-section length must equal number of assets")
	}
	for colIdx := range df.Assets {
		df.Vals[colIdx][rowIdx] = xs[colIdx]
	}
}

// Slice returns a new dataframe restricted to rows [begin, end)
func (df *DataFrame) Slice(begin, end int) *DataFrame {
	df2 := &DataFrame{
		Assets: df.Assets,
		Dates:  df.Dates[begin:end],
		Vals:   make([][]float64, len(df.Vals)),
	}
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[begin:end]
	}
	return df2
}

// Start returns the first date of the dataframe
func (df *DataFrame) Start() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}

	return df.Dates[0]
}

// Table prints an ASCII formatted table to stdout
func (df *DataFrame) Table() string {
	if len(df.Dates) == 0 {
		return "<NO DATA>" // nothing to do as there is no data available in the dataframe
	}

	// construct table header
	tableCols := append([]string{"Date"}, df.Assets...)

	// initialize table
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	footer[1] = fmt.Sprintf("%d", df.Len())
	table.SetFooter(footer)
	table.SetBorder(false)

	for rowIdx, date := range df.Dates {
		row := make([]string, 0, len(df.Vals)+1)
		row = append(row, date.Format("2006-01-02"))

		for _, col := range df.Vals {
			row = append(row, fmt.Sprintf("%.4f", col[rowIdx]))
		}

		table.Append(row)
	}

	table.Render()
	return s.String()
}

// Trim the dataframe to the specified date range (inclusive)
func (df *DataFrame) Trim(begin, end time.Time) *DataFrame {
	// special case 0: requested range is invalid
	if end.Before(begin) {
		return &DataFrame{
			Assets: df.Assets,
			Dates:  []time.Time{},
			Vals:   make([][]float64, len(df.Vals)),
		}
	}

	// special case 1: data frame is empty
	if df.Len() == 0 {
		return df
	}

	// special case 2: requested range does not overlap available dates
	if end.Before(df.Start()) || begin.After(df.End()) {
		return &DataFrame{
			Assets: df.Assets,
			Dates:  []time.Time{},
			Vals:   make([][]float64, len(df.Vals)),
		}
	}

	// use binary search to find the indexes corresponding to the begin and
	// end times
	beginIdx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(begin)
	})

	endIdx := sort.Search(len(df.Dates), func(i int) bool {
		return df.Dates[i].After(end)
	})

	return df.Slice(beginIdx, endIdx)
}

// Align restricts all frames to their common dates and assets and returns
// new frames sharing the intersected axes. Frames with no overlap return
// ErrNoOverlap
func Align(dfs ...*DataFrame) ([]*DataFrame, error) {
	if len(dfs) == 0 {
		return nil, ErrNoOverlap
	}

	dates := dfs[0].Dates
	for _, df := range dfs[1:] {
		dates = intersectDates(dates, df.Dates)
	}

	assets := dfs[0].Assets
	for _, df := range dfs[1:] {
		assets = intersectAssets(assets, df.Assets)
	}

	if len(dates) == 0 || len(assets) == 0 {
		return nil, ErrNoOverlap
	}

	res := make([]*DataFrame, len(dfs))
	for ii, df := range dfs {
		aligned := New(dates, assets)
		for colIdx, asset := range assets {
			srcCol := df.AssetIndex(asset)
			for rowIdx, dt := range dates {
				srcRow := df.DateIndex(dt)
				aligned.Vals[colIdx][rowIdx] = df.Vals[srcCol][srcRow]
			}
		}
		res[ii] = aligned
	}

	return res, nil
}

func intersectDates(a, b []time.Time) []time.Time {
	inB := make(map[int64]bool, len(b))
	for _, dt := range b {
		inB[dt.Unix()] = true
	}

	res := make([]time.Time, 0, len(a))
	for _, dt := range a {
		if inB[dt.Unix()] {
			res = append(res, dt)
		}
	}
	return res
}

func intersectAssets(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, asset := range b {
		inB[asset] = true
	}

	res := make([]string, 0, len(a))
	for _, asset := range a {
		if inB[asset] {
			res = append(res, asset)
		}
	}
	return res
}
