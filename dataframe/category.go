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
	"time"
)

// NewCategoryFrame creates a CategoryFrame covering the given dates and
// assets with every code initialized to the empty string
func NewCategoryFrame(dates []time.Time, assets []string) *CategoryFrame {
	codes := make([][]string, len(assets))
	for colIdx := range codes {
		codes[colIdx] = make([]string, len(dates))
	}

	return &CategoryFrame{
		Dates:  dates,
		Assets: assets,
		Codes:  codes,
	}
}

// AssetIndex returns the column index of the specified asset; -1 if the
// asset doesn't exist
func (cf *CategoryFrame) AssetIndex(asset string) int {
	for idx, val := range cf.Assets {
		if asset == val {
			return idx
		}
	}

	return -1
}

// Code returns the category code for the asset column at the given row; the
// empty string marks a missing code
func (cf *CategoryFrame) Code(colIdx, rowIdx int) string {
	return cf.Codes[colIdx][rowIdx]
}

// DateIndex returns the row index of the specified date; -1 if the date
// doesn't exist
func (cf *CategoryFrame) DateIndex(date time.Time) int {
	for idx, val := range cf.Dates {
		if date.Equal(val) {
			return idx
		}
	}

	return -1
}

// Fill assigns the same code to an asset for every date. Useful for static
// classification tables
func (cf *CategoryFrame) Fill(asset, code string) {
	colIdx := cf.AssetIndex(asset)
	if colIdx == -1 {
		return
	}
	for rowIdx := range cf.Codes[colIdx] {
		cf.Codes[colIdx][rowIdx] = code
	}
}

// Len returns the number of rows in the frame
func (cf *CategoryFrame) Len() int {
	return len(cf.Dates)
}
